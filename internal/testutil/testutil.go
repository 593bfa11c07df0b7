package testutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseloop/backend/internal/auth"
	"github.com/courseloop/backend/internal/database"
	"github.com/courseloop/backend/internal/database/models"
	"github.com/courseloop/backend/pkg/crypto"
)

const TestPassword = "Testpass1!"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every new connection to :memory: opens a separate empty database, so
	// concurrent tests must share a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// NewTestLogger returns a logger that discards nothing but stays quiet at
// the default test verbosity.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// NewTestEncryptor creates an encryptor with a throwaway key
func NewTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

// NewTestJWTService creates a JWT service for testing
func NewTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 30*time.Minute)
}

// FakeEnqueuer records enqueued tasks instead of hitting redis.
type FakeEnqueuer struct {
	Tasks []*asynq.Task
}

func (f *FakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.Tasks = append(f.Tasks, task)
	return &asynq.TaskInfo{ID: uuid.New().String(), Type: task.Type()}, nil
}

// LastPayload unmarshals the most recent task payload of the given type.
func (f *FakeEnqueuer) LastPayload(t *testing.T, taskType string, v interface{}) {
	t.Helper()

	for i := len(f.Tasks) - 1; i >= 0; i-- {
		if f.Tasks[i].Type() == taskType {
			if err := json.Unmarshal(f.Tasks[i].Payload(), v); err != nil {
				t.Fatalf("failed to unmarshal task payload: %v", err)
			}
			return
		}
	}
	t.Fatalf("no task of type %s was enqueued", taskType)
}

// NewTestAuthService wires an auth service over the given DB with a fake
// enqueuer and test encryptor.
func NewTestAuthService(t *testing.T, db *gorm.DB) (*auth.Service, *FakeEnqueuer) {
	t.Helper()

	enqueuer := &FakeEnqueuer{}
	svc := auth.NewService(db, NewTestJWTService(), NewTestEncryptor(t), enqueuer, NewTestLogger(), 30*24*time.Hour)
	return svc, enqueuer
}

// CreateTestUser creates a user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, role models.AccessRole) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		AccessRole:   role,
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestCourse creates a course owned by the given author
func CreateTestCourse(t *testing.T, db *gorm.DB, authorID uuid.UUID) *models.Course {
	t.Helper()

	course := &models.Course{
		Base: models.Base{
			ID: uuid.New(),
		},
		Title:     "Test Course " + uuid.New().String()[:8],
		AuthorID:  authorID,
		Published: true,
	}

	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to create test course: %v", err)
	}

	return course
}

// GenerateTestToken generates a valid access token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateAccessToken(user.ID, user.AccessRole)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestSetup holds the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Auth       *auth.Service
	Enqueuer   *FakeEnqueuer
}

// NewTestContext creates a complete test setup
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	svc, enqueuer := NewTestAuthService(t, db)

	return &TestSetup{
		DB:         db,
		JWTService: NewTestJWTService(),
		Auth:       svc,
		Enqueuer:   enqueuer,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
