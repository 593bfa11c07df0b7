package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseloop/backend/internal/database/models"
	"github.com/courseloop/backend/pkg/config"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Otp{},
		&models.Course{},
		&models.ReferralLink{},
	); err != nil {
		return err
	}

	// Postgres partial unique index backing the at-most-one-active-link
	// invariant per (affiliate, course). SQLite (tests) supports the same
	// syntax; the service additionally guards the create in a transaction.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_links_active
		 ON referral_links (affiliate_id, course_id)
		 WHERE is_soft_deleted = false AND expired = false`,
	).Error
}
