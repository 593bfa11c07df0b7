// Package referral owns the lifecycle of affiliate referral links: creation,
// expiry, soft deletion, and lookup. Expiry is evaluated lazily from the
// issuance timestamp plus a fixed TTL; the stored flag is a persisted view of
// the same fact, never the authority.
package referral

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/database/models"
)

var (
	ErrLinkNotFound   = errors.New("referral link not found")
	ErrCourseNotFound = errors.New("course not found")
	ErrNotOwner       = errors.New("requester does not own this link")
)

type Service struct {
	db      *gorm.DB
	logger  *slog.Logger
	ttl     time.Duration
	baseURL string
}

func NewService(db *gorm.DB, logger *slog.Logger, ttl time.Duration, baseURL string) *Service {
	return &Service{db: db, logger: logger, ttl: ttl, baseURL: baseURL}
}

// TTL returns the issuance window after which links expire on read.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// CreateLink returns the active link for (affiliateID, courseID), creating
// it if none exists. Idempotent: the same pair always yields the same link
// string, and concurrent calls cannot produce duplicate active links; the
// partial unique index backs the transaction.
// The boolean result reports whether a fresh row was created, as opposed to
// returning the existing active link.
func (s *Service) CreateLink(ctx context.Context, affiliateID, courseID uuid.UUID) (*models.ReferralLink, bool, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrCourseNotFound
		}
		return nil, false, fmt.Errorf("loading course: %w", err)
	}

	var link *models.ReferralLink
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ReferralLink
		err := tx.
			Where("affiliate_id = ? AND course_id = ? AND is_soft_deleted = ? AND expired = ?",
				affiliateID, courseID, false, false).
			First(&existing).Error
		switch {
		case err == nil && !existing.ExpiredBy(time.Now(), s.ttl):
			link = &existing
			return nil
		case err == nil:
			// TTL elapsed but the sweep has not run; persist the flag so
			// the partial unique index frees the slot for a fresh link.
			expiredAt := existing.CreatedAt.Add(s.ttl)
			if uerr := tx.Model(&existing).
				Updates(map[string]interface{}{"expired": true, "expired_at": expiredAt}).Error; uerr != nil {
				return fmt.Errorf("persisting lazy expiry: %w", uerr)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("looking up active link: %w", err)
		}

		fresh := models.ReferralLink{
			AffiliateID: affiliateID,
			CourseID:    courseID,
			Link:        s.DeriveLink(affiliateID, courseID),
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("creating link: %w", err)
		}
		link = &fresh
		created = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race against a concurrent create; the winner's row is the
		// one to return.
		if existing, ferr := s.findActive(s.db.WithContext(ctx), affiliateID, courseID); ferr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("resolving concurrent create: %w", err)
	}
	if err != nil {
		return nil, false, err
	}
	return link, created, nil
}

// ListActiveLinks returns the affiliate's links that are neither soft-deleted
// nor expired (by flag or elapsed TTL), most recent first.
func (s *Service) ListActiveLinks(ctx context.Context, affiliateID uuid.UUID) ([]models.ReferralLink, error) {
	query := s.db.WithContext(ctx).
		Where("affiliate_id = ? AND is_soft_deleted = ? AND expired = ?", affiliateID, false, false).
		Order("created_at DESC")
	if s.ttl > 0 {
		query = query.Where("created_at > ?", time.Now().Add(-s.ttl))
	}

	var links []models.ReferralLink
	if err := query.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	return links, nil
}

// GetLink fetches a link by id regardless of its expired or soft-deleted
// state; the record is retained for audit. The returned Expired field
// reflects lazy evaluation, not only the stored flag.
func (s *Service) GetLink(ctx context.Context, id uuid.UUID) (*models.ReferralLink, error) {
	var link models.ReferralLink
	if err := s.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("loading link: %w", err)
	}
	s.applyLazyExpiry(&link)
	return &link, nil
}

// ExpireLink marks a link expired at now. No-op if already expired. Only the
// owning affiliate or an admin may expire a link.
func (s *Service) ExpireLink(ctx context.Context, id, requesterID uuid.UUID, admin bool) (*models.ReferralLink, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && link.AffiliateID != requesterID {
		return nil, ErrNotOwner
	}
	if link.Expired && link.ExpiredAt != nil {
		return link, nil
	}

	now := time.Now()
	expiredAt := now
	if link.Expired && link.ExpiredAt == nil {
		// Lazily expired: pin the timestamp to the end of the TTL window.
		expiredAt = link.CreatedAt.Add(s.ttl)
	}
	err = s.db.WithContext(ctx).Model(link).
		Updates(map[string]interface{}{"expired": true, "expired_at": expiredAt}).Error
	if err != nil {
		return nil, fmt.Errorf("expiring link: %w", err)
	}
	link.Expired = true
	link.ExpiredAt = &expiredAt
	return link, nil
}

// SoftDeleteLink hides a link from active queries without removing it. The
// expired state is left untouched.
func (s *Service) SoftDeleteLink(ctx context.Context, id, requesterID uuid.UUID, admin bool) error {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if !admin && link.AffiliateID != requesterID {
		return ErrNotOwner
	}
	if link.IsSoftDeleted {
		return nil
	}

	err = s.db.WithContext(ctx).Model(link).Update("is_soft_deleted", true).Error
	if err != nil {
		return fmt.Errorf("soft-deleting link: %w", err)
	}
	return nil
}

// DeriveLink builds the deterministic link string for a pair. A stable
// digest of the two ids keeps creation idempotent without a uniqueness
// lookup race.
func (s *Service) DeriveLink(affiliateID, courseID uuid.UUID) string {
	sum := sha256.Sum256([]byte(affiliateID.String() + ":" + courseID.String()))
	return s.baseURL + "/" + base64.RawURLEncoding.EncodeToString(sum[:12])
}

func (s *Service) findActive(tx *gorm.DB, affiliateID, courseID uuid.UUID) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := tx.
		Where("affiliate_id = ? AND course_id = ? AND is_soft_deleted = ? AND expired = ?",
			affiliateID, courseID, false, false).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up active link: %w", err)
	}
	if link.ExpiredBy(time.Now(), s.ttl) {
		// TTL elapsed but the sweep has not persisted the flag yet; the row
		// no longer counts as active.
		return nil, nil
	}
	return &link, nil
}

// applyLazyExpiry makes a TTL-elapsed link report as expired, with the
// expiry timestamp pinned to the end of the issuance window. An expired link
// always carries a non-nil ExpiredAt, persisted or not.
func (s *Service) applyLazyExpiry(link *models.ReferralLink) {
	if !link.ExpiredBy(time.Now(), s.ttl) {
		return
	}
	link.Expired = true
	if link.ExpiredAt == nil {
		expiredAt := link.CreatedAt.Add(s.ttl)
		link.ExpiredAt = &expiredAt
	}
}
