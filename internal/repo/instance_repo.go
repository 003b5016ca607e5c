// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ResponseInstance model: resolve-or-create by respondent key, visit and
// progress bookkeeping, and the completion transition.
//
// Keying rules:
//   - An authenticated respondent is keyed by (survey_id, respondent_id);
//     the remote address is recorded for audit but never used to resolve.
//   - An anonymous respondent is keyed by (survey_id, remote_addr_key) with
//     an empty respondent id; the address must already be normalized by the
//     caller (identity.NormalizeAddr).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// FindInstance resolves the live instance for the given respondent key, or
// ErrNotFound. Exactly one of respondentID / remoteAddr participates in the
// lookup: an authenticated respondent is never resolved by address.
func FindInstance(ctx context.Context, db *gorm.DB, surveyID, respondentID, remoteAddr string) (*domain.ResponseInstance, error) {
	q := db.WithContext(ctx).Where("survey_id = ?", surveyID)
	if respondentID != "" {
		q = q.Where("respondent_id = ?", respondentID)
	} else {
		q = q.Where("respondent_id = '' AND remote_addr_key = ?", remoteAddr)
	}
	var inst domain.ResponseInstance
	if err := q.First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// CreateInstance inserts a new instance for the respondent key with status
// InProgress and a first-visit count of one. A unique-key violation means
// the key is already occupied, either by a live row (a concurrent request
// created it first; it is returned as-is) or by a soft-deleted row, which
// still holds the unique index and is revived in place so the respondent
// can start over.
func CreateInstance(ctx context.Context, db *gorm.DB, surveyID, respondentID, remoteAddr string) (*domain.ResponseInstance, error) {
	now := time.Now().UTC()
	addrKey := remoteAddr
	if respondentID != "" {
		// The address never participates in an authenticated key.
		addrKey = ""
	}
	inst := &domain.ResponseInstance{
		ID:            uuid.NewString(),
		SurveyID:      surveyID,
		RespondentID:  respondentID,
		RemoteAddr:    remoteAddr,
		RemoteAddrKey: addrKey,
		Status:        domain.InstanceInProgress,
		VisitCount:    1,
		StartedAt:     now,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(inst).Error; err != nil {
		if isUniqueViolation(err) {
			return reviveInstance(ctx, db, surveyID, respondentID, addrKey)
		}
		return nil, err
	}
	return inst, nil
}

// reviveInstance resolves the unique-key conflict behind a failed insert.
// When no live row matches, the conflicting row must be soft-deleted; it is
// revived with its original id and StartedAt, re-entering InProgress with
// cleared completion state, the same way a resubmitted response revives its
// soft-deleted row.
func reviveInstance(ctx context.Context, db *gorm.DB, surveyID, respondentID, addrKey string) (*domain.ResponseInstance, error) {
	inst, err := FindInstance(ctx, db, surveyID, respondentID, addrKey)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	q := db.WithContext(ctx).Unscoped().Where("survey_id = ?", surveyID)
	if respondentID != "" {
		q = q.Where("respondent_id = ?", respondentID)
	} else {
		q = q.Where("respondent_id = '' AND remote_addr_key = ?", addrKey)
	}
	var dead domain.ResponseInstance
	if err := q.First(&dead).Error; err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Unscoped().
		Model(&domain.ResponseInstance{}).
		Where("id = ?", dead.ID).
		Updates(map[string]any{
			"deleted_at":   nil,
			"status":       domain.InstanceInProgress,
			"completed_at": nil,
			"visit_count":  gorm.Expr("visit_count + 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return GetInstance(ctx, db, dead.ID)
}

// GetInstance fetches an instance by id, or ErrNotFound.
func GetInstance(ctx context.Context, db *gorm.DB, id string) (*domain.ResponseInstance, error) {
	var inst domain.ResponseInstance
	if err := db.WithContext(ctx).Where("id = ?", id).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// TouchVisit increments the visit counter and re-enters InProgress for
// instances that are not yet completed. Preview requests must not call this.
func TouchVisit(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.ResponseInstance{}).
		Where("id = ? AND status <> ?", id, domain.InstanceCompleted).
		Updates(map[string]any{
			"visit_count": gorm.Expr("visit_count + 1"),
			"status":      domain.InstanceInProgress,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// RefreshProgress recomputes the answered-question counter from a live count
// of live responses and records the furthest page index reached. Counters
// are never incremented ad hoc, so retried submissions cannot drift them.
func RefreshProgress(ctx context.Context, db *gorm.DB, id string, lastPageIndex int) error {
	answered, err := CountInstanceResponses(ctx, db, id)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).
		Model(&domain.ResponseInstance{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"answered_count": answered,
			"updated_at":     time.Now().UTC(),
		}).Error
	if err != nil || lastPageIndex < 0 {
		return err
	}
	// The page pointer only ever moves forward.
	return db.WithContext(ctx).
		Model(&domain.ResponseInstance{}).
		Where("id = ? AND last_page_index < ?", id, lastPageIndex).
		Update("last_page_index", lastPageIndex).Error
}

// CompleteInstance transitions an instance to the terminal Completed state
// and captures completion metadata. Completing an already-completed instance
// is a no-op (the first completion's metadata wins). Returns ErrNotFound
// when the instance does not exist.
func CompleteInstance(ctx context.Context, db *gorm.DB, id, userAgent, referrer, tags string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.ResponseInstance{}).
		Where("id = ? AND status <> ?", id, domain.InstanceCompleted).
		Updates(map[string]any{
			"status":       domain.InstanceCompleted,
			"completed_at": now,
			"user_agent":   userAgent,
			"referrer":     referrer,
			"tags":         tags,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either missing or already completed; distinguish the two.
		if _, err := GetInstance(ctx, db, id); err != nil {
			return err
		}
	}
	return nil
}

// SoftDeleteInstance marks an instance deleted. Its responses are retained
// (conceptual cascade only); the core never hard-deletes respondent data.
func SoftDeleteInstance(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ResponseInstance{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed: unique")
}
