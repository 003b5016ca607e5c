// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Response
// model.
//
// The central operation is UpsertResponse: the storage-level guarantee that
// at most one live response exists per (instance, question identity). It is
// implemented as a single conditional write (INSERT ... ON CONFLICT DO
// UPDATE) on the compound unique index, not as a read-then-write sequence,
// so concurrent duplicate submissions of the same question converge to one
// row holding the last-applied value instead of racing into a duplicate
// insert.
//
// Error semantics:
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// UpsertResponse inserts or updates the answer for questionIdentity within
// instanceID in one atomic statement. On conflict only value, comment,
// score, and the answer timestamp change; the creation timestamp and owning
// instance are immutable. A previously soft-deleted row is revived.
//
// It returns the live row as stored (the original row id is kept when the
// write updated an existing record).
func UpsertResponse(ctx context.Context, db *gorm.DB, instanceID, questionIdentity, questionType, value, comment string, score *float64) (*domain.Response, error) {
	now := time.Now().UTC()
	r := &domain.Response{
		ID:               uuid.NewString(),
		InstanceID:       instanceID,
		QuestionIdentity: questionIdentity,
		QuestionType:     questionType,
		Value:            value,
		Comment:          comment,
		Score:            score,
		AnsweredAt:       now,
		CreatedAt:        now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "response_instance_id"}, {Name: "question_identity"}},
		DoUpdates: clause.Assignments(map[string]any{
			"question_type": questionType,
			"value":         value,
			"comment":       comment,
			"score":         score,
			"answered_at":   now,
			"updated_at":    now,
			"deleted_at":    nil,
		}),
	}).Create(r).Error
	if err != nil {
		return nil, err
	}
	return GetResponse(ctx, db, instanceID, questionIdentity)
}

// GetResponse fetches the live answer for one question within an instance,
// or ErrNotFound.
func GetResponse(ctx context.Context, db *gorm.DB, instanceID, questionIdentity string) (*domain.Response, error) {
	var r domain.Response
	err := db.WithContext(ctx).
		Where("response_instance_id = ? AND question_identity = ?", instanceID, questionIdentity).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListInstanceResponses returns all live responses of one instance, ordered
// deterministically (AnsweredAt ASC, ID ASC).
func ListInstanceResponses(ctx context.Context, db *gorm.DB, instanceID string) ([]domain.Response, error) {
	var out []domain.Response
	err := db.WithContext(ctx).
		Where("response_instance_id = ?", instanceID).
		Order("answered_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListSurveyResponses returns every live response recorded against live
// instances of surveyID, optionally restricted to one question identity.
// Ordering is deterministic (AnsweredAt ASC, ID ASC) so aggregation output
// (e.g. first-seen label order) is stable.
func ListSurveyResponses(ctx context.Context, db *gorm.DB, surveyID, questionIdentity string) ([]domain.Response, error) {
	q := db.WithContext(ctx).
		Joins("JOIN response_instances ri ON ri.id = responses.response_instance_id AND ri.deleted_at IS NULL").
		Where("ri.survey_id = ?", surveyID)
	if questionIdentity != "" {
		q = q.Where("responses.question_identity = ?", questionIdentity)
	}
	var out []domain.Response
	err := q.Order("responses.answered_at ASC, responses.id ASC").Find(&out).Error
	return out, err
}

// CountInstanceResponses returns the number of live responses in an
// instance. Progress counters are always refreshed from this count rather
// than incremented, so they stay correct under retries.
func CountInstanceResponses(ctx context.Context, db *gorm.DB, instanceID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Response{}).
		Where("response_instance_id = ?", instanceID).
		Count(&total).Error
	return total, err
}

// SoftDeleteResponse marks one response deleted. The row is retained; the
// compound unique index still holds it, and a later upsert of the same
// question revives it. Returns ErrNotFound if no live row matched.
func SoftDeleteResponse(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Response{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
