// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only access to survey definitions.
//
// The definition snapshot is fetched once per render or aggregation pass and
// treated as immutable afterwards: the collection/aggregation core never
// writes to the authoring tables. Preloads are ordered so the snapshot
// arrives in display order and identity derivation is deterministic.
//
// Error semantics:
//   - When a survey is not found, functions return ErrNotFound (an alias of
//     gorm.ErrRecordNotFound).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetSurveyDefinition fetches one survey with its full page/question/option/
// row/column tree preloaded in position order. The result is the immutable
// snapshot every identity resolution and aggregation pass works over.
func GetSurveyDefinition(ctx context.Context, db *gorm.DB, surveyID string) (*domain.Survey, error) {
	var s domain.Survey
	err := db.WithContext(ctx).
		Preload("Pages", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Pages.Questions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Pages.Questions.Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Pages.Questions.Rows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Pages.Questions.Columns", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("id = ?", surveyID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
