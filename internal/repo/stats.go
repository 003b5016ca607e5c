// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries for
// the survey-overview endpoint. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// InstanceCounts holds the per-state instance totals of one survey.
type InstanceCounts struct {
	Total      int64
	Completed  int64
	InProgress int64
	NotStarted int64
}

// CountInstances returns the number of live instances per lifecycle state
// for the given survey.
func CountInstances(ctx context.Context, db *gorm.DB, surveyID string) (InstanceCounts, error) {
	var out InstanceCounts
	base := func() *gorm.DB {
		return db.WithContext(ctx).
			Model(&domain.ResponseInstance{}).
			Where("survey_id = ?", surveyID)
	}
	if err := base().Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := base().Where("status = ?", domain.InstanceCompleted).Count(&out.Completed).Error; err != nil {
		return out, err
	}
	if err := base().Where("status = ?", domain.InstanceInProgress).Count(&out.InProgress).Error; err != nil {
		return out, err
	}
	if err := base().Where("status = ?", domain.InstanceNotStarted).Count(&out.NotStarted).Error; err != nil {
		return out, err
	}
	return out, nil
}

// DailyCount is one point of the started-instances timeline.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DailyStartedTimeline returns, per calendar day (UTC, ISO date ascending),
// how many instances were started for the survey. Days without activity are
// simply absent.
func DailyStartedTimeline(ctx context.Context, db *gorm.DB, surveyID string) ([]DailyCount, error) {
	var out []DailyCount
	err := db.WithContext(ctx).
		Model(&domain.ResponseInstance{}).
		Select("strftime('%Y-%m-%d', started_at) AS date, COUNT(*) AS count").
		Where("survey_id = ?", surveyID).
		Group("date").
		Order("date ASC").
		Scan(&out).Error
	return out, err
}
