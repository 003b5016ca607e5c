// Package domain defines the persistence models for the survey backend.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed
// submission, keyed by (respondent_id, survey_id, key). It enables safe
// retries for response submissions by returning the originally produced
// instance summary without re-executing side effects.
type Idempotency struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	RespondentID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_respondent_survey_key,priority:1"`
	SurveyID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_respondent_survey_key,priority:2"`
	Key          string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_respondent_survey_key,priority:3"`
	InstanceID   string    `gorm:"type:TEXT NOT NULL"`
	Status       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
