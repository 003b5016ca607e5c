// Package domain defines the persistence models for the survey backend.
// This file contains the respondent-facing write-side models: one
// ResponseInstance per respondent attempt, and one Response row per answered
// question within that attempt.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ResponseInstance lifecycle states. Completed is terminal.
const (
	InstanceNotStarted = "not_started"
	InstanceInProgress = "in_progress"
	InstanceCompleted  = "completed"
)

// ResponseInstance represents one respondent's attempt at one survey.
//
// Exactly one of RespondentID and RemoteAddr is the resolving key: an
// authenticated respondent is keyed by RespondentID (RemoteAddr may still be
// recorded for audit), an anonymous respondent is keyed by the normalized
// RemoteAddr with an empty RespondentID. The compound unique index over
// (survey_id, respondent_id, remote_addr_key) enforces one live instance per
// resolving key; RemoteAddrKey is empty for authenticated instances so the IP
// never participates in their key.
//
// Progress counters (AnsweredCount, LastPageIndex) are always recomputed from
// a live count of responses, never incremented ad hoc, so they stay correct
// under submission retries. Completion metadata (user agent, referrer, tags)
// is captured once on the transition to Completed.
type ResponseInstance struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	SurveyID      string     `json:"survey_id"      gorm:"type:char(36);not null;index:idx_survey_instances;uniqueIndex:ux_instance_respondent,priority:1"`
	RespondentID  string     `json:"respondent_id"  gorm:"type:varchar(64);uniqueIndex:ux_instance_respondent,priority:2"`
	RemoteAddr    string     `json:"remote_addr"    gorm:"type:varchar(64)"`
	RemoteAddrKey string     `json:"-"              gorm:"type:varchar(64);uniqueIndex:ux_instance_respondent,priority:3"`
	Status        string     `json:"status"         gorm:"type:varchar(16);not null;default:'not_started';check:status IN ('not_started','in_progress','completed')"`
	AnsweredCount int        `json:"answered_count" gorm:"not null;default:0"`
	LastPageIndex int        `json:"last_page_index" gorm:"not null;default:0"`
	VisitCount    int        `json:"visit_count"    gorm:"not null;default:0"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty" gorm:"type:varchar(512)"`
	Referrer      string     `json:"referrer,omitempty"   gorm:"type:varchar(2048)"`
	Tags          string     `json:"tags,omitempty"       gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for ResponseInstance.
func (ResponseInstance) TableName() string { return "response_instances" }

// Response is one answer to one question within one ResponseInstance.
//
// QuestionIdentity is the effective identity of the question at submission
// time: the durable id when the question had one, otherwise the derived
// content hash. The unique index over (response_instance_id,
// question_identity) is the storage-level guarantee behind "at most one live
// response per question per instance"; resubmissions update the existing row
// through a single conditional write (see repo.UpsertResponse).
//
// Value holds the canonical normalized shape serialized as JSON (see the
// answers package). On update only Value, Comment, Score, and AnsweredAt
// change; CreatedAt and the owning instance are immutable.
type Response struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	InstanceID       string         `json:"instance_id"       gorm:"column:response_instance_id;type:char(36);not null;uniqueIndex:ux_response_instance_question,priority:1"`
	QuestionIdentity string         `json:"question_identity" gorm:"type:varchar(64);not null;uniqueIndex:ux_response_instance_question,priority:2"`
	QuestionType     string         `json:"question_type"     gorm:"type:varchar(32);not null"`
	Value            string         `json:"value"             gorm:"type:text;not null"`
	Comment          string         `json:"comment,omitempty" gorm:"type:text"`
	Score            *float64       `json:"score,omitempty"`
	AnsweredAt       time.Time      `json:"answered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	// Instance is the owning attempt. Responses are cascade-deleted when
	// their instance is removed.
	Instance ResponseInstance `json:"-" gorm:"foreignKey:InstanceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Response.
func (Response) TableName() string { return "responses" }
