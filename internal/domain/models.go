// Package domain defines the persistence models for surveys, response
// instances, and responses. These types are mapped with GORM and form the
// core data layer of the survey backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Survey is the root of a survey definition: an ordered set of pages owned by
// the authoring layer. The collection and aggregation core treats a loaded
// Survey (with its pages, questions, options, rows, and columns preloaded) as
// an immutable snapshot and never writes to it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: survey title, also printed in export headers.
//   - Description: optional free text shown to respondents.
//   - Pages: ordered child pages (Position ASC).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Survey struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null;default:'Untitled survey'"`
	Description string         `json:"description" gorm:"type:text"`
	Pages       []Page         `json:"pages"       gorm:"foreignKey:SurveyID;references:ID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Survey.
func (Survey) TableName() string { return "surveys" }

// Page groups questions for a single rendered step of a survey. Position is
// significant: pagination walks pages in Position order, and a page's id
// scopes content-identity derivation for questions lacking a durable id.
type Page struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	SurveyID  string         `json:"survey_id" gorm:"type:char(36);not null;index:idx_survey_pages"`
	Position  int            `json:"position"  gorm:"not null"`
	Title     string         `json:"title"     gorm:"type:varchar(255)"`
	Questions []Question     `json:"questions" gorm:"foreignKey:PageID;references:ID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Page.
func (Page) TableName() string { return "pages" }

// Question is one prompt within a page. DurableID is the identifier assigned
// at authoring time; legacy and draft questions may carry an empty DurableID,
// in which case their effective identity is derived deterministically from
// (page id, position, text, type); see the identity package.
//
// Options are populated for choice-like types; Rows and Columns only for
// matrix types.
type Question struct {
	ID        string           `json:"id"         gorm:"type:char(36);primaryKey"`
	PageID    string           `json:"page_id"    gorm:"type:char(36);not null;index:idx_page_questions"`
	DurableID string           `json:"durable_id" gorm:"type:varchar(64);index"`
	Position  int              `json:"position"   gorm:"not null"`
	Text      string           `json:"text"       gorm:"type:text;not null"`
	Type      string           `json:"type"       gorm:"type:varchar(32);not null"`
	Required  bool             `json:"required"`
	Options   []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID;references:ID"`
	Rows      []MatrixRow      `json:"rows,omitempty"    gorm:"foreignKey:QuestionID;references:ID"`
	Columns   []MatrixColumn   `json:"columns,omitempty" gorm:"foreignKey:QuestionID;references:ID"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// QuestionOption is a selectable answer for choice-like question types.
type QuestionOption struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	QuestionID string         `json:"question_id" gorm:"type:char(36);not null;index:idx_question_options"`
	Position   int            `json:"position"    gorm:"not null"`
	Label      string         `json:"label"       gorm:"type:varchar(512);not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for QuestionOption.
func (QuestionOption) TableName() string { return "question_options" }

// MatrixRow is one statement of a matrix question. Identity rules mirror
// Question, except the identity scope is the owning question's effective
// identity rather than the page id.
type MatrixRow struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	QuestionID string         `json:"question_id" gorm:"type:char(36);not null;index:idx_question_rows"`
	DurableID  string         `json:"durable_id"  gorm:"type:varchar(64);index"`
	Position   int            `json:"position"    gorm:"not null"`
	Label      string         `json:"label"       gorm:"type:varchar(512);not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for MatrixRow.
func (MatrixRow) TableName() string { return "matrix_rows" }

// MatrixColumn is one answer column of a matrix question. Weight, when set,
// feeds the weighted score totals reported by the aggregation layer; columns
// without a weight contribute counts only.
type MatrixColumn struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	QuestionID string         `json:"question_id" gorm:"type:char(36);not null;index:idx_question_cols"`
	DurableID  string         `json:"durable_id"  gorm:"type:varchar(64);index"`
	Position   int            `json:"position"    gorm:"not null"`
	Label      string         `json:"label"       gorm:"type:varchar(512);not null"`
	Weight     *float64       `json:"weight,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for MatrixColumn.
func (MatrixColumn) TableName() string { return "matrix_columns" }
