// Package services defines the business logic for survey collection,
// aggregation, and export. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrSurveyNotFound indicates that the requested survey does not exist.
	ErrSurveyNotFound = errors.New("survey not found")

	// ErrPageNotFound indicates that the requested page does not belong to
	// the survey.
	ErrPageNotFound = errors.New("page not found")

	// ErrInstanceNotFound indicates that the requested response instance
	// does not exist.
	ErrInstanceNotFound = errors.New("response instance not found")

	// ErrInstanceForbidden is returned when a response instance belongs to a
	// different authenticated respondent than the caller.
	ErrInstanceForbidden = errors.New("response instance belongs to another respondent")

	// ErrQuestionNotFound indicates that a question identity matches no
	// element of the current survey definition. Aggregation treats stored
	// responses with such identities as orphans (excluded, non-fatal); this
	// error is only surfaced when a caller asks for that identity directly.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrMissingAddress is returned when an anonymous collector request
	// carries no usable requester address.
	ErrMissingAddress = errors.New("requester address required for anonymous responses")

	// ErrPreviewReadOnly is returned when a preview-mode request attempts to
	// submit responses. Preview must never mutate collector state.
	ErrPreviewReadOnly = errors.New("preview requests cannot submit responses")

	// ErrAggregationFailed wraps persistence failures during aggregation or
	// export, with the failing survey/question attached by the caller. No
	// partial result is ever returned alongside it.
	ErrAggregationFailed = errors.New("aggregation failed")
)
