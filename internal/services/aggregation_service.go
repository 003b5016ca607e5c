// Package services – AggregationService
//
// This file implements the single aggregation path for survey analytics and
// export. It consumes one immutable definition snapshot plus the full set of
// stored responses for a survey, reconciles every response against the
// definition through the identity resolver (so responses recorded under an
// ordinal or content hash still land on the right question after the
// definition evolved), and produces per-question summaries:
//
//   - choice-like types: frequency distributions in first-seen label order
//   - matrix types: row×column cross-tabs with weighted score totals
//   - open-text types: verbatim non-empty answers with timestamps
//
// Responses whose identity resolves to no current element are orphans:
// excluded from every summary, never fatal. The service is read-only and
// idempotent; it holds no state between calls and is safe to run
// concurrently for different surveys.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/answers"
	"github.com/surveyhive/go-survey-backend/internal/domain"
	"github.com/surveyhive/go-survey-backend/internal/identity"
	"github.com/surveyhive/go-survey-backend/internal/repo"
)

// SummaryKind discriminates the shape of a QuestionSummary.
type SummaryKind string

const (
	// SummaryChoice is a frequency distribution over option labels.
	SummaryChoice SummaryKind = "choice"
	// SummaryMatrix is a row×column cross-tab with score totals.
	SummaryMatrix SummaryKind = "matrix"
	// SummaryText is a verbatim listing of answers.
	SummaryText SummaryKind = "text"
)

// OptionCount is one frequency entry of a choice summary. Entries appear in
// first-seen order of distinct labels.
type OptionCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MatrixColumnHeader describes one cross-tab column.
type MatrixColumnHeader struct {
	Identity string   `json:"identity"`
	Label    string   `json:"label"`
	Weight   *float64 `json:"weight,omitempty"`
}

// MatrixRowSummary is the cross-tab line for one statement: per-column
// counts (aligned with the summary's Columns), the weighted score earned,
// and the maximum score possible given how many answers the row received.
type MatrixRowSummary struct {
	Identity string  `json:"identity"`
	Label    string  `json:"label"`
	Counts   []int   `json:"counts"`
	Answered int     `json:"answered"`
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
}

// TextAnswer is one verbatim open-text response.
type TextAnswer struct {
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// QuestionSummary is the aggregation result for one question. Exactly one
// of Options, Rows/Columns, or Texts is populated, selected by Kind. Total
// counts the responses that contributed.
type QuestionSummary struct {
	Identity string      `json:"identity"`
	Text     string      `json:"text"`
	Type     string      `json:"type"`
	Kind     SummaryKind `json:"kind"`
	Total    int         `json:"total"`

	Options []OptionCount `json:"options,omitempty"`

	Columns  []MatrixColumnHeader `json:"columns,omitempty"`
	Rows     []MatrixRowSummary   `json:"rows,omitempty"`
	Weighted bool                 `json:"weighted,omitempty"`

	Texts []TextAnswer `json:"texts,omitempty"`
}

// AggregationService computes question summaries and survey overviews. It is
// stateless apart from the database handle.
type AggregationService struct {
	// DB is the GORM handle used for definition and response reads.
	DB *gorm.DB
}

// NewAggregationService constructs an AggregationService.
func NewAggregationService(db *gorm.DB) *AggregationService {
	return &AggregationService{DB: db}
}

// Aggregate produces one summary per question of the survey, in page then
// position order. Persistence failures are wrapped in ErrAggregationFailed
// with the survey attached; no partial result accompanies an error.
func (s *AggregationService) Aggregate(ctx context.Context, surveyID string) ([]QuestionSummary, error) {
	def, err := repo.GetSurveyDefinition(ctx, s.DB, surveyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	responses, err := repo.ListSurveyResponses(ctx, s.DB, surveyID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	return aggregate(def, responses), nil
}

// QuestionAnalytics aggregates a single question addressed by any candidate
// identity (durable id, ordinal, or content hash). ErrQuestionNotFound is
// returned when the candidate resolves to no current element.
func (s *AggregationService) QuestionAnalytics(ctx context.Context, surveyID, candidate string) (*QuestionSummary, error) {
	def, err := repo.GetSurveyDefinition(ctx, s.DB, surveyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	res := identity.NewResolver(def)
	q, ok := res.ResolveQuestion(candidate)
	if !ok {
		return nil, ErrQuestionNotFound
	}
	responses, err := repo.ListSurveyResponses(ctx, s.DB, surveyID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: survey %s question %s: %v", ErrAggregationFailed, surveyID, candidate, err)
	}
	summary := summarizeQuestion(res, q, groupByQuestion(res, responses)[q.Identity])
	return &summary, nil
}

// aggregate is the pure core: definition snapshot in, summaries out.
func aggregate(def *domain.Survey, responses []domain.Response) []QuestionSummary {
	res := identity.NewResolver(def)
	grouped := groupByQuestion(res, responses)

	out := make([]QuestionSummary, 0, len(res.Questions()))
	for _, q := range res.Questions() {
		out = append(out, summarizeQuestion(res, q, grouped[q.Identity]))
	}
	return out
}

// groupByQuestion buckets responses by the effective identity of the
// question they resolve to. Orphans (no current element) are dropped here,
// silently and deliberately.
func groupByQuestion(res *identity.Resolver, responses []domain.Response) map[string][]domain.Response {
	grouped := make(map[string][]domain.Response)
	for _, r := range responses {
		q, ok := res.ResolveQuestion(r.QuestionIdentity)
		if !ok {
			continue
		}
		grouped[q.Identity] = append(grouped[q.Identity], r)
	}
	return grouped
}

func summarizeQuestion(res *identity.Resolver, q *identity.QuestionRef, rs []domain.Response) QuestionSummary {
	summary := QuestionSummary{
		Identity: q.Identity,
		Text:     q.Question.Text,
		Type:     q.Question.Type,
		Total:    len(rs),
	}
	switch {
	case domain.IsMatrixType(q.Question.Type):
		summary.Kind = SummaryMatrix
		summarizeMatrix(&summary, res, q, rs)
	case domain.IsChoiceType(q.Question.Type):
		summary.Kind = SummaryChoice
		summarizeChoice(&summary, rs)
	default:
		// Text types and anything outside the taxonomy: list verbatim.
		summary.Kind = SummaryText
		summarizeText(&summary, rs)
	}
	return summary
}

// summarizeChoice builds the frequency distribution. Each scalar answer
// contributes one count; each member of a set answer contributes one count.
// Labels appear in first-seen order.
func summarizeChoice(summary *QuestionSummary, rs []domain.Response) {
	index := make(map[string]int)
	for _, r := range rs {
		cv, err := answers.Decode(r.Value)
		if err != nil {
			continue
		}
		labels := cv.Set
		if cv.Kind != answers.KindSet {
			labels = []string{cv.Scalar}
		}
		for _, label := range labels {
			if label == "" {
				continue
			}
			i, seen := index[label]
			if !seen {
				index[label] = len(summary.Options)
				summary.Options = append(summary.Options, OptionCount{Label: label})
				i = index[label]
			}
			summary.Options[i].Count++
		}
	}
}

// resolvePairMember maps one stored pair member back to its current
// effective identity. Stored pairs carry whatever identity the row or
// column had at submit time; after the author assigns a durable id, that
// old identity is a content hash the resolver still recognizes. Members
// that resolve to the wrong kind, or into another question, stay unmapped.
func resolvePairMember(res *identity.Resolver, q *identity.QuestionRef, candidate string, kind identity.ElementKind) (string, bool) {
	el, ok := res.Resolve(candidate)
	if !ok || el.Kind != kind || el.Question.Identity != q.Identity {
		return "", false
	}
	return el.Identity, true
}

// summarizeMatrix builds the cross-tab: counts[row][column] incremented for
// every stored pair whose row and column both resolve to a current element
// of the question. Score totals use only weighted columns; a row's possible
// score is its answered-pair count times the maximum column weight.
func summarizeMatrix(summary *QuestionSummary, res *identity.Resolver, q *identity.QuestionRef, rs []domain.Response) {
	colIdx := make(map[string]int, len(q.Columns))
	for i, c := range q.Columns {
		summary.Columns = append(summary.Columns, MatrixColumnHeader{
			Identity: c.Identity,
			Label:    c.Column.Label,
			Weight:   c.Column.Weight,
		})
		colIdx[c.Identity] = i
		if c.Column.Weight != nil {
			summary.Weighted = true
		}
	}
	rowIdx := make(map[string]int, len(q.Rows))
	for i, r := range q.Rows {
		summary.Rows = append(summary.Rows, MatrixRowSummary{
			Identity: r.Identity,
			Label:    r.Row.Label,
			Counts:   make([]int, len(q.Columns)),
		})
		rowIdx[r.Identity] = i
	}

	maxWeight := 0.0
	for _, c := range q.Columns {
		if c.Column.Weight != nil && *c.Column.Weight > maxWeight {
			maxWeight = *c.Column.Weight
		}
	}

	for _, r := range rs {
		cv, err := answers.Decode(r.Value)
		if err != nil || cv.Kind != answers.KindPairs {
			continue
		}
		for _, p := range cv.Pairs {
			rowID, rok := resolvePairMember(res, q, p.Row, identity.KindRow)
			colID, cok := resolvePairMember(res, q, p.Column, identity.KindColumn)
			if !rok || !cok {
				continue
			}
			ri := rowIdx[rowID]
			ci := colIdx[colID]
			row := &summary.Rows[ri]
			row.Counts[ci]++
			row.Answered++
			if w := summary.Columns[ci].Weight; w != nil {
				row.Earned += *w
			}
		}
	}

	if summary.Weighted {
		for i := range summary.Rows {
			summary.Rows[i].Possible = float64(summary.Rows[i].Answered) * maxWeight
		}
	}
}

// summarizeText lists every non-empty scalar verbatim, paired with its
// answer timestamp, in stored order.
func summarizeText(summary *QuestionSummary, rs []domain.Response) {
	for _, r := range rs {
		cv, err := answers.Decode(r.Value)
		if err != nil || cv.Kind != answers.KindScalar || cv.Scalar == "" {
			continue
		}
		summary.Texts = append(summary.Texts, TextAnswer{Value: cv.Scalar, AnsweredAt: r.AnsweredAt})
	}
}

//
// Survey overview
//

// Overview reports survey-level participation: per-state instance totals,
// an integer completion rate, and the daily started-instances timeline.
type Overview struct {
	Total                 int64             `json:"total"`
	Completed             int64             `json:"completed"`
	InProgress            int64             `json:"in_progress"`
	NotStarted            int64             `json:"not_started"`
	CompletionRatePercent int               `json:"completion_rate_percent"`
	DailyTimeline         []repo.DailyCount `json:"daily_timeline"`
}

// Overview computes participation totals for one survey. A survey with no
// instances reports a completion rate of 0, never a division by zero.
func (s *AggregationService) Overview(ctx context.Context, surveyID string) (*Overview, error) {
	if _, err := repo.GetSurveyDefinition(ctx, s.DB, surveyID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	counts, err := repo.CountInstances(ctx, s.DB, surveyID)
	if err != nil {
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	timeline, err := repo.DailyStartedTimeline(ctx, s.DB, surveyID)
	if err != nil {
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}

	rate := 0
	if counts.Total > 0 {
		rate = int(math.Round(float64(counts.Completed) / float64(counts.Total) * 100))
	}
	return &Overview{
		Total:                 counts.Total,
		Completed:             counts.Completed,
		InProgress:            counts.InProgress,
		NotStarted:            counts.NotStarted,
		CompletionRatePercent: rate,
		DailyTimeline:         timeline,
	}, nil
}
