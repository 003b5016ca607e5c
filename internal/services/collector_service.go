// Package services – CollectorService
//
// This file implements the respondent-facing collection workflow: rendering
// survey pages with previously stored answers overlaid, and accepting
// submissions. It owns the ResponseInstance lifecycle (resolve-or-create by
// authenticated identity or normalized address, visit counters, completion)
// and delegates identity derivation to the identity package and value
// normalization to the answers package.
//
// Service-level errors (ErrSurveyNotFound, ErrPageNotFound,
// ErrMissingAddress, ErrPreviewReadOnly, ...) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/answers"
	"github.com/surveyhive/go-survey-backend/internal/domain"
	"github.com/surveyhive/go-survey-backend/internal/identity"
	"github.com/surveyhive/go-survey-backend/internal/repo"
)

// CollectorConfig gathers the rendering and submission defaults that would
// otherwise end up scattered through the flow. It is constructed once (from
// application config) and carried by the service.
type CollectorConfig struct {
	// MaxAnswersPerSubmission caps how many answers one submission may
	// carry; excess answers are ignored. Zero disables the cap.
	MaxAnswersPerSubmission int
	// MaxTextRunes truncates free-text scalar answers beyond this rune
	// count. Zero disables truncation.
	MaxTextRunes int
	// AllowAnonymous permits IP-keyed instances. When false, requests
	// without an authenticated respondent are rejected.
	AllowAnonymous bool
}

// DefaultCollectorConfig returns the documented defaults: 200 answers per
// submission, 10000 runes of free text, anonymous collection enabled.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxAnswersPerSubmission: 200,
		MaxTextRunes:            10000,
		AllowAnonymous:          true,
	}
}

// CollectorService orchestrates page rendering and response submission for
// one survey at a time. It is context-aware and safe for concurrent use;
// every operation fetches its own immutable definition snapshot.
type CollectorService struct {
	// DB is the GORM handle used for all collector operations.
	DB *gorm.DB
	// Config carries rendering/submission defaults.
	Config CollectorConfig
}

// NewCollectorService constructs a CollectorService with the given handle
// and configuration.
func NewCollectorService(db *gorm.DB, cfg CollectorConfig) *CollectorService {
	return &CollectorService{DB: db, Config: cfg}
}

//
// Page rendering
//

// RenderPageRequest identifies what to render and for whom.
type RenderPageRequest struct {
	SurveyID     string
	PageID       string // empty selects the first page
	RespondentID string // authenticated identity; empty for anonymous
	RemoteAddr   string // raw requester address (anonymous key source)
	UserAgent    string
	Preview      bool // preview renders without touching collector state
}

// RenderedOption is one selectable option of a rendered question.
type RenderedOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RenderedRow is one matrix statement with its effective identity.
type RenderedRow struct {
	Identity string `json:"identity"`
	Label    string `json:"label"`
}

// RenderedColumn is one matrix column with its effective identity and
// optional score weight.
type RenderedColumn struct {
	Identity string   `json:"identity"`
	Label    string   `json:"label"`
	Weight   *float64 `json:"weight,omitempty"`
}

// RenderedQuestion is a question as delivered to the respondent: every
// element carries an identity (derived when the author never assigned one),
// and Answer holds the previously stored value inverse-mapped for display.
type RenderedQuestion struct {
	Identity string           `json:"identity"`
	Type     string           `json:"type"`
	Text     string           `json:"text"`
	Required bool             `json:"required"`
	Options  []RenderedOption `json:"options,omitempty"`
	Rows     []RenderedRow    `json:"rows,omitempty"`
	Columns  []RenderedColumn `json:"columns,omitempty"`
	Answer   any              `json:"answer,omitempty"`
	Comment  string           `json:"comment,omitempty"`
}

// PagePayload is the rendered form of one survey page plus pagination
// pointers and the respondent's instance state.
type PagePayload struct {
	SurveyID    string             `json:"survey_id"`
	SurveyTitle string             `json:"survey_title"`
	PageID      string             `json:"page_id"`
	PageTitle   string             `json:"page_title,omitempty"`
	PageIndex   int                `json:"page_index"`
	PageCount   int                `json:"page_count"`
	PrevPageID  string             `json:"prev_page_id,omitempty"`
	NextPageID  string             `json:"next_page_id,omitempty"`
	Questions   []RenderedQuestion `json:"questions"`
	InstanceID  string             `json:"instance_id,omitempty"`
	Status      string             `json:"status,omitempty"`
	Preview     bool               `json:"preview,omitempty"`
}

// RenderPage loads the survey definition snapshot, locates the requested
// page, resolves or creates the respondent's instance (unless previewing),
// and renders the page's questions with any stored answers overlaid.
//
// Preview requests never create instances and never touch visit counters.
func (s *CollectorService) RenderPage(ctx context.Context, req RenderPageRequest) (*PagePayload, error) {
	def, err := repo.GetSurveyDefinition(ctx, s.DB, req.SurveyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}
	res := identity.NewResolver(def)

	pageIndex, page, err := locatePage(def, req.PageID)
	if err != nil {
		return nil, err
	}

	payload := &PagePayload{
		SurveyID:    def.ID,
		SurveyTitle: def.Title,
		PageID:      page.ID,
		PageTitle:   page.Title,
		PageIndex:   pageIndex,
		PageCount:   res.PageCount(),
		Preview:     req.Preview,
	}
	if pageIndex > 0 {
		payload.PrevPageID = pageByIndex(def, pageIndex-1).ID
	}
	if pageIndex < res.PageCount()-1 {
		payload.NextPageID = pageByIndex(def, pageIndex+1).ID
	}

	// Stored-answer overlay, skipped entirely in preview mode.
	stored := map[string]domain.Response{}
	if !req.Preview {
		inst, err := s.resolveOrCreateInstance(ctx, req.SurveyID, req.RespondentID, req.RemoteAddr, true)
		if err != nil {
			return nil, err
		}
		payload.InstanceID = inst.ID
		payload.Status = inst.Status

		existing, err := repo.ListInstanceResponses(ctx, s.DB, inst.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range existing {
			// Answers recorded under a pre-drift identity overlay onto the
			// element they resolve to today.
			key := r.QuestionIdentity
			if q, ok := res.ResolveQuestion(r.QuestionIdentity); ok {
				key = q.Identity
			}
			stored[key] = r
		}
	}

	for _, q := range res.Questions() {
		if q.PageIndex != pageIndex {
			continue
		}
		payload.Questions = append(payload.Questions, renderQuestion(res, q, stored))
	}
	return payload, nil
}

func renderQuestion(res *identity.Resolver, q *identity.QuestionRef, stored map[string]domain.Response) RenderedQuestion {
	rq := RenderedQuestion{
		Identity: q.Identity,
		Type:     q.Question.Type,
		Text:     q.Question.Text,
		Required: q.Question.Required,
	}
	for _, o := range q.Question.Options {
		rq.Options = append(rq.Options, RenderedOption{ID: o.ID, Label: o.Label})
	}
	for _, r := range q.Rows {
		rq.Rows = append(rq.Rows, RenderedRow{Identity: r.Identity, Label: r.Row.Label})
	}
	for _, c := range q.Columns {
		rq.Columns = append(rq.Columns, RenderedColumn{Identity: c.Identity, Label: c.Column.Label, Weight: c.Column.Weight})
	}
	if prev, ok := stored[q.Identity]; ok {
		if cv, err := answers.Decode(prev.Value); err == nil {
			if cv.Kind == answers.KindPairs {
				cv.Pairs = remapPairs(res, q, cv.Pairs)
			}
			rq.Answer = answers.Display(cv)
		}
		rq.Comment = prev.Comment
	}
	return rq
}

// remapPairs rewrites stored matrix selections to the row and column
// identities the page renders today, so the client can match checked cells
// after the author assigned durable ids. Members that no longer resolve are
// kept verbatim rather than erased from the respondent's own view.
func remapPairs(res *identity.Resolver, q *identity.QuestionRef, in []answers.Pair) []answers.Pair {
	out := make([]answers.Pair, 0, len(in))
	for _, p := range in {
		rowID, rok := resolvePairMember(res, q, p.Row, identity.KindRow)
		colID, cok := resolvePairMember(res, q, p.Column, identity.KindColumn)
		if !rok || !cok {
			out = append(out, p)
			continue
		}
		out = append(out, answers.Pair{Row: rowID, Column: colID})
	}
	return out
}

//
// Submission
//

// SubmittedAnswer is one inbound answer before normalization.
type SubmittedAnswer struct {
	QuestionIdentity string   `json:"question_identity"`
	TypeTag          string   `json:"type,omitempty"` // defaults to the resolved question's type
	RawValue         any      `json:"value"`
	Comment          string   `json:"comment,omitempty"`
	Score            *float64 `json:"score,omitempty"`
}

// SubmitRequest transports a sanitized submission into the service layer.
type SubmitRequest struct {
	SurveyID     string
	RespondentID string
	RemoteAddr   string
	PageID       string // page the answers came from; advances the page pointer
	Answers      []SubmittedAnswer
	Complete     bool
	UserAgent    string
	Referrer     string
	Tags         string
	Preview      bool
}

// InstanceSummary reports the state of a respondent's attempt after a
// submission (or on idempotent replay).
type InstanceSummary struct {
	InstanceID     string     `json:"instance_id"`
	SurveyID       string     `json:"survey_id"`
	Status         string     `json:"status"`
	AnsweredCount  int        `json:"answered_count"`
	TotalQuestions int        `json:"total_questions"`
	LastPageIndex  int        `json:"last_page_index"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SubmitResponses normalizes each submitted answer, upserts it against the
// respondent's instance, refreshes the instance's progress counters from a
// live response count, and, only when the caller signals completion,
// transitions the instance to Completed, capturing completion metadata.
//
// Answers for questions that no longer resolve against the current
// definition are still stored under their submitted identity (they become
// aggregation orphans rather than data loss). A malformed value shape never
// fails the submission; the normalizer coerces best-effort.
func (s *CollectorService) SubmitResponses(ctx context.Context, req SubmitRequest) (*InstanceSummary, error) {
	if req.Preview {
		return nil, ErrPreviewReadOnly
	}
	def, err := repo.GetSurveyDefinition(ctx, s.DB, req.SurveyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}
	res := identity.NewResolver(def)

	inst, err := s.resolveOrCreateInstance(ctx, req.SurveyID, req.RespondentID, req.RemoteAddr, false)
	if err != nil {
		return nil, err
	}

	in := req.Answers
	if s.Config.MaxAnswersPerSubmission > 0 && len(in) > s.Config.MaxAnswersPerSubmission {
		in = in[:s.Config.MaxAnswersPerSubmission]
	}
	for _, a := range in {
		if a.QuestionIdentity == "" {
			continue
		}
		qid := a.QuestionIdentity
		typeTag := a.TypeTag
		var pairs answers.PairLookup
		if q, ok := res.ResolveQuestion(a.QuestionIdentity); ok {
			qid = q.Identity
			if typeTag == "" {
				typeTag = q.Question.Type
			}
			if domain.IsMatrixType(typeTag) {
				pairs = q
			}
		}
		cv := answers.Normalize(typeTag, a.RawValue, pairs)
		if domain.IsTextType(typeTag) {
			cv.Scalar = truncateRunes(cv.Scalar, s.Config.MaxTextRunes)
		}
		encoded, err := cv.Encode()
		if err != nil {
			return nil, err
		}
		if _, err := repo.UpsertResponse(ctx, s.DB, inst.ID, qid, typeTag, encoded, a.Comment, a.Score); err != nil {
			return nil, err
		}
	}

	pageIndex := -1
	if req.PageID != "" {
		if idx, _, err := locatePage(def, req.PageID); err == nil {
			pageIndex = idx
		}
	}
	if err := repo.RefreshProgress(ctx, s.DB, inst.ID, pageIndex); err != nil {
		return nil, err
	}

	if req.Complete {
		if err := repo.CompleteInstance(ctx, s.DB, inst.ID, req.UserAgent, req.Referrer, req.Tags); err != nil {
			return nil, err
		}
	}

	return s.instanceSummary(ctx, inst.ID, len(res.Questions()))
}

// InstanceSummaryByID returns the submission summary for a known instance,
// verifying that it belongs to the caller. Used for idempotent replays.
func (s *CollectorService) InstanceSummaryByID(ctx context.Context, instanceID, respondentID string) (*InstanceSummary, error) {
	inst, err := repo.GetInstance(ctx, s.DB, instanceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	if inst.RespondentID != "" && inst.RespondentID != respondentID {
		return nil, ErrInstanceForbidden
	}
	def, err := repo.GetSurveyDefinition(ctx, s.DB, inst.SurveyID)
	if err != nil {
		return nil, err
	}
	return s.instanceSummary(ctx, inst.ID, len(identity.NewResolver(def).Questions()))
}

func (s *CollectorService) instanceSummary(ctx context.Context, instanceID string, totalQuestions int) (*InstanceSummary, error) {
	inst, err := repo.GetInstance(ctx, s.DB, instanceID)
	if err != nil {
		return nil, err
	}
	return &InstanceSummary{
		InstanceID:     inst.ID,
		SurveyID:       inst.SurveyID,
		Status:         inst.Status,
		AnsweredCount:  inst.AnsweredCount,
		TotalQuestions: totalQuestions,
		LastPageIndex:  inst.LastPageIndex,
		CompletedAt:    inst.CompletedAt,
	}, nil
}

// resolveOrCreateInstance locates the caller's instance by authenticated
// identity when present, otherwise by normalized requester address. touch
// controls whether an existing instance's visit counter is bumped (page
// views do, submissions don't).
func (s *CollectorService) resolveOrCreateInstance(ctx context.Context, surveyID, respondentID, remoteAddr string, touch bool) (*domain.ResponseInstance, error) {
	addr := identity.NormalizeAddr(remoteAddr)
	if respondentID == "" {
		if !s.Config.AllowAnonymous {
			return nil, ErrMissingAddress
		}
		if addr == "" {
			return nil, ErrMissingAddress
		}
	}

	inst, err := repo.FindInstance(ctx, s.DB, surveyID, respondentID, addr)
	if err == nil {
		if touch {
			if err := repo.TouchVisit(ctx, s.DB, inst.ID); err != nil {
				return nil, err
			}
		}
		return inst, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return repo.CreateInstance(ctx, s.DB, surveyID, respondentID, addr)
}

// locatePage finds a page by id (or the first page when id is empty) in
// position order.
func locatePage(def *domain.Survey, pageID string) (int, *domain.Page, error) {
	pages := sortedPages(def)
	if len(pages) == 0 {
		return 0, nil, ErrPageNotFound
	}
	if pageID == "" {
		return 0, pages[0], nil
	}
	for i, p := range pages {
		if p.ID == pageID {
			return i, p, nil
		}
	}
	return 0, nil, ErrPageNotFound
}

func pageByIndex(def *domain.Survey, idx int) *domain.Page {
	return sortedPages(def)[idx]
}

func sortedPages(def *domain.Survey) []*domain.Page {
	out := make([]*domain.Page, 0, len(def.Pages))
	for i := range def.Pages {
		out = append(out, &def.Pages[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// truncateRunes caps s at max runes; max <= 0 disables truncation.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
