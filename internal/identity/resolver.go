package identity

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

// Type tags mixed into content-identity derivation for matrix sub-elements.
// Rows and columns hash against the owning question's effective identity, so
// a short kind tag is enough to keep the two namespaces apart.
const (
	rowTypeTag    = "row"
	columnTypeTag = "column"
)

// ElementKind discriminates what a resolved candidate points at.
type ElementKind int

const (
	KindQuestion ElementKind = iota
	KindRow
	KindColumn
)

// RowRef pairs a matrix row with its effective identity.
type RowRef struct {
	Row      *domain.MatrixRow
	Identity string
}

// ColumnRef pairs a matrix column with its effective identity.
type ColumnRef struct {
	Column   *domain.MatrixColumn
	Identity string
}

// QuestionRef is a question viewed through one definition snapshot: the
// underlying model, its effective identity, its page index, and (for matrix
// types) the resolved row and column references in display order.
type QuestionRef struct {
	Question  *domain.Question
	Identity  string
	PageIndex int

	Rows    []RowRef
	Columns []ColumnRef

	rowSet map[string]struct{}
	colSet map[string]struct{}
}

// HasRow reports whether id is the effective identity of one of the
// question's matrix rows.
func (q *QuestionRef) HasRow(id string) bool {
	_, ok := q.rowSet[id]
	return ok
}

// HasColumn reports whether id is the effective identity of one of the
// question's matrix columns.
func (q *QuestionRef) HasColumn(id string) bool {
	_, ok := q.colSet[id]
	return ok
}

// SplitPair decodes a pre-resolved pair token of the form
// "<rowIdentity>:<colIdentity>" back into its components. Row identities may
// themselves contain the separator, so the split is validated against the
// question's actual row set rather than performed blindly on the first
// separator.
func (q *QuestionRef) SplitPair(token string) (rowID, colID string, ok bool) {
	for _, r := range q.Rows {
		prefix := r.Identity + ":"
		if len(token) > len(prefix) && token[:len(prefix)] == prefix {
			rest := token[len(prefix):]
			if q.HasColumn(rest) {
				return r.Identity, rest, true
			}
		}
	}
	return "", "", false
}

// PairToken is the inverse of SplitPair: the wire token a rendered matrix
// cell carries for the given row and column identities.
func PairToken(rowID, colID string) string { return rowID + ":" + colID }

// Element is the result of resolving a candidate identifier: what kind of
// schema element matched, its effective identity, and the owning question
// (which is the element itself for KindQuestion).
type Element struct {
	Kind     ElementKind
	Identity string
	Question *QuestionRef
	Row      *RowRef
	Column   *ColumnRef
}

// Resolver maps candidate identifiers back to schema elements for one
// immutable survey-definition snapshot. Build it once per render or
// aggregation pass with NewResolver; it is read-only afterwards and safe for
// concurrent use.
//
// Every element registers up to three candidate keys, checked in strict
// precedence order on lookup:
//
//  1. durable id (when one was assigned at authoring time)
//  2. positional ordinal (questions: the authored position as a string;
//     rows/columns: "<questionIdentity>:<position>", which cannot collide
//     across questions)
//  3. derived content identity (always)
//
// Within a tier, the first registered element keeps a contested key: a
// later element whose key collides is not silently merged into it, and still
// resolves through its other candidate keys.
type Resolver struct {
	byDurable map[string]*Element
	byOrdinal map[string]*Element
	byContent map[string]*Element

	questions []*QuestionRef
	pageCount int
}

// NewResolver builds a Resolver over the given definition snapshot. Pages and
// questions are walked in position order, so registration (and therefore
// first-wins collision handling) is deterministic for a given snapshot.
func NewResolver(def *domain.Survey) *Resolver {
	r := &Resolver{
		byDurable: make(map[string]*Element),
		byOrdinal: make(map[string]*Element),
		byContent: make(map[string]*Element),
	}
	if def == nil {
		return r
	}

	pages := make([]domain.Page, len(def.Pages))
	copy(pages, def.Pages)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Position < pages[j].Position })
	r.pageCount = len(pages)

	for pi := range pages {
		page := &pages[pi]
		questions := make([]domain.Question, len(page.Questions))
		copy(questions, page.Questions)
		sort.SliceStable(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })

		for qi := range questions {
			q := questions[qi]
			r.addQuestion(page.ID, pi, &q)
		}
	}
	return r
}

func (r *Resolver) addQuestion(pageID string, pageIndex int, q *domain.Question) {
	content := Derive(pageID, q.Position, q.Text, q.Type)
	effective := q.DurableID
	if effective == "" {
		effective = content
	}

	ref := &QuestionRef{
		Question:  q,
		Identity:  effective,
		PageIndex: pageIndex,
		rowSet:    make(map[string]struct{}, len(q.Rows)),
		colSet:    make(map[string]struct{}, len(q.Columns)),
	}
	r.questions = append(r.questions, ref)

	el := &Element{Kind: KindQuestion, Identity: effective, Question: ref}
	r.register(q.DurableID, strconv.Itoa(q.Position), content, el)

	rows := make([]domain.MatrixRow, len(q.Rows))
	copy(rows, q.Rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	ref.Rows = make([]RowRef, 0, len(rows))
	for i := range rows {
		row := rows[i]
		rc := Derive(effective, row.Position, row.Label, rowTypeTag)
		id := row.DurableID
		if id == "" {
			id = rc
		}
		rref := RowRef{Row: &row, Identity: id}
		ref.Rows = append(ref.Rows, rref)
		ref.rowSet[id] = struct{}{}
		r.register(row.DurableID, fmt.Sprintf("%s:%d", effective, row.Position), rc,
			&Element{Kind: KindRow, Identity: id, Question: ref, Row: &ref.Rows[len(ref.Rows)-1]})
	}

	cols := make([]domain.MatrixColumn, len(q.Columns))
	copy(cols, q.Columns)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	ref.Columns = make([]ColumnRef, 0, len(cols))
	for i := range cols {
		col := cols[i]
		cc := Derive(effective, col.Position, col.Label, columnTypeTag)
		id := col.DurableID
		if id == "" {
			id = cc
		}
		cref := ColumnRef{Column: &col, Identity: id}
		ref.Columns = append(ref.Columns, cref)
		ref.colSet[id] = struct{}{}
		r.register(col.DurableID, fmt.Sprintf("%s:%d", effective, col.Position), cc,
			&Element{Kind: KindColumn, Identity: id, Question: ref, Column: &ref.Columns[len(ref.Columns)-1]})
	}
}

// register records the element under each non-empty candidate key, first
// registration winning within a tier.
func (r *Resolver) register(durable, ordinal, content string, el *Element) {
	if durable != "" {
		if _, taken := r.byDurable[durable]; !taken {
			r.byDurable[durable] = el
		}
	}
	if ordinal != "" {
		if _, taken := r.byOrdinal[ordinal]; !taken {
			r.byOrdinal[ordinal] = el
		}
	}
	if content != "" {
		if _, taken := r.byContent[content]; !taken {
			r.byContent[content] = el
		}
	}
}

// Resolve maps a candidate identifier to a schema element, trying durable
// ids, then positional ordinals, then content hashes. A durable-id match
// always wins, even when a different element's content hash equals the
// candidate string.
func (r *Resolver) Resolve(candidate string) (*Element, bool) {
	if candidate == "" {
		return nil, false
	}
	if el, ok := r.byDurable[candidate]; ok {
		return el, true
	}
	if el, ok := r.byOrdinal[candidate]; ok {
		return el, true
	}
	if el, ok := r.byContent[candidate]; ok {
		return el, true
	}
	return nil, false
}

// ResolveQuestion is Resolve restricted to question elements. Matrix row and
// column matches report the owning question.
func (r *Resolver) ResolveQuestion(candidate string) (*QuestionRef, bool) {
	el, ok := r.Resolve(candidate)
	if !ok {
		return nil, false
	}
	return el.Question, true
}

// Questions returns every question of the snapshot in page then position
// order, each with its effective identity. The slice is shared; callers must
// not mutate it.
func (r *Resolver) Questions() []*QuestionRef { return r.questions }

// PageCount returns the number of pages in the snapshot.
func (r *Resolver) PageCount() int { return r.pageCount }
