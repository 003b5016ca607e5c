package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/surveyhive/go-survey-backend/internal/domain"
)

func TestDerive_DeterministicAndScoped(t *testing.T) {
	a := Derive("page-1", 3, "How satisfied are you?", "single_choice")
	b := Derive("page-1", 3, "How satisfied are you?", "single_choice")
	if a != b {
		t.Fatalf("same inputs must derive the same identity: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%q)", len(a), a)
	}

	// The hash is exactly MD5 over the joined material.
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%d-%s-%s", "page-1", 3, "How satisfied are you?", "single_choice")))
	if want := hex.EncodeToString(sum[:]); a != want {
		t.Fatalf("derivation drifted: got %q want %q", a, want)
	}

	// Any changed input changes the identity.
	if Derive("page-2", 3, "How satisfied are you?", "single_choice") == a {
		t.Fatalf("scope change must change identity")
	}
	if Derive("page-1", 4, "How satisfied are you?", "single_choice") == a {
		t.Fatalf("ordinal change must change identity")
	}
	if Derive("page-1", 3, "How satisfied are you", "single_choice") == a {
		t.Fatalf("text change must change identity")
	}
	if Derive("page-1", 3, "How satisfied are you?", "multi_choice") == a {
		t.Fatalf("type change must change identity")
	}
}

func testSurvey() *domain.Survey {
	w1, w3 := 1.0, 3.0
	return &domain.Survey{
		ID:    "s1",
		Title: "Quarterly pulse",
		Pages: []domain.Page{
			{
				ID: "p1", SurveyID: "s1", Position: 0, Title: "About you",
				Questions: []domain.Question{
					{
						ID: "q1", PageID: "p1", DurableID: "fav-color", Position: 1,
						Text: "Favourite colour?", Type: domain.TypeSingleChoice,
						Options: []domain.QuestionOption{
							{ID: "o1", QuestionID: "q1", Position: 0, Label: "Red"},
							{ID: "o2", QuestionID: "q1", Position: 1, Label: "Blue"},
						},
					},
					{
						ID: "q2", PageID: "p1", Position: 2,
						Text: "Anything else?", Type: domain.TypeLongText,
					},
				},
			},
			{
				ID: "p2", SurveyID: "s1", Position: 1, Title: "Ratings",
				Questions: []domain.Question{
					{
						ID: "q3", PageID: "p2", DurableID: "sat-matrix", Position: 1,
						Text: "Rate each area", Type: domain.TypeMatrixRadio,
						Rows: []domain.MatrixRow{
							{ID: "r1", QuestionID: "q3", Position: 0, Label: "Support"},
							{ID: "r2", QuestionID: "q3", DurableID: "row-docs", Position: 1, Label: "Docs"},
						},
						Columns: []domain.MatrixColumn{
							{ID: "c1", QuestionID: "q3", Position: 0, Label: "Poor", Weight: &w1},
							{ID: "c2", QuestionID: "q3", Position: 1, Label: "Great", Weight: &w3},
						},
					},
				},
			},
		},
	}
}

func TestResolver_PrecedenceAndEffectiveIdentity(t *testing.T) {
	res := NewResolver(testSurvey())

	if res.PageCount() != 2 {
		t.Fatalf("page count = %d", res.PageCount())
	}
	qs := res.Questions()
	if len(qs) != 3 {
		t.Fatalf("question count = %d", len(qs))
	}

	// Durable id wins and is the effective identity.
	el, ok := res.Resolve("fav-color")
	if !ok || el.Kind != KindQuestion || el.Identity != "fav-color" {
		t.Fatalf("durable resolve failed: %+v ok=%v", el, ok)
	}

	// The same question also resolves through its ordinal and content hash,
	// and all paths land on the same element.
	content := Derive("p1", 1, "Favourite colour?", domain.TypeSingleChoice)
	for _, cand := range []string{"1", content} {
		got, ok := res.ResolveQuestion(cand)
		if !ok || got.Identity != "fav-color" {
			t.Fatalf("candidate %q should resolve to fav-color, got %+v ok=%v", cand, got, ok)
		}
	}

	// A question without a durable id uses its content hash as identity.
	anon := Derive("p1", 2, "Anything else?", domain.TypeLongText)
	got, ok := res.ResolveQuestion(anon)
	if !ok || got.Identity != anon {
		t.Fatalf("content-identity question resolve failed: ok=%v", ok)
	}

	// Unknown candidates miss.
	if _, ok := res.Resolve("no-such-identity"); ok {
		t.Fatalf("unexpected resolution for unknown candidate")
	}
	if _, ok := res.Resolve(""); ok {
		t.Fatalf("empty candidate must not resolve")
	}
}

func TestResolver_DurableBeatsContentCollision(t *testing.T) {
	// One question's durable id is, byte for byte, another question's content
	// hash. Resolution must pick the durable owner.
	def := testSurvey()
	collision := Derive("p1", 2, "Anything else?", domain.TypeLongText)
	def.Pages[0].Questions[0].DurableID = collision

	res := NewResolver(def)
	got, ok := res.ResolveQuestion(collision)
	if !ok {
		t.Fatalf("collision candidate must resolve")
	}
	if got.Question.ID != "q1" {
		t.Fatalf("durable tier must win the collision: resolved %q", got.Question.ID)
	}
}

func TestResolver_OrdinalFirstWins(t *testing.T) {
	// Two questions on different pages share authored position 1. The earlier
	// page's question keeps the ordinal key; the later one still resolves by
	// content hash.
	def := testSurvey()
	res := NewResolver(def)

	got, ok := res.ResolveQuestion("1")
	if !ok || got.Question.ID != "q1" {
		t.Fatalf("ordinal 1 should stay with the first registrant, got %+v", got)
	}

	matrixContent := Derive("p2", 1, "Rate each area", domain.TypeMatrixRadio)
	got, ok = res.ResolveQuestion(matrixContent)
	if !ok || got.Question.ID != "q3" {
		t.Fatalf("later question must still resolve by content, got %+v ok=%v", got, ok)
	}
}

func TestResolver_MatrixRowsAndColumns(t *testing.T) {
	res := NewResolver(testSurvey())
	q, ok := res.ResolveQuestion("sat-matrix")
	if !ok {
		t.Fatalf("matrix question missing")
	}
	if len(q.Rows) != 2 || len(q.Columns) != 2 {
		t.Fatalf("rows/cols = %d/%d", len(q.Rows), len(q.Columns))
	}

	// Row without durable id: content identity scoped to the question.
	supportID := Derive("sat-matrix", 0, "Support", "row")
	if q.Rows[0].Identity != supportID || !q.HasRow(supportID) {
		t.Fatalf("support row identity mismatch: %q", q.Rows[0].Identity)
	}
	// Row with durable id keeps it.
	if q.Rows[1].Identity != "row-docs" || !q.HasRow("row-docs") {
		t.Fatalf("docs row identity mismatch: %q", q.Rows[1].Identity)
	}

	// Rows resolve as elements pointing back at the owning question.
	el, ok := res.Resolve("row-docs")
	if !ok || el.Kind != KindRow || el.Question.Identity != "sat-matrix" {
		t.Fatalf("row element resolve failed: %+v ok=%v", el, ok)
	}

	// Scoped ordinal keys: rows register before columns, so when a row and a
	// column share a position the row keeps the contested ordinal.
	el, ok = res.Resolve("sat-matrix:0")
	if !ok || el.Kind != KindRow {
		t.Fatalf("scoped ordinal should find row at position 0, got %+v ok=%v", el, ok)
	}

	// Pair tokens round-trip through SplitPair.
	colID := q.Columns[1].Identity
	token := PairToken("row-docs", colID)
	rowID, gotCol, ok := q.SplitPair(token)
	if !ok || rowID != "row-docs" || gotCol != colID {
		t.Fatalf("SplitPair round trip failed: %q %q ok=%v", rowID, gotCol, ok)
	}
	if _, _, ok := q.SplitPair("row-docs:not-a-column"); ok {
		t.Fatalf("SplitPair must reject unknown columns")
	}
	if _, _, ok := q.SplitPair("garbage"); ok {
		t.Fatalf("SplitPair must reject tokens with no known row prefix")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"localhost", "127.0.0.1"},
		{"127.0.0.1", "127.0.0.1"},
		{"::1", "127.0.0.1"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[::1]:443", "127.0.0.1"},
		{"203.0.113.9", "203.0.113.9"},
		{"203.0.113.9:12345", "203.0.113.9"},
		{"::ffff:203.0.113.9", "203.0.113.9"},
		{"2001:db8::1", "2001:db8::1"},
		{"not-an-ip", ""},
		{"example.com:8080", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAddr(tc.in); got != tc.want {
			t.Fatalf("NormalizeAddr(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
