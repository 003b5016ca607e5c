package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/surveyhive/go-survey-backend/internal/domain"
	"github.com/surveyhive/go-survey-backend/internal/repo"
)

func newExportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:exportsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(exportSheet, cell)
	if err != nil {
		t.Fatalf("read %s: %v", cell, err)
	}
	return v
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, total int
		want        string
	}{
		{0, 0, "0.0%"},
		{5, 0, "0.0%"},
		{1, 3, "33.3%"},
		{2, 3, "66.7%"},
		{3, 3, "100.0%"},
	}
	for _, c := range cases {
		if got := Percent(c.part, c.total); got != c.want {
			t.Fatalf("Percent(%d, %d) = %q, want %q", c.part, c.total, got, c.want)
		}
	}
}

func TestExportQuestion_Errors(t *testing.T) {
	db := newExportTestDB(t)
	svc := NewExportService(db)

	if _, err := svc.ExportQuestion(context.Background(), "missing", "fav-color"); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}

	sid := seedPulseSurvey(t, db)
	if _, err := svc.ExportQuestion(context.Background(), sid, "nope"); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestExportQuestion_ChoiceSheet(t *testing.T) {
	db := newExportTestDB(t)
	sid := seedPulseSurvey(t, db)
	collector := NewCollectorService(db, DefaultCollectorConfig())

	submitAs(t, collector, sid, "r1", []SubmittedAnswer{{QuestionIdentity: "fav-color", RawValue: "Red"}})
	submitAs(t, collector, sid, "r2", []SubmittedAnswer{{QuestionIdentity: "fav-color", RawValue: "Red"}})
	submitAs(t, collector, sid, "r3", []SubmittedAnswer{{QuestionIdentity: "fav-color", RawValue: "Blue"}})

	svc := NewExportService(db)
	res, err := svc.ExportQuestion(context.Background(), sid, "fav-color")
	if err != nil {
		t.Fatalf("ExportQuestion: %v", err)
	}
	if res.Filename != fmt.Sprintf("survey-%s-question-fav-color.xlsx", sid) {
		t.Fatalf("unexpected filename: %q", res.Filename)
	}

	f := openWorkbook(t, res.Data)
	if cellValue(t, f, "A1") != "Quarterly pulse" {
		t.Fatalf("title row: %q", cellValue(t, f, "A1"))
	}
	if cellValue(t, f, "A2") != "Favorite color?" {
		t.Fatalf("subtitle row: %q", cellValue(t, f, "A2"))
	}
	if cellValue(t, f, "A3") != "Option" || cellValue(t, f, "B3") != "Count" || cellValue(t, f, "C3") != "Percentage" {
		t.Fatalf("header row wrong: %q %q %q", cellValue(t, f, "A3"), cellValue(t, f, "B3"), cellValue(t, f, "C3"))
	}

	// Two data rows; order can vary with submission timing, so index by label.
	rows := map[string][2]string{}
	for _, r := range []string{"4", "5"} {
		rows[cellValue(t, f, "A"+r)] = [2]string{cellValue(t, f, "B"+r), cellValue(t, f, "C"+r)}
	}
	if rows["Red"] != [2]string{"2", "66.7%"} {
		t.Fatalf("unexpected Red row: %v", rows["Red"])
	}
	if rows["Blue"] != [2]string{"1", "33.3%"} {
		t.Fatalf("unexpected Blue row: %v", rows["Blue"])
	}

	// Merged title spans the table width.
	merged, err := f.GetMergeCells(exportSheet)
	if err != nil {
		t.Fatalf("merge cells: %v", err)
	}
	found := false
	for _, m := range merged {
		if m.GetStartAxis() == "A1" && m.GetEndAxis() == "C1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("title not merged A1:C1, got %+v", merged)
	}
}

func TestExportQuestion_MatrixSheet(t *testing.T) {
	db := newExportTestDB(t)
	sid := seedPulseSurvey(t, db)
	collector := NewCollectorService(db, DefaultCollectorConfig())

	page, err := collector.RenderPage(context.Background(), RenderPageRequest{SurveyID: sid, PageID: "p2", RespondentID: "r1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	supportID := page.Questions[0].Rows[0].Identity

	submitAs(t, collector, sid, "r1", []SubmittedAnswer{{QuestionIdentity: "sat-matrix", RawValue: []any{
		map[string]any{"row": supportID, "column": "col-poor"},
		map[string]any{"row": "row-docs", "column": "col-great"},
	}}})
	submitAs(t, collector, sid, "r2", []SubmittedAnswer{{QuestionIdentity: "sat-matrix", RawValue: []any{
		map[string]any{"row": "row-docs", "column": "col-great"},
	}}})

	svc := NewExportService(db)
	res, err := svc.ExportQuestion(context.Background(), sid, "sat-matrix")
	if err != nil {
		t.Fatalf("ExportQuestion: %v", err)
	}

	f := openWorkbook(t, res.Data)
	if cellValue(t, f, "A3") != "Statement" || cellValue(t, f, "B3") != "Poor" || cellValue(t, f, "C3") != "Great" || cellValue(t, f, "D3") != "Total Score" {
		t.Fatalf("header row wrong: %q %q %q %q", cellValue(t, f, "A3"), cellValue(t, f, "B3"), cellValue(t, f, "C3"), cellValue(t, f, "D3"))
	}

	// Support: one Poor answer. Zero cells render as "-".
	if cellValue(t, f, "A4") != "Support" || cellValue(t, f, "B4") != "1" || cellValue(t, f, "C4") != "-" {
		t.Fatalf("unexpected Support row: %q %q %q", cellValue(t, f, "A4"), cellValue(t, f, "B4"), cellValue(t, f, "C4"))
	}
	if cellValue(t, f, "D4") != "1/3" {
		t.Fatalf("unexpected Support score: %q", cellValue(t, f, "D4"))
	}

	// Docs: two Great answers, full marks.
	if cellValue(t, f, "A5") != "Docs" || cellValue(t, f, "B5") != "-" || cellValue(t, f, "C5") != "2" {
		t.Fatalf("unexpected Docs row: %q %q %q", cellValue(t, f, "A5"), cellValue(t, f, "B5"), cellValue(t, f, "C5"))
	}
	if cellValue(t, f, "D5") != "6/6" {
		t.Fatalf("unexpected Docs score: %q", cellValue(t, f, "D5"))
	}
}

func TestExportQuestion_AuthorLabelsVerbatim(t *testing.T) {
	db := newExportTestDB(t)
	sid := seedPulseSurvey(t, db)

	// Author-cased labels must reach the sheet untouched; only the fixed
	// header words are title-cased.
	if err := db.Model(&domain.MatrixColumn{}).Where("id = ?", "mc2").Update("label", "NPS score").Error; err != nil {
		t.Fatalf("relabel column: %v", err)
	}

	svc := NewExportService(db)
	res, err := svc.ExportQuestion(context.Background(), sid, "sat-matrix")
	if err != nil {
		t.Fatalf("ExportQuestion: %v", err)
	}

	f := openWorkbook(t, res.Data)
	if cellValue(t, f, "C3") != "NPS score" {
		t.Fatalf("author label rewritten: %q", cellValue(t, f, "C3"))
	}
	if cellValue(t, f, "A3") != "Statement" || cellValue(t, f, "D3") != "Total Score" {
		t.Fatalf("fixed headers wrong: %q %q", cellValue(t, f, "A3"), cellValue(t, f, "D3"))
	}
}

func TestExportQuestion_TextSheet(t *testing.T) {
	db := newExportTestDB(t)
	sid := seedPulseSurvey(t, db)
	collector := NewCollectorService(db, DefaultCollectorConfig())

	// The text question has no durable id; address it through the render.
	page, err := collector.RenderPage(context.Background(), RenderPageRequest{SurveyID: sid, RespondentID: "r1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	textIdentity := page.Questions[1].Identity

	submitAs(t, collector, sid, "r1", []SubmittedAnswer{{QuestionIdentity: textIdentity, RawValue: "More coffee in the kitchen, please."}})

	svc := NewExportService(db)
	res, err := svc.ExportQuestion(context.Background(), sid, textIdentity)
	if err != nil {
		t.Fatalf("ExportQuestion: %v", err)
	}

	f := openWorkbook(t, res.Data)
	if cellValue(t, f, "A3") != "Response" || cellValue(t, f, "B3") != "Date" {
		t.Fatalf("header row wrong: %q %q", cellValue(t, f, "A3"), cellValue(t, f, "B3"))
	}
	if cellValue(t, f, "A4") != "More coffee in the kitchen, please." {
		t.Fatalf("unexpected response cell: %q", cellValue(t, f, "A4"))
	}
	// Date column holds an ISO date.
	if d := cellValue(t, f, "B4"); len(d) != 10 || strings.Count(d, "-") != 2 {
		t.Fatalf("unexpected date cell: %q", d)
	}
}
