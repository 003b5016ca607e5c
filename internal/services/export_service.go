// Package services – ExportService
//
// Produces styled single-question XLSX workbooks from aggregation output.
// Layout by summary kind:
//
//   - choice: Option / Count / Percentage table, one-decimal percentages
//   - matrix: statement rows crossed with column headers, zero cells
//     rendered as "-", non-zero cells emphasized, plus a Total Score
//     column ("earned/possible") when the question carries weights
//   - text: Response / Date listing
//
// Every sheet opens with two merged title rows (survey title, question
// text) above a bold header row.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/repo"
)

// ExportService renders question summaries as XLSX workbooks.
type ExportService struct {
	// DB is the GORM handle used for definition reads.
	DB *gorm.DB

	agg *AggregationService
}

// NewExportService constructs an ExportService sharing the database handle
// with its aggregation backend.
func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db, agg: NewAggregationService(db)}
}

// ExportResult carries a finished workbook and the filename to serve it
// under.
type ExportResult struct {
	Filename string
	Data     []byte
}

const exportSheet = "Results"

// Percent formats part out of total as a one-decimal percentage string. A
// zero total yields "0.0%" rather than NaN.
func Percent(part, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// ExportQuestion aggregates one question and renders it as an XLSX
// workbook. The candidate identity is resolved the same way analytics
// resolves it; ErrQuestionNotFound when it matches no current element.
func (s *ExportService) ExportQuestion(ctx context.Context, surveyID, candidate string) (*ExportResult, error) {
	def, err := repo.GetSurveyDefinition(ctx, s.DB, surveyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("%w: survey %s: %v", ErrAggregationFailed, surveyID, err)
	}
	summary, err := s.agg.QuestionAnalytics(ctx, surveyID, candidate)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheet)

	if err := writeSheet(f, def.Title, summary); err != nil {
		return nil, fmt.Errorf("%w: survey %s question %s: %v", ErrAggregationFailed, surveyID, candidate, err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: survey %s question %s: %v", ErrAggregationFailed, surveyID, candidate, err)
	}
	return &ExportResult{
		Filename: fmt.Sprintf("survey-%s-question-%s.xlsx", surveyID, summary.Identity),
		Data:     buf.Bytes(),
	}, nil
}

func writeSheet(f *excelize.File, surveyTitle string, summary *QuestionSummary) error {
	width := sheetWidth(summary)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	subtitleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return err
	}

	if err := mergedTitleRow(f, 1, width, surveyTitle, titleStyle); err != nil {
		return err
	}
	if err := mergedTitleRow(f, 2, width, summary.Text, subtitleStyle); err != nil {
		return err
	}

	switch summary.Kind {
	case SummaryMatrix:
		return writeMatrixRows(f, summary, headerStyle)
	case SummaryChoice:
		return writeChoiceRows(f, summary, headerStyle)
	default:
		return writeTextRows(f, summary, headerStyle)
	}
}

func sheetWidth(summary *QuestionSummary) int {
	switch summary.Kind {
	case SummaryMatrix:
		w := 1 + len(summary.Columns)
		if summary.Weighted {
			w++
		}
		return w
	case SummaryChoice:
		return 3
	default:
		return 2
	}
}

func mergedTitleRow(f *excelize.File, row, width int, text string, style int) error {
	from, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	if err := f.MergeCell(exportSheet, from, to); err != nil {
		return err
	}
	if err := f.SetCellValue(exportSheet, from, text); err != nil {
		return err
	}
	return f.SetCellStyle(exportSheet, from, to, style)
}

// titled title-cases the fixed header words. It is never applied to
// author-provided labels, which must reach the sheet verbatim.
func titled(labels ...string) []string {
	caser := cases.Title(language.English)
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = caser.String(l)
	}
	return out
}

func writeHeaderRow(f *excelize.File, row int, labels []string, style int) error {
	for i, label := range labels {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, label); err != nil {
			return err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeChoiceRows(f *excelize.File, summary *QuestionSummary, headerStyle int) error {
	if err := writeHeaderRow(f, 3, titled("option", "count", "percentage"), headerStyle); err != nil {
		return err
	}
	for i, opt := range summary.Options {
		row := strconv.Itoa(4 + i)
		if err := f.SetCellValue(exportSheet, "A"+row, opt.Label); err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, "B"+row, opt.Count); err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, "C"+row, Percent(opt.Count, summary.Total)); err != nil {
			return err
		}
	}
	return f.SetColWidth(exportSheet, "A", "A", 40)
}

func writeMatrixRows(f *excelize.File, summary *QuestionSummary, headerStyle int) error {
	hitStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E2EFDA"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return err
	}

	header := titled("statement")
	for _, c := range summary.Columns {
		header = append(header, c.Label)
	}
	if summary.Weighted {
		header = append(header, titled("total score")...)
	}
	if err := writeHeaderRow(f, 3, header, headerStyle); err != nil {
		return err
	}

	for i, r := range summary.Rows {
		row := 4 + i
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, r.Label); err != nil {
			return err
		}
		for j, count := range r.Counts {
			cell, err := excelize.CoordinatesToCellName(2+j, row)
			if err != nil {
				return err
			}
			if count == 0 {
				if err := f.SetCellValue(exportSheet, cell, "-"); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(exportSheet, cell, count); err != nil {
				return err
			}
			if err := f.SetCellStyle(exportSheet, cell, cell, hitStyle); err != nil {
				return err
			}
		}
		if summary.Weighted {
			cell, err := excelize.CoordinatesToCellName(2+len(r.Counts), row)
			if err != nil {
				return err
			}
			score := fmt.Sprintf("%s/%s", trimFloat(r.Earned), trimFloat(r.Possible))
			if err := f.SetCellValue(exportSheet, cell, score); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(exportSheet, "A", "A", 40)
}

func writeTextRows(f *excelize.File, summary *QuestionSummary, headerStyle int) error {
	if err := writeHeaderRow(f, 3, titled("response", "date"), headerStyle); err != nil {
		return err
	}
	for i, t := range summary.Texts {
		row := strconv.Itoa(4 + i)
		if err := f.SetCellValue(exportSheet, "A"+row, t.Value); err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, "B"+row, t.AnsweredAt.Format(time.DateOnly)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 60); err != nil {
		return err
	}
	return f.SetColWidth(exportSheet, "B", "B", 14)
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, side := range sides {
		borders = append(borders, excelize.Border{Type: side, Style: 1, Color: "B0B0B0"})
	}
	return borders
}

// trimFloat renders a score without trailing zeros, so whole values print
// as integers.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
