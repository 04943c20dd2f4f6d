// Package export writes study plans to spreadsheet files.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"

	"github.com/chriscorrea/cram/internal/plan"
)

// Sheet names in the exported workbook.
const (
	PlanSheet      = "Study Plan"
	QuestionsSheet = "Questions"
)

var (
	planHeaders     = []string{"Topic", "Count", "Weightage (%)", "Priority", "Example Questions"}
	questionHeaders = []string{"Paper", "Question", "Topic", "Similarity"}
)

// XLSX returns a workbook with the plan on one sheet and every retained
// question on another.
func XLSX(entries []plan.Entry, papers []plan.Paper) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the plan sheet
	if err := f.SetSheetName(f.GetSheetName(0), PlanSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(QuestionsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRow(f, PlanSheet, 1, toAny(planHeaders)...); err != nil {
		return nil, err
	}
	for i, e := range entries {
		err := writeRow(f, PlanSheet, i+2,
			e.Topic, e.Count, e.Weightage, e.Priority.String(),
			strings.Join(e.ExampleQuestions, "\n"))
		if err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, QuestionsSheet, 1, toAny(questionHeaders)...); err != nil {
		return nil, err
	}
	row := 2
	for _, p := range papers {
		for _, q := range p.Questions {
			if err := writeRow(f, QuestionsSheet, row, p.Filename, q.Question, q.Topic, q.Similarity); err != nil {
				return nil, err
			}
			row++
		}
	}

	_ = f.SetColWidth(PlanSheet, "A", "A", 36) // topic
	_ = f.SetColWidth(PlanSheet, "B", "D", 14) // numbers
	_ = f.SetColWidth(PlanSheet, "E", "E", 80) // examples
	_ = f.SetColWidth(QuestionsSheet, "A", "A", 24)
	_ = f.SetColWidth(QuestionsSheet, "B", "B", 80)
	_ = f.SetColWidth(QuestionsSheet, "C", "C", 36)

	idx, _ := f.GetSheetIndex(PlanSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	slog.Debug("XLSX export built", "topics", len(entries), "questions", row-2)
	return buf.Bytes(), nil
}

// WriteXLSX writes the workbook to path.
func WriteXLSX(path string, entries []plan.Entry, papers []plan.Paper) error {
	data, err := XLSX(entries, papers)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeRow sets values from column A of row and stops at the first error.
// excelize truncates strings over TotalCellChars UTF-16 units, so those are
// rejected with ErrCellCharsLength instead.
func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, row, err)
		}
		if s, ok := v.(string); ok && len(utf16.Encode([]rune(s))) > excelize.TotalCellChars {
			return fmt.Errorf("%s!%s: %w", sheet, cell, excelize.ErrCellCharsLength)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
