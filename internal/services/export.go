package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"alfredoptarigan/resume-screener/internal/models"
)

const (
	exportSummarySheet  = "Summary"
	exportAnalysesSheet = "Analyses"
)

var exportColumns = []struct {
	header string
	width  float64
}{
	{"Analysis ID", 12},
	{"Processed At", 28},
	{"Candidate", 25},
	{"Position", 25},
	{"Company", 20},
	{"Fit Score", 10},
	{"Recommendation", 16},
	{"Fit Level", 14},
	{"Key Strengths", 50},
	{"Major Concerns", 50},
	{"Evaluated At", 28},
	{"Error", 30},
}

// WriteResultsWorkbook writes the user's stored analyses as an .xlsx workbook.
func WriteResultsWorkbook(w io.Writer, userID string, records []models.AnalysisRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", exportSummarySheet)
	if _, err := f.NewSheet(exportAnalysesSheet); err != nil {
		return fmt.Errorf("failed to create analyses sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	approved, rejected, unreadable := 0, 0, 0

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(exportAnalysesSheet, cell, col.header)
		f.SetColWidth(exportAnalysesSheet, colName, colName, col.width)
	}
	f.SetCellStyle(exportAnalysesSheet, "A1", fmt.Sprintf("%s1", lastColumn()), headerStyle)

	for i, rec := range records {
		row := i + 2
		values := []any{rec.ID, rec.ProcessedAt}

		res, err := models.DecodeAnalysisResult(rec.ResultJSON)
		switch {
		case err != nil:
			unreadable++
			values = append(values, "", "", "", "", "", "", "", "", "", models.ParseFailureMessage)
		case res.TextResult != nil:
			values = append(values, "", "", "", "", "", "", "", "", "", "free-text analysis")
		default:
			switch res.Verdict() {
			case models.RecommendationApproved:
				approved++
			case models.RecommendationRejected:
				rejected++
			}
			values = append(values,
				res.Candidate(),
				res.Position(),
				res.Employer(),
				res.Score(),
				res.Verdict(),
				res.Fit(),
				strings.Join(res.KeyStrengths, "\n"),
				strings.Join(res.MajorConcerns, "\n"),
				deref(res.EvaluationTimestamp),
				"",
			)
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportAnalysesSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	summary := [][]any{
		{"Resume Screening Report"},
		{"User", userID},
		{"Total Analyses", len(records)},
		{"Approved", approved},
		{"Rejected", rejected},
		{"Unreadable", unreadable},
	}
	f.SetColWidth(exportSummarySheet, "A", "A", 25)
	f.SetColWidth(exportSummarySheet, "B", "B", 45)
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(exportSummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	f.SetCellStyle(exportSummarySheet, "A1", "B1", headerStyle)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func lastColumn() string {
	name, _ := excelize.ColumnNumberToName(len(exportColumns))
	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
