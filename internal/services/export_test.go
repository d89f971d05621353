package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/resume-screener/internal/models"
)

func TestWriteResultsWorkbook(t *testing.T) {
	scored := strings.Replace(sampleAssessment, `"candidate_name"`, `"evaluation_timestamp": "2026-03-01T12:30:45.123456Z", "candidate_name"`, 1)
	records := []models.AnalysisRecord{
		{ID: 1, ResultJSON: scored, ProcessedAt: "2026-03-01T12:31:00Z"},
		{ID: 2, ResultJSON: `{"text_result": "Strong candidate overall."}`, ProcessedAt: "2026-03-01T12:32:00Z"},
		{ID: 3, ResultJSON: `{broken`, ProcessedAt: "2026-03-01T12:33:00Z"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResultsWorkbook(&buf, "user-1", records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Analyses"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Resume Screening Report"},
		{"User", "user-1"},
		{"Total Analyses", "3"},
		{"Approved", "1"},
		{"Rejected", "0"},
		{"Unreadable", "1"},
	}, summary)

	rows, err := f.GetRows("Analyses")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Analysis ID", rows[0][0])
	assert.Equal(t, "Error", rows[0][11])

	assert.Equal(t, []string{
		"1", "2026-03-01T12:31:00Z", "Jane Doe", "Backend Engineer", "Acme", "86.5",
		"APPROVED", "MEDIUM_FIT", "Go\nPostgreSQL", "No Kubernetes experience",
		"2026-03-01T12:30:45.123456Z",
	}, rows[1])
	assert.Equal(t, "free-text analysis", rows[2][11])
	assert.Equal(t, models.ParseFailureMessage, rows[3][11])
}

func TestWriteResultsWorkbookWithNoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsWorkbook(&buf, "user-1", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Analyses")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
