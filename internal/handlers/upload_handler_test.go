package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-screener/internal/models"
)

type analysisResponse struct {
	AnalysisResults []struct {
		ResumeFile string `json:"resume_file"`
		Status     string `json:"status"`
		Analysis   any    `json:"analysis"`
	} `json:"analysis_results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func TestBulkUploadAnalysesEveryPDFInTheZip(t *testing.T) {
	s := newTestServer(t, nil)

	archive := zipBytes(t, map[string]string{
		"r1.pdf":      string(pdfBytes("r1")),
		"notes.txt":   "not a resume",
		"sub/r2.PDF":  string(pdfBytes("r2")),
		"bad_cv.pdf":  string(pdfBytes("bad")),
		"sub/folder/": "",
	})
	req := multipartRequest(t, "/bulk-upload/",
		map[string]string{"user_uuid": "user-1", "max_workers": "3"},
		formFile{"jd", "jd.pdf", pdfBytes("jd")},
		formFile{"resumes_zip", "resumes.zip", archive},
	)

	var body analysisResponse
	resp := s.do(t, req, &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.AnalysisResults, 3)

	status := make(map[string]string)
	for _, entry := range body.AnalysisResults {
		status[entry.ResumeFile] = entry.Status
	}
	assert.Equal(t, map[string]string{
		"r1.pdf":     string(models.OutcomeScored),
		"r2.PDF":     string(models.OutcomeScored),
		"bad_cv.pdf": string(models.OutcomeFailed),
	}, status)

	require.Len(t, s.orchestrator.requests, 1)
	run := s.orchestrator.requests[0]
	assert.Equal(t, "user-1", run.UserID)
	assert.Equal(t, 3, run.MaxWorkers)
	assert.True(t, run.Structured)
	assert.Equal(t, "jd.pdf", filepath.Base(run.JDPath))
	assert.Len(t, run.ResumePaths, 3)
}

func TestBulkUploadFailedEntryCarriesErrorText(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/bulk-upload/",
		map[string]string{"user_uuid": "user-1"},
		formFile{"jd", "jd.pdf", pdfBytes("jd")},
		formFile{"resumes_zip", "resumes.zip", zipBytes(t, map[string]string{"bad.pdf": "%PDF-1.4"})},
	)

	var body analysisResponse
	resp := s.do(t, req, &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.AnalysisResults, 1)
	assert.Equal(t, "Error: could not read bad.pdf", body.AnalysisResults[0].Analysis)
}

func TestBulkUploadCleansUpWorkspace(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/bulk-upload/",
		map[string]string{"user_uuid": "user-1"},
		formFile{"jd", "jd.pdf", pdfBytes("jd")},
		formFile{"resumes_zip", "resumes.zip", zipBytes(t, map[string]string{"r1.pdf": "%PDF-1.4"})},
	)
	resp := s.do(t, req, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBulkUploadValidation(t *testing.T) {
	jd := formFile{"jd", "jd.pdf", pdfBytes("jd")}

	tests := []struct {
		name    string
		fields  map[string]string
		files   func(t *testing.T) []formFile
		wantErr string
	}{
		{
			name:    "missing user",
			fields:  map[string]string{},
			files:   func(t *testing.T) []formFile { return []formFile{jd} },
			wantErr: "invalid request",
		},
		{
			name:    "non numeric max_workers",
			fields:  map[string]string{"user_uuid": "u", "max_workers": "many"},
			files:   func(t *testing.T) []formFile { return []formFile{jd} },
			wantErr: "invalid request",
		},
		{
			name:    "bad structured flag",
			fields:  map[string]string{"user_uuid": "u", "structured": "yes"},
			files:   func(t *testing.T) []formFile { return []formFile{jd} },
			wantErr: "invalid request",
		},
		{
			name:    "missing job description",
			fields:  map[string]string{"user_uuid": "u"},
			files:   func(t *testing.T) []formFile { return nil },
			wantErr: "jd file is required",
		},
		{
			name:    "missing zip",
			fields:  map[string]string{"user_uuid": "u"},
			files:   func(t *testing.T) []formFile { return []formFile{jd} },
			wantErr: "resumes_zip file is required",
		},
		{
			name:   "zip without pdfs",
			fields: map[string]string{"user_uuid": "u"},
			files: func(t *testing.T) []formFile {
				return []formFile{jd, {"resumes_zip", "resumes.zip", zipBytes(t, map[string]string{"notes.txt": "hi"})}}
			},
			wantErr: "No PDF resumes found in the zip file",
		},
		{
			name:   "not a zip",
			fields: map[string]string{"user_uuid": "u"},
			files: func(t *testing.T) []formFile {
				return []formFile{jd, {"resumes_zip", "resumes.zip", []byte("plain text")}}
			},
			wantErr: "Invalid zip file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			var body errorResponse
			resp := s.do(t, multipartRequest(t, "/bulk-upload/", tt.fields, tt.files(t)...), &body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body.Error, tt.wantErr)
			assert.Empty(t, s.orchestrator.requests)
		})
	}
}

func TestUploadSingleResume(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/upload/",
		map[string]string{"user_uuid": "user-1", "structured": "false", "max_workers": "50"},
		formFile{"jd", "jd.docx", []byte("PK\x03\x04")},
		formFile{"resume", "jane.pdf", pdfBytes("jane")},
	)

	var body analysisResponse
	resp := s.do(t, req, &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.AnalysisResults, 1)
	assert.Equal(t, "jane.pdf", body.AnalysisResults[0].ResumeFile)
	assert.Equal(t, string(models.OutcomeScored), body.AnalysisResults[0].Status)

	run := s.orchestrator.requests[0]
	assert.False(t, run.Structured)
	assert.Equal(t, 5, run.MaxWorkers)
	assert.Equal(t, "jd.docx", filepath.Base(run.JDPath))
}

func TestUploadRequiresResume(t *testing.T) {
	s := newTestServer(t, nil)

	req := multipartRequest(t, "/upload/",
		map[string]string{"user_uuid": "user-1"},
		formFile{"jd", "jd.pdf", pdfBytes("jd")},
	)

	var body errorResponse
	resp := s.do(t, req, &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "resume file is required", body.Error)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	s := newTestServer(t, nil)

	big := make([]byte, testMaxFileSize+1)
	req := multipartRequest(t, "/upload/",
		map[string]string{"user_uuid": "user-1"},
		formFile{"jd", "jd.pdf", pdfBytes("jd")},
		formFile{"resume", "big.pdf", big},
	)

	var body errorResponse
	resp := s.do(t, req, &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Error, "resume file too large")
}
