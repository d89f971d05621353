package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
	"alfredoptarigan/resume-screener/internal/services"
)

const testMaxFileSize = 1 << 20

// fakeOrchestrator scores every resume except those whose name starts with
// "bad", and remembers the requests it was given.
type fakeOrchestrator struct {
	mu       sync.Mutex
	requests []services.BulkRequest
}

func (f *fakeOrchestrator) Run(ctx context.Context, req services.BulkRequest) (map[string]models.Outcome, services.BatchSummary) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	outcomes := make(map[string]models.Outcome, len(req.ResumePaths))
	summary := services.BatchSummary{Total: len(req.ResumePaths), State: services.BatchDone}
	for _, p := range req.ResumePaths {
		if strings.HasPrefix(filepath.Base(p), "bad") {
			outcomes[p] = models.Failed("Error: could not read " + filepath.Base(p))
			summary.Failed++
			continue
		}
		outcomes[p] = models.Scored(map[string]any{"candidate_name": filepath.Base(p), "overall_fit_score": 80})
		summary.Succeeded++
	}
	return outcomes, summary
}

type fakeIndex struct {
	hits  []models.SearchHit
	query string
	limit int
}

func (f *fakeIndex) InitCollection(ctx context.Context) error { return nil }

func (f *fakeIndex) IndexAnalysis(ctx context.Context, userID string, analysisID int, resumeFile string, result *models.AnalysisResult) error {
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, userID, query string, limit int) ([]models.SearchHit, error) {
	f.query, f.limit = query, limit
	return f.hits, nil
}

type testServer struct {
	app          *fiber.App
	orchestrator *fakeOrchestrator
	repo         repositories.UserDataRepository
	uploadDir    string
}

func newTestServer(t *testing.T, index services.ResultIndex) *testServer {
	t.Helper()

	uploadDir := t.TempDir()
	orchestrator := &fakeOrchestrator{}
	repo := repositories.NewUserDataRepository(repositories.NewMemoryStore())
	storage := services.NewStorageService(uploadDir, testMaxFileSize, nil)

	app := fiber.New()
	RegisterRoutes(app,
		NewUploadHandler(storage, orchestrator, validator.New(), testMaxFileSize, 5, nil),
		NewResultHandler(repo, index, nil),
		NewHistoryHandler(repo),
	)

	return &testServer{app: app, orchestrator: orchestrator, repo: repo, uploadDir: uploadDir}
}

type formFile struct {
	field, name string
	content     []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func pdfBytes(name string) []byte {
	return []byte("%PDF-1.4\n% " + name + "\n")
}

// do runs req against the app and decodes the JSON body into out.
func (s *testServer) do(t *testing.T, req *http.Request, out any) *http.Response {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp
}

func (s *testServer) get(t *testing.T, target string, out any) *http.Response {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, target, nil), out)
}
