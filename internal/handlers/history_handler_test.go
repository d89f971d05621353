package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-screener/internal/models"
)

func TestListCaches(t *testing.T) {
	s := newTestServer(t, nil)
	seedUser(t, s, "user-1")

	var body struct {
		UserUUID string               `json:"user_uuid"`
		Total    int                  `json:"total"`
		Caches   []models.CacheRecord `json:"caches"`
	}
	resp := s.get(t, "/caches/user-1", &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Caches, 1)
	assert.Equal(t, "cachedContents/abc", body.Caches[0].CacheName)
	assert.Equal(t, "jd.pdf", body.Caches[0].JDFilename)
	assert.Equal(t, "jane.pdf", body.Caches[0].ResumeFilename)
}

func TestListBatchJobs(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	first, err := s.repo.CreateBatchJob(ctx, "user-1", "bulk-first", 3)
	require.NoError(t, err)
	require.NoError(t, s.repo.CompleteBatchJob(ctx, "user-1", first, 2, 1))
	_, err = s.repo.CreateBatchJob(ctx, "user-1", "bulk-second", 1)
	require.NoError(t, err)

	var body struct {
		Total     int                     `json:"total"`
		BatchJobs []models.BatchJobRecord `json:"batch_jobs"`
	}
	resp := s.get(t, "/batch-jobs/user-1", &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.BatchJobs, 2)
	assert.Equal(t, "bulk-second", body.BatchJobs[0].JobName)
	assert.Equal(t, models.BatchStateRunning, body.BatchJobs[0].JobState)
	assert.Equal(t, models.BatchStateDone, body.BatchJobs[1].JobState)
	assert.Equal(t, 2, body.BatchJobs[1].Succeeded)
}

func TestHistoryUnknownUser(t *testing.T) {
	s := newTestServer(t, nil)

	var body errorResponse
	resp := s.get(t, "/caches/nobody", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body.Error)

	resp = s.get(t, "/batch-jobs/nobody", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRootListsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	var body struct {
		Message   string   `json:"message"`
		Endpoints []string `json:"endpoints"`
	}
	resp := s.get(t, "/", &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Endpoints, body.Endpoints)

	var health map[string]any
	resp = s.get(t, "/api/v1/health", &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])
}
