package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-screener/internal/models"
)

func newTestRepo() *userDataRepository {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &userDataRepository{
		store: NewMemoryStore(),
		now:   func() time.Time { return fixed },
	}
}

func TestFindUserMissing(t *testing.T) {
	repo := newTestRepo()

	_, err := repo.FindUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.ListCaches(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSaveFileAssignsSequentialIDs(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		id, err := repo.SaveFile(ctx, "u1", models.FileRecord{Filename: fmt.Sprintf("f%d.pdf", want)})
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// Ids are per user.
	id, err := repo.SaveFile(ctx, "u2", models.FileRecord{Filename: "other.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	rec, err := repo.FindUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rec.Files, 3)
	assert.Equal(t, "2026-03-01T10:00:00Z", rec.Files[0].UploadTimestamp)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.SaveAnalysisResult(ctx, "u1", models.AnalysisRecord{
				ResultJSON: fmt.Sprintf(`{"overall_fit_score": %d}`, i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, err := repo.FindUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rec.AnalysisResults, n)

	seen := make(map[int]bool)
	for _, a := range rec.AnalysisResults {
		assert.False(t, seen[a.ID], "duplicate id %d", a.ID)
		seen[a.ID] = true
	}
	for id := 1; id <= n; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}

func TestSaveAnalysisResultDerivesSummary(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	id, err := repo.SaveAnalysisResult(ctx, "u1", models.AnalysisRecord{
		CacheID:    1,
		Kind:       models.OutcomeScored,
		ResultJSON: `{"overall_fit_score": 87.5, "recommendation": "APPROVED"}`,
	})
	require.NoError(t, err)

	got, err := repo.GetAnalysisResult(ctx, "u1", id)
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 87.5, *got.Score)
	require.NotNil(t, got.Recommendation)
	assert.Equal(t, "APPROVED", *got.Recommendation)

	id, err = repo.SaveAnalysisResult(ctx, "u1", models.AnalysisRecord{
		Kind:       models.OutcomeRawText,
		ResultJSON: `{"text_result": "free form"}`,
	})
	require.NoError(t, err)
	got, err = repo.GetAnalysisResult(ctx, "u1", id)
	require.NoError(t, err)
	assert.Nil(t, got.Score)
	assert.Nil(t, got.Recommendation)
}

func TestGetAnalysisResultEnrichesFilenames(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	jdID, err := repo.SaveFile(ctx, "u1", models.FileRecord{Filename: "jd.pdf", FileType: "jd"})
	require.NoError(t, err)
	resumeID, err := repo.SaveFile(ctx, "u1", models.FileRecord{Filename: "alice.pdf", FileType: "resume"})
	require.NoError(t, err)

	cacheID, err := repo.SaveCache(ctx, "u1", models.CacheRecord{
		CacheName:    "cachedContents/abc",
		JDFileID:     jdID,
		ResumeFileID: resumeID,
		TTL:          1800,
	})
	require.NoError(t, err)

	id, err := repo.SaveAnalysisResult(ctx, "u1", models.AnalysisRecord{
		CacheID:      cacheID,
		JDFileID:     jdID,
		ResumeFileID: resumeID,
		ResultJSON:   `{}`,
	})
	require.NoError(t, err)

	got, err := repo.GetAnalysisResult(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "jd.pdf", got.JDFilename)
	assert.Equal(t, "alice.pdf", got.ResumeFilename)

	_, err = repo.GetAnalysisResult(ctx, "u1", 99)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	caches, err := repo.ListCaches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, caches, 1)
	assert.Equal(t, "jd.pdf", caches[0].JDFilename)
	assert.Equal(t, "alice.pdf", caches[0].ResumeFilename)

	// Enrichment is a view; nothing is written back.
	rec, err := repo.FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rec.Caches[0].JDFilename)
}

func TestBatchJobLifecycle(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	first, err := repo.CreateBatchJob(ctx, "u1", "bulk-one", 3)
	require.NoError(t, err)
	second, err := repo.CreateBatchJob(ctx, "u1", "bulk-two", 1)
	require.NoError(t, err)

	require.NoError(t, repo.CompleteBatchJob(ctx, "u1", first, 2, 1))

	jobs, err := repo.ListBatchJobs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second, jobs[0].ID)
	assert.Equal(t, models.BatchStateRunning, jobs[0].JobState)
	assert.Nil(t, jobs[0].CompletedAt)

	assert.Equal(t, models.BatchStateDone, jobs[1].JobState)
	assert.Equal(t, 2, jobs[1].Succeeded)
	assert.Equal(t, 1, jobs[1].Failed)
	require.NotNil(t, jobs[1].CompletedAt)

	assert.Error(t, repo.CompleteBatchJob(ctx, "u1", 42, 0, 0))
}

func TestMutateErrorLeavesRecordUntouched(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Mutate(ctx, "u1", func(rec *models.UserRecord) error {
		rec.Files = append(rec.Files, models.FileRecord{ID: 1})
		return nil
	}))

	boom := errors.New("boom")
	err := store.Mutate(ctx, "u1", func(rec *models.UserRecord) error {
		rec.Files = append(rec.Files, models.FileRecord{ID: 2})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rec.Files, 1)
}
