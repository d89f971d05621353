package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"alfredoptarigan/resume-screener/internal/models"
)

var ErrAnalysisNotFound = errors.New("analysis result not found")

type UserDataRepository interface {
	FindUser(ctx context.Context, userID string) (*models.UserRecord, error)
	SaveFile(ctx context.Context, userID string, file models.FileRecord) (int, error)
	SaveCache(ctx context.Context, userID string, cache models.CacheRecord) (int, error)
	SaveAnalysisResult(ctx context.Context, userID string, result models.AnalysisRecord) (int, error)
	CreateBatchJob(ctx context.Context, userID, jobName string, numRequests int) (int, error)
	CompleteBatchJob(ctx context.Context, userID string, jobID, succeeded, failed int) error
	GetAnalysisResult(ctx context.Context, userID string, analysisID int) (*models.AnalysisRecord, error)
	ListCaches(ctx context.Context, userID string) ([]models.CacheRecord, error)
	ListBatchJobs(ctx context.Context, userID string) ([]models.BatchJobRecord, error)
}

type userDataRepository struct {
	store UserDataStore
	now   func() time.Time
}

func NewUserDataRepository(store UserDataStore) UserDataRepository {
	return &userDataRepository{store: store, now: time.Now}
}

func (r *userDataRepository) FindUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	return r.store.Find(ctx, userID)
}

// SaveFile appends a file record. The first file saved for a user creates the user.
func (r *userDataRepository) SaveFile(ctx context.Context, userID string, file models.FileRecord) (int, error) {
	var id int
	err := r.store.Mutate(ctx, userID, func(rec *models.UserRecord) error {
		id = rec.NextFileID()
		file.ID = id
		file.UploadTimestamp = models.Timestamp(r.now())
		rec.Files = append(rec.Files, file)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save file record: %w", err)
	}
	return id, nil
}

func (r *userDataRepository) SaveCache(ctx context.Context, userID string, cache models.CacheRecord) (int, error) {
	var id int
	err := r.store.Mutate(ctx, userID, func(rec *models.UserRecord) error {
		id = rec.NextCacheID()
		cache.ID = id
		cache.CreatedAt = models.Timestamp(r.now())
		cache.JDFilename, cache.ResumeFilename = "", ""
		rec.Caches = append(rec.Caches, cache)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save cache record: %w", err)
	}
	return id, nil
}

// SaveAnalysisResult appends a result, deriving score and recommendation
// from result_json when it is a scored object.
func (r *userDataRepository) SaveAnalysisResult(ctx context.Context, userID string, result models.AnalysisRecord) (int, error) {
	result.Score, result.Recommendation = summarize(result.ResultJSON)
	result.JDFilename, result.ResumeFilename = "", ""

	var id int
	err := r.store.Mutate(ctx, userID, func(rec *models.UserRecord) error {
		id = rec.NextAnalysisID()
		result.ID = id
		result.ProcessedAt = models.Timestamp(r.now())
		rec.AnalysisResults = append(rec.AnalysisResults, result)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save analysis result: %w", err)
	}
	return id, nil
}

func summarize(resultJSON string) (*float64, *string) {
	dec := json.NewDecoder(bytes.NewReader([]byte(resultJSON)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil
	}

	var score *float64
	if n, ok := doc["overall_fit_score"].(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			score = &f
		}
	}
	var rec *string
	if s, ok := doc["recommendation"].(string); ok {
		rec = &s
	}
	return score, rec
}

func (r *userDataRepository) CreateBatchJob(ctx context.Context, userID, jobName string, numRequests int) (int, error) {
	var id int
	err := r.store.Mutate(ctx, userID, func(rec *models.UserRecord) error {
		id = rec.NextBatchJobID()
		rec.BatchJobs = append(rec.BatchJobs, models.BatchJobRecord{
			ID:          id,
			JobName:     jobName,
			JobState:    models.BatchStateRunning,
			NumRequests: numRequests,
			CreatedAt:   models.Timestamp(r.now()),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create batch job: %w", err)
	}
	return id, nil
}

func (r *userDataRepository) CompleteBatchJob(ctx context.Context, userID string, jobID, succeeded, failed int) error {
	err := r.store.Mutate(ctx, userID, func(rec *models.UserRecord) error {
		for i := range rec.BatchJobs {
			if rec.BatchJobs[i].ID != jobID {
				continue
			}
			done := models.Timestamp(r.now())
			rec.BatchJobs[i].JobState = models.BatchStateDone
			rec.BatchJobs[i].Succeeded = succeeded
			rec.BatchJobs[i].Failed = failed
			rec.BatchJobs[i].CompletedAt = &done
			return nil
		}
		return fmt.Errorf("batch job %d not found", jobID)
	})
	if err != nil {
		return fmt.Errorf("failed to complete batch job: %w", err)
	}
	return nil
}

// GetAnalysisResult returns one stored result with the related file names filled in.
func (r *userDataRepository) GetAnalysisResult(ctx context.Context, userID string, analysisID int) (*models.AnalysisRecord, error) {
	rec, err := r.store.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range rec.AnalysisResults {
		if a.ID != analysisID {
			continue
		}
		if f, ok := rec.FileByID(a.JDFileID); ok {
			a.JDFilename = f.Filename
		}
		if f, ok := rec.FileByID(a.ResumeFileID); ok {
			a.ResumeFilename = f.Filename
		}
		return &a, nil
	}
	return nil, ErrAnalysisNotFound
}

func (r *userDataRepository) ListCaches(ctx context.Context, userID string) ([]models.CacheRecord, error) {
	rec, err := r.store.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	caches := make([]models.CacheRecord, 0, len(rec.Caches))
	for _, c := range rec.Caches {
		if f, ok := rec.FileByID(c.JDFileID); ok {
			c.JDFilename = f.Filename
		}
		if f, ok := rec.FileByID(c.ResumeFileID); ok {
			c.ResumeFilename = f.Filename
		}
		caches = append(caches, c)
	}
	return caches, nil
}

// ListBatchJobs returns batch jobs newest first.
func (r *userDataRepository) ListBatchJobs(ctx context.Context, userID string) ([]models.BatchJobRecord, error) {
	rec, err := r.store.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	jobs := slices.Clone(rec.BatchJobs)
	slices.Reverse(jobs)
	if jobs == nil {
		jobs = []models.BatchJobRecord{}
	}
	return jobs, nil
}
