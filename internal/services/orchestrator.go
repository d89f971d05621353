package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/models"
	"alfredoptarigan/resume-screener/internal/repositories"
)

const (
	DefaultMaxWorkers  = 5
	DefaultTaskTimeout = 10 * time.Minute
)

// BulkRequest scores every resume against one job description.
type BulkRequest struct {
	JDPath      string
	ResumePaths []string
	UserID      string
	MaxWorkers  int
	Structured  bool
	TaskTimeout time.Duration
	OnProgress  ProgressFunc
}

type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	State     BatchState
	Elapsed   time.Duration
}

type Orchestrator interface {
	// Run returns one outcome per distinct resume path. Individual failures
	// are recorded in the map; Run itself does not fail.
	Run(ctx context.Context, req BulkRequest) (map[string]models.Outcome, BatchSummary)
}

type orchestrator struct {
	analyzer    Analyzer
	newClient   EvaluatorFactory
	repo        repositories.UserDataRepository
	maxWorkers  int
	taskTimeout time.Duration
	log         *zap.Logger
}

// NewOrchestrator builds the bulk runner. newClient is called once per
// task so that no evaluator client is shared between goroutines. repo may
// be nil, in which case no batch-job records are kept.
func NewOrchestrator(
	analyzer Analyzer,
	newClient EvaluatorFactory,
	repo repositories.UserDataRepository,
	maxWorkers int,
	taskTimeout time.Duration,
	log *zap.Logger,
) Orchestrator {
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &orchestrator{
		analyzer:    analyzer,
		newClient:   newClient,
		repo:        repo,
		maxWorkers:  maxWorkers,
		taskTimeout: taskTimeout,
		log:         logger.OrNop(log),
	}
}

type taskResult struct {
	index   int
	path    string
	outcome models.Outcome
}

// Run implements Orchestrator.
func (o *orchestrator) Run(ctx context.Context, req BulkRequest) (map[string]models.Outcome, BatchSummary) {
	started := time.Now()
	paths := uniquePaths(req.ResumePaths)

	workers := req.MaxWorkers
	if workers == 0 {
		workers = o.maxWorkers
	}
	workers = max(workers, 1)

	timeout := req.TaskTimeout
	if timeout <= 0 {
		timeout = o.taskTimeout
	}

	log := o.log.With(
		zap.String(logger.FieldJD, filepath.Base(req.JDPath)),
		zap.String(logger.FieldUser, req.UserID),
		zap.Int(logger.FieldTotal, len(paths)),
	)
	log.Info("🚀 Starting bulk analysis", zap.Int("workers", workers))

	jobID := o.createBatchJob(ctx, req.UserID, len(paths), log)

	progress := newProgressTracker(len(paths), req.OnProgress)
	results := make(chan taskResult, len(paths))

	go func() {
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for i, path := range paths {
			g.Go(func() error {
				progress.start(i)
				results <- taskResult{index: i, path: path, outcome: o.runTask(ctx, req, path, timeout)}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	outcomes := make(map[string]models.Outcome, len(paths))
	summary := BatchSummary{Total: len(paths)}

	for res := range results {
		if !progress.complete(res.index, res.path, res.outcome) {
			continue
		}
		outcomes[res.path] = res.outcome
		if res.outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		log.Info("📊 Progress",
			zap.Int(logger.FieldCompleted, summary.Succeeded+summary.Failed),
			zap.String(logger.FieldResume, filepath.Base(res.path)),
			zap.String("kind", string(res.outcome.Kind)),
		)
	}

	summary.State = progress.batchState()
	summary.Elapsed = time.Since(started)

	o.completeBatchJob(ctx, req.UserID, jobID, summary, log)

	log.Info("✅ Bulk analysis finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration(logger.FieldElapsed, summary.Elapsed),
	)
	return outcomes, summary
}

// runTask analyses one resume with its own client and deadline. Whatever
// goes wrong here comes back as a failed outcome. A timed-out task frees its
// worker slot while the analysis goroutine runs on until it observes tctx, so
// in-flight analyses can briefly exceed max_workers.
func (o *orchestrator) runTask(ctx context.Context, req BulkRequest, resumePath string, timeout time.Duration) models.Outcome {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan models.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.Failed(fmt.Sprintf("Unexpected error: %v", r))
			}
		}()

		client, err := o.newClient(tctx)
		if err != nil {
			done <- models.Failed(fmt.Sprintf("Unexpected error: failed to create evaluator client: %v", err))
			return
		}

		done <- o.analyzer.Analyze(tctx, client, PairRequest{
			JDPath:     req.JDPath,
			ResumePath: resumePath,
			UserID:     req.UserID,
			Structured: req.Structured,
		})
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-tctx.Done():
		if ctx.Err() != nil {
			return models.Failed(fmt.Sprintf("Unexpected error: %v", ctx.Err()))
		}
		return models.Failed(fmt.Sprintf("Unexpected error: %v after %s", ErrTaskTimeout, timeout))
	}
}

func (o *orchestrator) createBatchJob(ctx context.Context, userID string, total int, log *zap.Logger) int {
	if o.repo == nil || userID == "" {
		return 0
	}
	id, err := o.repo.CreateBatchJob(ctx, userID, "bulk-"+uuid.New().String(), total)
	if err != nil {
		log.Warn("⚠️ Failed to record batch job", zap.Error(&StoreError{Op: "create batch job", Err: err}))
		return 0
	}
	return id
}

func (o *orchestrator) completeBatchJob(ctx context.Context, userID string, jobID int, summary BatchSummary, log *zap.Logger) {
	if o.repo == nil || jobID == 0 {
		return
	}
	if err := o.repo.CompleteBatchJob(context.WithoutCancel(ctx), userID, jobID, summary.Succeeded, summary.Failed); err != nil {
		log.Warn("⚠️ Failed to complete batch job", zap.Error(&StoreError{Op: "complete batch job", Err: err}))
	}
}

// uniquePaths drops repeated paths, keeping the first occurrence.
func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
