package services

import (
	"sync"

	"alfredoptarigan/resume-screener/internal/models"
)

type TaskState string

const (
	TaskSubmitted TaskState = "SUBMITTED"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
)

type BatchState string

const (
	BatchRunning BatchState = "RUNNING"
	BatchDone    BatchState = "DONE"
)

// ProgressEvent is reported once per finished task.
type ProgressEvent struct {
	Completed  int
	Total      int
	ResumePath string
	Kind       models.OutcomeKind
}

type ProgressFunc func(ProgressEvent)

// progressTracker counts finished tasks. Completing a task twice is a no-op,
// so the counter reaches total exactly once.
type progressTracker struct {
	mu         sync.Mutex
	states     []TaskState
	completed  int
	onProgress ProgressFunc
}

func newProgressTracker(total int, onProgress ProgressFunc) *progressTracker {
	states := make([]TaskState, total)
	for i := range states {
		states[i] = TaskSubmitted
	}
	return &progressTracker{states: states, onProgress: onProgress}
}

func (p *progressTracker) start(task int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.states[task] == TaskSubmitted {
		p.states[task] = TaskRunning
	}
}

// complete records the outcome of a task and reports whether this call
// was the one that finished it.
func (p *progressTracker) complete(task int, resumePath string, outcome models.Outcome) bool {
	p.mu.Lock()
	if p.states[task] == TaskSucceeded || p.states[task] == TaskFailed {
		p.mu.Unlock()
		return false
	}

	if outcome.Succeeded() {
		p.states[task] = TaskSucceeded
	} else {
		p.states[task] = TaskFailed
	}
	p.completed++
	event := ProgressEvent{
		Completed:  p.completed,
		Total:      len(p.states),
		ResumePath: resumePath,
		Kind:       outcome.Kind,
	}
	p.mu.Unlock()

	if p.onProgress != nil {
		p.onProgress(event)
	}
	return true
}

func (p *progressTracker) state(task int) TaskState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[task]
}

func (p *progressTracker) batchState() BatchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed == len(p.states) {
		return BatchDone
	}
	return BatchRunning
}
