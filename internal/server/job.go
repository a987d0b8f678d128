package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/logregbench/internal/config"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job is one benchmark run submitted to the server. The job ID doubles as
// the run ID in the store.
type Job struct {
	ID            string           `json:"id"`
	State         JobState         `json:"state"`
	Benchmark     config.Benchmark `json:"benchmark"`
	Total         int              `json:"total"`
	Done          int              `json:"done"`
	Ran           int              `json:"ran"`
	Skipped       int              `json:"skipped"`
	Failed        int              `json:"failed"`
	BestSolver    string           `json:"bestSolver,omitempty"`
	BestObjective float64          `json:"bestObjective,omitempty"`
	Reference     float64          `json:"reference,omitempty"`
	StartTime     time.Time        `json:"startTime"`
	EndTime       *time.Time       `json:"endTime,omitempty"`
	Error         string           `json:"error,omitempty"`

	cancel context.CancelFunc
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for the benchmark.
func (jm *JobManager) CreateJob(bench config.Benchmark) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Benchmark: bench,
		Total:     bench.Parameters.Size(),
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of the job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, *job)
		}
	}
	return running
}

// Cancel stops a pending or running job. It returns false if the job does
// not exist or has already finished.
func (jm *JobManager) Cancel(id string) bool {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists || job.State.Terminal() || job.cancel == nil {
		jm.mu.Unlock()
		return false
	}
	cancel := job.cancel
	jm.mu.Unlock()

	cancel()
	return true
}

// CancelAll stops every unfinished job.
func (jm *JobManager) CancelAll() {
	jm.mu.RLock()
	var cancels []context.CancelFunc
	for _, job := range jm.jobs {
		if !job.State.Terminal() && job.cancel != nil {
			cancels = append(cancels, job.cancel)
		}
	}
	jm.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
}
