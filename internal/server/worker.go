package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/logregbench/internal/harness"
	"github.com/cwbudde/logregbench/internal/store"
)

// jobObserver forwards harness progress to the job, its SSE clients, the
// trace file and the metrics.
type jobObserver struct {
	jm    *JobManager
	jobID string
	trace *store.TraceWriter
}

func (o *jobObserver) OnPoint(name string, pt harness.TracePoint) {
	tracePointsTotal.Inc()

	if o.trace != nil {
		if err := o.trace.Write(store.NewTraceEntry(name, pt)); err != nil {
			slog.Warn("Failed to write trace entry", "job_id", o.jobID, "error", err)
		}
	}

	job, _ := o.jm.GetJob(o.jobID)
	o.jm.broadcaster.Broadcast(ProgressEvent{
		JobID:         o.jobID,
		State:         StateRunning,
		Solver:        name,
		NIter:         pt.NIter,
		Objective:     pt.Objective,
		Suboptimality: pt.Suboptimality,
		Done:          job.Done,
		Total:         job.Total,
		Timestamp:     time.Now(),
	})
}

func (o *jobObserver) OnResult(res harness.SolverResult) {
	var outcome string
	o.jm.UpdateJob(o.jobID, func(j *Job) {
		j.Done++
		switch {
		case res.Skipped:
			j.Skipped++
			outcome = "skipped"
		case res.Error != "":
			j.Failed++
			outcome = "failed"
		default:
			j.Ran++
			outcome = "ran"
			if len(res.Trace) > 0 && (j.BestSolver == "" || res.FinalObjective < j.BestObjective) {
				j.BestSolver = res.Name
				j.BestObjective = res.FinalObjective
			}
		}
	})
	configsTotal.WithLabelValues(outcome).Inc()
}

// runJob executes a benchmark job. Traces are written while the grid runs;
// the run record is saved once it completes. st may be nil.
func runJob(ctx context.Context, jm *JobManager, st *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	runsActive.Inc()
	defer runsActive.Dec()

	slog.Info("Starting job", "job_id", jobID, "name", job.Benchmark.Name, "configs", job.Total)
	start := time.Now()
	defer func() { runDuration.Observe(time.Since(start).Seconds()) }()

	bench := job.Benchmark
	data, err := bench.LoadDataset()
	if err != nil {
		err = fmt.Errorf("failed to load dataset: %w", err)
		markJobFailed(jm, jobID, err)
		return err
	}

	observer := &jobObserver{jm: jm, jobID: jobID}
	if st != nil {
		tw, err := store.NewTraceWriter(st.BaseDir(), jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer tw.Close()
		observer.trace = tw
	}

	report, err := harness.NewRunner(data, bench.HarnessOptions(), observer).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	if st != nil {
		if err := observer.trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
		if err := st.SaveRun(jobID, store.NewRunRecord(jobID, bench, report)); err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to save run: %w", err))
			return err
		}
	}

	endTime := time.Now()
	var final Job
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Reference = report.Reference
		j.EndTime = &endTime
		final = *j
	})
	runsTotal.WithLabelValues(string(StateCompleted)).Inc()

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", report.Elapsed,
		"ran", final.Ran,
		"skipped", final.Skipped,
		"failed", final.Failed,
		"best_solver", final.BestSolver,
		"best_objective", final.BestObjective,
	)

	broadcastState(jm, final)
	return nil
}

func broadcastState(jm *JobManager, job Job) {
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		Done:      job.Done,
		Total:     job.Total,
		Timestamp: time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	finishJob(jm, jobID, StateFailed, err.Error())
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	finishJob(jm, jobID, StateCancelled, "")
	slog.Info("Job cancelled", "job_id", jobID)
}

func finishJob(jm *JobManager, jobID string, state JobState, msg string) {
	endTime := time.Now()
	var final Job
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Error = msg
		j.EndTime = &endTime
		final = *j
	})
	runsTotal.WithLabelValues(string(state)).Inc()
	broadcastState(jm, final)
}
