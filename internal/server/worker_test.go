package server

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/logregbench/internal/config"
	"github.com/cwbudde/logregbench/internal/store"
)

const testBenchmark = `
name: server-test
dataset:
  simulated:
    n_samples: 40
    n_features: 4
    rho: 0.3
    density: 0.5
    noise: 0.1
    seed: 1
lambda: 1
max_iter: 5
workers: 2
parameters:
  solver: [pgd]
  line_search: [false]
  stochastic: [false, true]
  batch_size: [16, full]
  normalization: [none]
  momentum: [0]
  device: [cpu]
`

func testBench(t *testing.T) config.Benchmark {
	t.Helper()
	b, err := config.Parse([]byte(testBenchmark))
	if err != nil {
		t.Fatalf("Failed to parse benchmark: %v", err)
	}
	return *b
}

func TestRunJob_Success(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	jm := NewJobManager()
	job := jm.CreateJob(testBench(t))

	if err := runJob(context.Background(), jm, st, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateCompleted {
		t.Fatalf("Expected completed, got %s (%s)", got.State, got.Error)
	}
	if got.Done != 4 || got.Ran != 2 || got.Skipped != 2 || got.Failed != 0 {
		t.Errorf("counters = done %d ran %d skipped %d failed %d", got.Done, got.Ran, got.Skipped, got.Failed)
	}
	if got.BestSolver == "" {
		t.Error("BestSolver should be set")
	}
	if got.EndTime == nil {
		t.Error("EndTime should be set")
	}

	record, err := st.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("run record not saved: %v", err)
	}
	if len(record.Report.Results) != 4 {
		t.Errorf("Expected 4 results, got %d", len(record.Report.Results))
	}

	tr, err := store.NewTraceReader(st.BaseDir(), job.ID)
	if err != nil {
		t.Fatalf("trace not written: %v", err)
	}
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(store.GroupBySolver(entries)) != 2 {
		t.Errorf("Expected traces for 2 solvers, got %d", len(store.GroupBySolver(entries)))
	}
}

func TestRunJob_WithoutStore(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testBench(t))

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}
	got, _ := jm.GetJob(job.ID)
	if got.State != StateCompleted {
		t.Errorf("Expected completed, got %s", got.State)
	}
}

func TestRunJob_MissingDataset(t *testing.T) {
	bench := testBench(t)
	bench.Dataset.Path = "/nonexistent/data.csv"

	jm := NewJobManager()
	job := jm.CreateJob(bench)

	if err := runJob(context.Background(), jm, nil, job.ID); err == nil {
		t.Fatal("Expected error for missing dataset")
	}
	got, _ := jm.GetJob(job.ID)
	if got.State != StateFailed || got.Error == "" {
		t.Errorf("Expected failed state with error, got %s %q", got.State, got.Error)
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testBench(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJob(ctx, jm, nil, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	got, _ := jm.GetJob(job.ID)
	if got.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", got.State)
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	if err := runJob(context.Background(), NewJobManager(), nil, "missing"); err == nil {
		t.Error("Expected error for unknown job")
	}
}
