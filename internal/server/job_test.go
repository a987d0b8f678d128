package server

import (
	"context"
	"sync"
	"testing"

	"github.com/cwbudde/logregbench/internal/config"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()
	bench := *config.Default()

	job := jm.CreateJob(bench)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Expected state pending, got %s", job.State)
	}
	if job.Total != bench.Parameters.Size() {
		t.Errorf("Total = %d, want %d", job.Total, bench.Parameters.Size())
	}
	if job.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(*config.Default())

	got, ok := jm.GetJob(job.ID)
	if !ok {
		t.Fatal("Job should exist")
	}
	if got.ID != job.ID {
		t.Errorf("Expected ID %s, got %s", job.ID, got.ID)
	}

	if _, ok := jm.GetJob("nonexistent"); ok {
		t.Error("Nonexistent job should not be found")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(*config.Default())

	snap, _ := jm.GetJob(job.ID)
	snap.Done = 99

	again, _ := jm.GetJob(job.ID)
	if again.Done != 0 {
		t.Errorf("mutating a snapshot changed the job: Done = %d", again.Done)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()
	first := jm.CreateJob(*config.Default())
	jm.CreateJob(*config.Default())
	jm.CreateJob(*config.Default())

	jobs := jm.ListJobs()
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Errorf("Expected oldest job first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(*config.Default())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Done = 3
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateRunning || got.Done != 3 {
		t.Errorf("update not applied: %+v", got)
	}
	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Expected error for nonexistent job")
	}
}

func TestJobManager_Cancel(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(*config.Default())

	if jm.Cancel(job.ID) {
		t.Error("Cancel should fail without a cancel func")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jm.UpdateJob(job.ID, func(j *Job) { j.cancel = cancel })

	if !jm.Cancel(job.ID) {
		t.Fatal("Cancel should succeed for a pending job")
	}
	if ctx.Err() == nil {
		t.Error("context should be cancelled")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	if jm.Cancel(job.ID) {
		t.Error("Cancel should fail for a finished job")
	}
	if jm.Cancel("nonexistent") {
		t.Error("Cancel should fail for an unknown job")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(*config.Default())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				jm.UpdateJob(job.ID, func(j *Job) { j.Done++ })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				jm.GetJob(job.ID)
				jm.ListJobs()
			}
		}()
	}
	wg.Wait()

	got, _ := jm.GetJob(job.ID)
	if got.Done != 1000 {
		t.Errorf("Expected 1000 updates, got %d", got.Done)
	}
}
