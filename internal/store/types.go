package store

import (
	"math"
	"time"

	"github.com/cwbudde/logregbench/internal/config"
	"github.com/cwbudde/logregbench/internal/harness"
)

// RunRecord is the persisted outcome of one benchmark run.
//
// The record keeps the benchmark definition next to the report so a run can
// be reproduced: simulated datasets are regenerated from their seed, and
// every configuration restarts from zero anyway.
type RunRecord struct {
	// RunID is the unique identifier of this run
	RunID string `json:"runId"`

	// CreatedAt records when the run finished
	CreatedAt time.Time `json:"createdAt"`

	// Benchmark is the definition the run was executed with
	Benchmark config.Benchmark `json:"benchmark"`

	// Report holds per-configuration traces and final solutions
	Report *harness.Report `json:"report"`
}

// RunInfo is the listing view of a run, without traces or solutions.
type RunInfo struct {
	RunID         string    `json:"runId"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	Dataset       string    `json:"dataset"`
	Lambda        float64   `json:"lambda"`
	Ran           int       `json:"ran"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	BestSolver    string    `json:"bestSolver,omitempty"`
	BestObjective float64   `json:"bestObjective"`
}

// NewRunRecord creates a record stamped with the current time.
func NewRunRecord(runID string, bench config.Benchmark, report *harness.Report) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		CreatedAt: time.Now(),
		Benchmark: bench,
		Report:    report,
	}
}

// ToInfo summarizes the record.
func (r *RunRecord) ToInfo() RunInfo {
	info := RunInfo{
		RunID:         r.RunID,
		Name:          r.Benchmark.Name,
		CreatedAt:     r.CreatedAt,
		Lambda:        r.Benchmark.Lambda,
		BestObjective: math.Inf(1),
	}
	if r.Report == nil {
		return info
	}

	info.Dataset = r.Report.Dataset
	info.Ran, info.Skipped, info.Failed = r.Report.Counts()
	for _, res := range r.Report.Results {
		if res.Skipped || res.Error != "" || len(res.Trace) == 0 {
			continue
		}
		if res.FinalObjective < info.BestObjective {
			info.BestObjective = res.FinalObjective
			info.BestSolver = res.Name
		}
	}
	if info.BestSolver == "" {
		info.BestObjective = 0
	}
	return info
}

// Validate checks that the record can be persisted.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	if r.Report == nil {
		return &ValidationError{Field: "Report", Reason: "cannot be nil"}
	}
	for _, res := range r.Report.Results {
		if res.Name == "" {
			return &ValidationError{Field: "Report.Results", Reason: "result without a solver name"}
		}
		if res.Skipped && res.Reason == "" {
			return &ValidationError{Field: "Report.Results", Reason: res.Name + " skipped without a reason"}
		}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
