package harness

import (
	"math"
	"testing"
)

func TestConvergenceTracker_StopsAfterPatience(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01,
	})

	if tracker.Best() != math.Inf(1) {
		t.Errorf("Expected initial best to be Inf, got %v", tracker.Best())
	}

	if tracker.Update(1.0) {
		t.Error("Should not stop on first update")
	}
	if tracker.Update(0.8) { // 20% decrease
		t.Error("Should not stop after progress")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0, got %d", tracker.StaleCount())
	}

	// Relative to 0.8 these are all below 1%.
	if tracker.Update(0.799) {
		t.Error("Should not stop yet (1/3)")
	}
	if tracker.Update(0.798) {
		t.Error("Should not stop yet (2/3)")
	}
	if !tracker.Update(0.797) {
		t.Error("Should stop once patience is exhausted (3/3)")
	}
	if tracker.Best() != 0.797 {
		t.Errorf("Expected best 0.797, got %v", tracker.Best())
	}
}

func TestConvergenceTracker_ProgressResetsStaleCount(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.05})

	tracker.Update(1.0)
	tracker.Update(0.99)
	if tracker.StaleCount() != 1 {
		t.Errorf("Expected stale count 1, got %d", tracker.StaleCount())
	}

	tracker.Update(0.9)
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count reset to 0, got %d", tracker.StaleCount())
	}
}

func TestConvergenceTracker_Disabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())
	for i := 0; i < 20; i++ {
		if tracker.Update(1.0) {
			t.Fatalf("Disabled tracker stopped at update %d", i)
		}
	}
	if len(tracker.History()) != 20 {
		t.Errorf("Expected 20 history entries, got %d", len(tracker.History()))
	}
}

func TestConvergenceTracker_StopsOnDivergence(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(0.7)
	if !tracker.Update(math.NaN()) {
		t.Error("Expected stop on NaN objective")
	}
}

func TestConvergenceTracker_ZeroObjective(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 1, Threshold: 0.1})
	tracker.Update(0)
	if !tracker.Update(0) {
		t.Error("Expected stop when a zero objective does not move")
	}
}

func TestConvergenceTracker_Reset(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(1)
	tracker.Update(1)
	tracker.Reset()

	if len(tracker.History()) != 0 || tracker.StaleCount() != 0 || tracker.Best() != math.Inf(1) {
		t.Error("Reset did not clear tracker state")
	}
}
