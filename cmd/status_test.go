package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/logregbench/internal/server"
	"github.com/cwbudde/logregbench/internal/store"
)

func TestStatus_AgainstServer(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	require.NoError(t, err)
	ts := httptest.NewServer(server.NewServer(":0", st).Handler())
	defer ts.Close()

	var buf bytes.Buffer
	require.NoError(t, listJobs(&buf, ts.URL))
	assert.Contains(t, buf.String(), "No runs found")

	// A run known only from the store is printed from its record.
	runID, _, err := executeBenchmark(context.Background(), smallBench(t), dir)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, getJobStatus(&buf, ts.URL, runID))
	assert.Contains(t, buf.String(), "cli-test")
	assert.Contains(t, buf.String(), "3 ran, 5 skipped, 0 failed")

	assert.Error(t, getJobStatus(&buf, ts.URL, "missing"))
	assert.Error(t, cancelJob(&buf, ts.URL, "missing"))
}

func TestStatus_WatchSubmittedRun(t *testing.T) {
	ts := httptest.NewServer(server.NewServer(":0", nil).Handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+"/api/v1/runs", "application/yaml", strings.NewReader(smallBenchmark))
	require.NoError(t, err)
	resp.Body.Close()

	var jobs []server.Job
	require.NoError(t, getJSON(ts.URL+"/api/v1/runs", &jobs))
	require.Len(t, jobs, 1)

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() { done <- watchJob(&buf, ts.URL, jobs[0].ID) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("watch did not finish")
	}
	assert.Contains(t, buf.String(), "completed")

	buf.Reset()
	require.NoError(t, getJobStatus(&buf, ts.URL, jobs[0].ID))
	assert.Contains(t, buf.String(), "State: completed")
	assert.Contains(t, buf.String(), "8/8 configurations")
}
