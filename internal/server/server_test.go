package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":0", st)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func createRun(t *testing.T, ts *httptest.Server, body string) Job {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/yaml", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, msg)
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return job
}

func waitForJob(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.jobManager.GetJob(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServer_RunLifecycle(t *testing.T) {
	s, ts := newTestServer(t)

	job := createRun(t, ts, testBenchmark)
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}
	if job.Total != 4 {
		t.Errorf("Total = %d, want 4", job.Total)
	}

	final := waitForJob(t, s, job.ID)
	if final.State != StateCompleted {
		t.Fatalf("Expected completed, got %s (%s)", final.State, final.Error)
	}

	var live Job
	if code := getJSON(t, ts.URL+"/api/v1/runs/"+job.ID, &live); code != http.StatusOK {
		t.Fatalf("GET run returned %d", code)
	}
	if live.Ran != 2 || live.Skipped != 2 {
		t.Errorf("ran/skipped = %d/%d, want 2/2", live.Ran, live.Skipped)
	}

	var jobs []Job
	if code := getJSON(t, ts.URL+"/api/v1/runs", &jobs); code != http.StatusOK || len(jobs) != 1 {
		t.Errorf("list returned %d with %d jobs", code, len(jobs))
	}

	var trace []store.TraceEntry
	if code := getJSON(t, ts.URL+"/api/v1/runs/"+job.ID+"/trace", &trace); code != http.StatusOK {
		t.Fatalf("GET trace returned %d", code)
	}
	if len(trace) == 0 {
		t.Fatal("Expected trace entries")
	}

	var filtered []store.TraceEntry
	getJSON(t, ts.URL+"/api/v1/runs/"+job.ID+"/trace?solver="+live.BestSolver, &filtered)
	for _, e := range filtered {
		if e.Solver != live.BestSolver {
			t.Errorf("filter leaked solver %s", e.Solver)
		}
	}
	if len(filtered) == 0 {
		t.Error("Expected entries for the best solver")
	}
}

func TestServer_GetStoredRun(t *testing.T) {
	s, ts := newTestServer(t)

	job := createRun(t, ts, testBenchmark)
	waitForJob(t, s, job.ID)

	// A fresh server on the same store serves the persisted record.
	fresh := NewServer(":0", s.store)
	ts2 := httptest.NewServer(fresh.Handler())
	defer ts2.Close()

	var record store.RunRecord
	if code := getJSON(t, ts2.URL+"/api/v1/runs/"+job.ID, &record); code != http.StatusOK {
		t.Fatalf("GET stored run returned %d", code)
	}
	if record.RunID != job.ID || record.Benchmark.Name != "server-test" {
		t.Errorf("unexpected record: %s %s", record.RunID, record.Benchmark.Name)
	}
}

func TestServer_CreateRun_InvalidBody(t *testing.T) {
	_, ts := newTestServer(t)

	for _, body := range []string{"lambda: [", "lambda: -1", "workers: 0"} {
		resp, err := http.Post(ts.URL+"/api/v1/runs", "application/yaml", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestServer_NotFound(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/api/v1/runs/missing", "/api/v1/runs/missing/trace", "/api/v1/runs/missing/stream"} {
		if code := getJSON(t, ts.URL+path, nil); code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/runs/missing", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("DELETE missing: expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_CancelFinishedRun(t *testing.T) {
	s, ts := newTestServer(t)
	job := createRun(t, ts, testBenchmark)
	waitForJob(t, s, job.ID)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/runs/"+job.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
}

func TestServer_RunStream_FinishedRun(t *testing.T) {
	s, ts := newTestServer(t)
	job := createRun(t, ts, testBenchmark)
	waitForJob(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/api/v1/runs/" + job.ID + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	// The stream of a finished run carries one event and then closes.
	var events []ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].State != StateCompleted || events[0].Done != 4 || events[0].Total != 4 {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestServer_Metrics(t *testing.T) {
	s, ts := newTestServer(t)
	job := createRun(t, ts, testBenchmark)
	waitForJob(t, s, job.ID)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{
		"logregbench_configs_total",
		"logregbench_runs_total",
		"logregbench_run_duration_seconds",
		"logregbench_trace_points_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz returned %d %v", code, body)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch1 := eb.Subscribe("job-1")
	ch2 := eb.Subscribe("job-1")
	other := eb.Subscribe("job-2")

	eb.Broadcast(ProgressEvent{JobID: "job-1", State: StateRunning, Done: 1})

	for i, ch := range []chan ProgressEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Done != 1 {
				t.Errorf("client %d: Done = %d", i, ev.Done)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %d: no event", i)
		}
	}
	select {
	case ev := <-other:
		t.Errorf("job-2 client received %+v", ev)
	default:
	}

	// Late subscribers get the last event replayed.
	late := eb.Subscribe("job-1")
	if ev := <-late; ev.Done != 1 {
		t.Errorf("replayed Done = %d", ev.Done)
	}

	eb.Unsubscribe("job-1", ch1)
	if _, ok := <-ch1; ok {
		t.Error("unsubscribed channel should be closed")
	}

	eb.CleanupJob("job-1")
	if _, ok := <-ch2; ok {
		t.Error("cleanup should close remaining channels")
	}
	// Unsubscribing after cleanup must not panic on a closed channel.
	eb.Unsubscribe("job-1", ch2)
}

func TestServer_Devices(t *testing.T) {
	_, ts := newTestServer(t)
	var infos []device.Info
	if code := getJSON(t, ts.URL+"/api/v1/devices", &infos); code != http.StatusOK {
		t.Fatalf("devices returned %d", code)
	}
	if len(infos) != 2 || infos[0].Device != device.CPU {
		t.Errorf("unexpected inventory: %+v", infos)
	}
}
