package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/logregbench/internal/server"
	"github.com/cwbudde/logregbench/internal/store"
)

var (
	serverURL   string
	watchStatus bool
	cancelRun   bool
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server status or a specific run",
	Long: `Queries the server for run status information.
Without a run-id all runs known to the server are listed.
With a run-id the status of that run is shown; --watch follows its
progress until it finishes and --cancel stops it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Follow progress of the run")
	statusCmd.Flags().BoolVar(&cancelRun, "cancel", false, "Cancel the run")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	base := strings.TrimRight(serverURL, "/")

	if len(args) == 0 {
		return listJobs(out, base)
	}

	runID := args[0]
	switch {
	case cancelRun:
		return cancelJob(out, base, runID)
	case watchStatus:
		return watchJob(out, base, runID)
	}
	return getJobStatus(out, base, runID)
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found: %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func listJobs(out io.Writer, base string) error {
	var jobs []server.Job
	if err := getJSON(base+"/api/v1/runs", &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s):\n\n", len(jobs))
	for _, job := range jobs {
		printJob(out, job)
		fmt.Fprintln(out)
	}
	return nil
}

// getJobStatus prints a live job, or the stored record when the server only
// knows the run from its store.
func getJobStatus(out io.Writer, base, runID string) error {
	var raw json.RawMessage
	if err := getJSON(base+"/api/v1/runs/"+runID, &raw); err != nil {
		return err
	}

	var job server.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if job.ID == "" {
		var record store.RunRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if record.Report == nil {
			return fmt.Errorf("unexpected response for run %s", runID)
		}
		fmt.Fprintf(out, "Run: %s (%s), stored %s\n", record.RunID, record.Benchmark.Name,
			record.CreatedAt.Format(time.RFC3339))
		printReport(out, record.Report)
		return nil
	}

	printJob(out, job)
	if job.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", job.Error)
	}
	return nil
}

func printJob(out io.Writer, job server.Job) {
	fmt.Fprintf(out, "Run: %s (%s)\n", job.ID, job.Benchmark.Name)
	fmt.Fprintf(out, "  State: %s\n", job.State)
	fmt.Fprintf(out, "  Progress: %d/%d configurations (%d ran, %d skipped, %d failed)\n",
		job.Done, job.Total, job.Ran, job.Skipped, job.Failed)
	if job.BestSolver != "" {
		fmt.Fprintf(out, "  Best: %s = %.8f\n", job.BestSolver, job.BestObjective)
	}

	end := time.Now()
	if job.EndTime != nil {
		end = *job.EndTime
	}
	fmt.Fprintf(out, "  Elapsed: %s\n", end.Sub(job.StartTime).Round(time.Millisecond))
}

func cancelJob(out io.Writer, base, runID string) error {
	req, err := http.NewRequest(http.MethodDelete, base+"/api/v1/runs/"+runID, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel failed: %s", strings.TrimSpace(string(body)))
	}
	fmt.Fprintf(out, "Cancelling run %s\n", runID)
	return nil
}

// watchJob prints SSE progress until the run reaches a terminal state.
func watchJob(out io.Writer, base, runID string) error {
	resp, err := http.Get(base + "/api/v1/runs/" + runID + "/stream")
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev server.ProgressEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("bad event: %w", err)
		}

		if ev.Solver != "" {
			fmt.Fprintf(out, "[%d/%d] %s n_iter=%d objective=%.8f suboptimality=%.3e\n",
				ev.Done, ev.Total, ev.Solver, ev.NIter, ev.Objective, ev.Suboptimality)
		} else {
			fmt.Fprintf(out, "[%d/%d] %s\n", ev.Done, ev.Total, ev.State)
		}
		if ev.State.Terminal() {
			return nil
		}
	}
	return scanner.Err()
}
