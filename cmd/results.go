package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/logregbench/internal/store"
)

var (
	resultsDataDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
	showTrace      string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage stored benchmark runs",
}

var listResultsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(resultsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return listResults(cmd.OutOrStdout(), st)
	},
}

var showResultCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the summary of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(resultsDataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return showResult(cmd.OutOrStdout(), st, args[0], showTrace)
	},
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Deletes stored runs by retention policy: keep only the newest N runs,
delete runs older than N days, or both.`,
	RunE: runCleanResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(listResultsCmd, showResultCmd, cleanResultsCmd)

	resultsCmd.PersistentFlags().StringVar(&resultsDataDir, "data-dir", "./data", "Base directory of the run store")

	showResultCmd.Flags().StringVar(&showTrace, "trace", "", "Print the convergence trace of this configuration")

	cleanResultsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanResultsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanResultsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listResults(out io.Writer, st *store.FSStore) error {
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tNAME\tDATASET\tRAN\tSKIPPED\tFAILED\tBEST OBJECTIVE\tSIZE")
	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(store.RunDir(st.BaseDir(), info.RunID)); err == nil {
			sizeStr = formatBytes(size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.8f\t%s\n",
			shortID(info.RunID),
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			info.Name,
			info.Dataset,
			info.Ran, info.Skipped, info.Failed,
			info.BestObjective,
			sizeStr,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func showResult(out io.Writer, st *store.FSStore, runID, solver string) error {
	record, err := st.LoadRun(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s), created %s\n", record.RunID, record.Benchmark.Name,
		record.CreatedAt.Format(time.RFC3339))
	printReport(out, record.Report)

	if solver == "" {
		return nil
	}

	tr, err := store.NewTraceReader(st.BaseDir(), runID)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		return err
	}
	curve := store.GroupBySolver(entries)[solver]
	if len(curve) == 0 {
		return fmt.Errorf("no trace for %s", solver)
	}

	fmt.Fprintf(out, "\nTrace of %s\n", solver)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N_ITER\tOBJECTIVE\tSUBOPTIMALITY\tTIME")
	for _, e := range curve {
		fmt.Fprintf(w, "%d\t%.8f\t%.3e\t%s\n", e.NIter, e.Objective, e.Suboptimality, e.Elapsed)
	}
	return w.Flush()
}

func runCleanResults(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	st, err := store.NewFSStore(resultsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays)
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n", shortID(info.RunID), info.Name,
			info.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if !forceClean && !confirm(cmd.InOrStdin(), out, "\nProceed with deletion? [y/N]: ") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := st.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "run_id", info.RunID)
		deleted++
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

// selectRunsForDeletion returns the runs older than olderThanDays plus every
// run beyond the keepLast newest. Zero disables a criterion.
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int) []store.RunInfo {
	marked := make(map[string]bool)
	var toDelete []store.RunInfo
	mark := func(info store.RunInfo) {
		if !marked[info.RunID] {
			marked[info.RunID] = true
			toDelete = append(toDelete, info)
		}
	}

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.CreatedAt.Before(cutoff) {
				mark(info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		for _, info := range sorted[keepLast:] {
			mark(info)
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
