package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/logregbench/internal/config"
	"github.com/cwbudde/logregbench/internal/harness"
	"github.com/cwbudde/logregbench/internal/store"
)

var (
	benchPath  string
	dataPath   string
	outDir     string
	lambda     float64
	maxIter    int
	workers    int
	nSamples   int
	nFeatures  int
	dataSeed   uint64
	noPatience bool
	noStore    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark",
	Long: `Runs every configuration of the option grid against one dataset and
prints a summary. The benchmark comes from --config or from the defaults;
flags override individual fields. Unless --no-store is set the run record
and the convergence traces are written under --out.`,
	RunE: runBenchmarkCmd,
}

func init() {
	runCmd.Flags().StringVarP(&benchPath, "config", "c", "", "Benchmark YAML file")
	runCmd.Flags().StringVar(&dataPath, "data", "", "CSV dataset (label in the last column); overrides the simulated dataset")
	runCmd.Flags().StringVar(&outDir, "out", "", "Output directory for run records")
	runCmd.Flags().Float64Var(&lambda, "lambda", 1, "Regularization strength")
	runCmd.Flags().IntVar(&maxIter, "max-iter", 1000, "Largest iteration count of the schedule")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Configurations run in parallel (0 = number of CPUs)")
	runCmd.Flags().IntVar(&nSamples, "n-samples", 200, "Simulated dataset: number of samples")
	runCmd.Flags().IntVar(&nFeatures, "n-features", 50, "Simulated dataset: number of features")
	runCmd.Flags().Uint64Var(&dataSeed, "seed", 42, "Simulated dataset: random seed")
	runCmd.Flags().BoolVar(&noPatience, "no-early-stop", false, "Evaluate the full schedule for every configuration")
	runCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not write results to disk")

	rootCmd.AddCommand(runCmd)
}

// loadBenchmark reads --config (or the defaults) and applies explicitly set flags.
func loadBenchmark(cmd *cobra.Command) (*config.Benchmark, error) {
	bench := config.Default()
	if benchPath != "" {
		b, err := config.Load(benchPath)
		if err != nil {
			return nil, err
		}
		bench = b
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		bench.Dataset.Path = dataPath
	}
	if flags.Changed("out") {
		bench.OutputDir = outDir
	}
	if flags.Changed("lambda") {
		bench.Lambda = lambda
	}
	if flags.Changed("max-iter") {
		bench.MaxIter = maxIter
	}
	if flags.Changed("workers") && workers > 0 {
		bench.Workers = workers
	}
	if bench.Dataset.Simulated != nil {
		sim := *bench.Dataset.Simulated
		if flags.Changed("n-samples") {
			sim.NSamples = nSamples
		}
		if flags.Changed("n-features") {
			sim.NFeatures = nFeatures
		}
		if flags.Changed("seed") {
			sim.Seed = dataSeed
		}
		bench.Dataset.Simulated = &sim
	}
	if noPatience {
		bench.Convergence = harness.DisabledConvergenceConfig()
	}

	if err := bench.Validate(); err != nil {
		return nil, err
	}
	return bench, nil
}

func runBenchmarkCmd(cmd *cobra.Command, args []string) error {
	bench, err := loadBenchmark(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := bench.OutputDir
	if noStore {
		dir = ""
	}
	runID, report, err := executeBenchmark(ctx, bench, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	if runID != "" {
		fmt.Fprintf(out, "\nSaved run %s to %s\n", runID, dir)
	}
	return nil
}

// traceObserver streams convergence points into a trace file.
type traceObserver struct {
	trace *store.TraceWriter
}

func (o *traceObserver) OnPoint(name string, pt harness.TracePoint) {
	slog.Debug("Trace point", "solver", name, "n_iter", pt.NIter, "objective", pt.Objective)
	if o.trace == nil {
		return
	}
	if err := o.trace.Write(store.NewTraceEntry(name, pt)); err != nil {
		slog.Warn("Failed to write trace entry", "error", err)
	}
}

func (o *traceObserver) OnResult(res harness.SolverResult) {
	switch {
	case res.Skipped:
		slog.Debug("Configuration skipped", "solver", res.Name, "reason", res.Reason)
	case res.Error != "":
		slog.Warn("Configuration failed", "solver", res.Name, "error", res.Error)
	default:
		slog.Info("Configuration finished", "solver", res.Name, "objective", res.FinalObjective, "points", len(res.Trace))
	}
}

// executeBenchmark runs the benchmark and, when dataDir is non-empty,
// persists the record and trace under a fresh run ID.
func executeBenchmark(ctx context.Context, bench *config.Benchmark, dataDir string) (string, *harness.Report, error) {
	data, err := bench.LoadDataset()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	n, p := data.Dims()
	slog.Info("Loaded dataset", "name", data.Name, "samples", n, "features", p)

	observer := &traceObserver{}
	var st *store.FSStore
	runID := ""
	if dataDir != "" {
		st, err = store.NewFSStore(dataDir)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open store: %w", err)
		}
		runID = uuid.New().String()
		tw, err := store.NewTraceWriter(dataDir, runID, false)
		if err != nil {
			return "", nil, err
		}
		defer tw.Close()
		observer.trace = tw
	}

	report, err := harness.NewRunner(data, bench.HarnessOptions(), observer).Run(ctx)
	if err != nil {
		return "", nil, err
	}

	if st != nil {
		if err := observer.trace.Flush(); err != nil {
			return "", nil, err
		}
		if err := st.SaveRun(runID, store.NewRunRecord(runID, *bench, report)); err != nil {
			return "", nil, fmt.Errorf("failed to save run: %w", err)
		}
	}
	return runID, report, nil
}

// printReport writes one row per configuration, ran configurations first
// ordered by final objective.
func printReport(out io.Writer, report *harness.Report) {
	ran, skipped, failed := report.Counts()
	fmt.Fprintf(out, "Dataset %s, lambda %g, reference objective %.8f\n", report.Dataset, report.Lambda, report.Reference)
	fmt.Fprintf(out, "%d ran, %d skipped, %d failed in %s\n\n", ran, skipped, failed, report.Elapsed.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOLVER\tSTATUS\tPOINTS\tOBJECTIVE\tSUBOPTIMALITY\tTIME")

	for _, res := range sortedResults(report.Results) {
		switch {
		case res.Skipped:
			fmt.Fprintf(w, "%s\tskipped\t-\t-\t-\t%s\n", res.Name, res.Reason)
		case res.Error != "":
			fmt.Fprintf(w, "%s\tfailed\t%d\t-\t-\t%s\n", res.Name, len(res.Trace), res.Error)
		default:
			status := "ran"
			if res.Converged {
				status = "converged"
			}
			var total time.Duration
			for _, pt := range res.Trace {
				total += pt.Elapsed
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.8f\t%.3e\t%s\n",
				res.Name, status, len(res.Trace), res.FinalObjective,
				math.Max(res.FinalObjective-report.Reference, 0), total.Round(time.Microsecond))
		}
	}
	w.Flush()
}

func sortedResults(results []harness.SolverResult) []harness.SolverResult {
	rank := func(r harness.SolverResult) int {
		switch {
		case r.Skipped:
			return 2
		case r.Error != "":
			return 1
		}
		return 0
	}

	sorted := make([]harness.SolverResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return rank(a) == 0 && a.FinalObjective < b.FinalObjective
	})
	return sorted
}
