package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/logregbench/internal/adapter"
	"github.com/cwbudde/logregbench/internal/config"
	"github.com/cwbudde/logregbench/internal/device"
)

var (
	configsBenchPath string
	configsRunnable  bool
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "List the configurations of the option grid",
	Long: `Prints every configuration of the option grid with the reason it would
be skipped on this machine, if any.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bench := config.Default()
		if configsBenchPath != "" {
			b, err := config.Load(configsBenchPath)
			if err != nil {
				return err
			}
			bench = b
		}
		listConfigs(cmd.OutOrStdout(), bench, configsRunnable)
		return nil
	},
}

func init() {
	configsCmd.Flags().StringVarP(&configsBenchPath, "config", "c", "", "Benchmark YAML file")
	configsCmd.Flags().BoolVar(&configsRunnable, "runnable", false, "Only show configurations that would run")
	rootCmd.AddCommand(configsCmd)
}

func listConfigs(out io.Writer, bench *config.Benchmark, runnableOnly bool) {
	configs := bench.Parameters.WithDefaults().Configs()
	opts := bench.AdapterOptions()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONFIGURATION\tSKIP")

	runnable := 0
	for _, cfg := range configs {
		a := adapter.New(cfg, opts...)
		skip, reason := a.Skip(nil, nil, bench.Lambda)
		if !skip {
			runnable++
		} else if runnableOnly {
			continue
		}
		if !skip {
			reason = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", a.Name(), reason)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d configurations, %d runnable\n", len(configs), runnable)
	printDevices(out)
}

func printDevices(out io.Writer) {
	fmt.Fprintln(out, "\nDevices:")
	for _, info := range device.Inventory() {
		line := fmt.Sprintf("  %-12s available=%t count=%d", info.Device, info.Available, info.Count)
		if len(info.Features) > 0 {
			line += " features=" + strings.Join(info.Features, ",")
		}
		if info.Detail != "" {
			line += " (" + info.Detail + ")"
		}
		fmt.Fprintln(out, line)
	}
}
