// Command feedline inspects RecordIO data files and benchmarks
// preprocessing pipelines over them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/feedline-ml/feedline/pipeline"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "feedline",
		Short:         "Data loading and preprocessing pipelines for ML training",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newInspectCmd(), newBenchCmd(), newOperatorsCmd())
	return root
}

func newInspectCmd() *cobra.Command {
	var detection bool
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize the records of a RecordIO file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], detection, limit)
		},
	}
	cmd.Flags().BoolVar(&detection, "detection", false, "parse object annotations")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to print, 0 for all")
	return cmd
}

func newOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the registered pipeline operators",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range pipeline.Operators() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newBenchCmd() *cobra.Command {
	var (
		batchSize  int
		workers    int
		iterations int
		prefetch   int
	)
	cmd := &cobra.Command{
		Use:   "bench FILE",
		Short: "Benchmark a decode and augment pipeline over a RecordIO file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def := pipeline.Definition{
				BatchSize: batchSize,
				Workers:   workers,
				Prefetch:  prefetch,
				Ops: []pipeline.OpSpec{
					{Op: "record_reader", Args: map[string]any{"path": args[0]}},
					{Op: "make_contiguous"},
				},
			}
			return runBench(cmd, def, iterations)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "samples per iteration")
	cmd.Flags().IntVar(&workers, "workers", 0, "CPU workers, 0 for GOMAXPROCS")
	cmd.Flags().IntVar(&iterations, "iterations", 100, "iterations to run")
	cmd.Flags().IntVar(&prefetch, "prefetch", 2, "iterations to run ahead")
	return cmd
}

func runInspect(cmd *cobra.Command, path string, detection bool, limit int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	if detection {
		table.SetHeader([]string{"Record", "Image ID", "Objects", "Image Bytes"})
	} else {
		table.SetHeader([]string{"Record", "Labels", "Image Bytes"})
	}

	records, totalImage, err := collectRows(f, detection, limit, table)
	if err != nil {
		return err
	}
	table.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d records, %d image bytes total\n", records, totalImage)
	return nil
}

func runBench(cmd *cobra.Command, def pipeline.Definition, iterations int) error {
	p, err := pipeline.New(def)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	var samples, bytes int64
	p.Start(cmd.Context())
	for i := 0; i < iterations; i++ {
		out, err := p.Next(cmd.Context())
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i+1, err)
		}
		images := out.Output(0)
		samples += int64(images.NumSamples())
		bytes += int64(images.TotalBytes())
		out.Release()
	}
	elapsed := time.Since(start)

	stats := p.Stats()
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"iterations", strconv.Itoa(iterations)})
	table.Append([]string{"samples", strconv.FormatInt(samples, 10)})
	table.Append([]string{"elapsed", elapsed.Round(time.Millisecond).String()})
	table.Append([]string{"samples/s", fmt.Sprintf("%.1f", float64(samples)/elapsed.Seconds())})
	table.Append([]string{"MB/s", fmt.Sprintf("%.1f", float64(bytes)/elapsed.Seconds()/(1<<20))})
	table.Append([]string{"alloc pool hits", strconv.FormatUint(stats.Allocator.Hits, 10)})
	table.Append([]string{"alloc pool misses", strconv.FormatUint(stats.Allocator.Misses, 10)})
	table.Render()
	return nil
}
