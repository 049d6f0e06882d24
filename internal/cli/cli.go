// Package cli holds the command entry points that glue the cobra layer to
// the subtitle library: building hooks and progress output, running the
// library, and rendering the final summary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/onyxdevs/subzilla-sub000/internal/cli/hooks"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

// RunConvert converts a single file. An empty output path lets the library
// pick the destination from the overwrite/suffix strategy.
func RunConvert(ctx context.Context, input, output string, opts subtitle.ConversionOptions, logger *slog.Logger) error {
	converter := subtitle.NewFileConverter(logger.Handler(), nil)
	result, err := converter.Process(ctx, input, output, opts)
	if err != nil {
		return err
	}
	logger.Info("Conversion complete",
		slog.String("input", input),
		slog.String("output", result.OutputPath))
	if result.BackupPath != "" {
		logger.Info("Backup created", slog.String("path", result.BackupPath))
	}
	fmt.Fprintf(os.Stdout, "Converted %s -> %s\n", input, result.OutputPath)
	return nil
}

// RunBatch runs a batch conversion and prints a text or JSON summary to
// stdout. A non-zero failed count is reported as an error so the command
// exits non-zero even when the run itself was not aborted.
func RunBatch(ctx context.Context, opts subtitle.BatchOptions, logger *slog.Logger, verbose, jsonOut bool) error {
	var bar hooks.ProgressBar
	if !verbose && !jsonOut && term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
	}
	opts.EventHooks = hooks.NewBatchHooks(logger, verbose, bar)

	orchestrator, err := subtitle.NewBatchOrchestrator(opts)
	if err != nil {
		return err
	}
	stats, runErr := orchestrator.Run(ctx)

	if jsonOut {
		if err := printJSONSummary(stats); err != nil {
			return err
		}
	} else {
		printTextSummary(stats)
	}
	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Total)
	}
	return nil
}

func printJSONSummary(stats subtitle.BatchStats) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

func printTextSummary(stats subtitle.BatchStats) {
	fmt.Fprintf(os.Stdout, "Batch complete: %d total, %d converted, %d failed, %d skipped in %.2fs\n",
		stats.Total, stats.Successful, stats.Failed, stats.Skipped, stats.TimeTaken)
	if stats.DirectoriesProcessed > 1 {
		dirs := make([]string, 0, len(stats.Directories))
		for dir := range stats.Directories {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		for _, dir := range dirs {
			d := stats.Directories[dir]
			fmt.Fprintf(os.Stdout, "  %s: %d/%d converted\n", dir, d.Successful, d.Total)
		}
	}
	for _, failure := range stats.Failures {
		fmt.Fprintf(os.Stdout, "  FAILED %s: %s\n", failure.File, failure.Error)
	}
}
