// Package hooks bridges subtitle library events to the CLI's output layer:
// a progress bar on a TTY, slog everywhere else.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

// ProgressBar is the slice of schollz/progressbar the hooks need; decoupled
// so tests can substitute a recorder. *progressbar.ProgressBar satisfies it.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Close() error
}

// NoOpProgressBar is the null ProgressBar.
type NoOpProgressBar struct{}

func (NoOpProgressBar) Add(int) error   { return nil }
func (NoOpProgressBar) Describe(string) {}
func (NoOpProgressBar) Close() error    { return nil }

// BatchHooks implements subtitle.Hooks for CLI batch runs.
type BatchHooks struct {
	logger  *slog.Logger
	verbose bool
	bar     ProgressBar
	hasBar  bool
	mu      sync.Mutex // progress bar writes come from concurrent workers
}

// NewBatchHooks builds hooks over the given progress bar; pass nil for no
// bar (verbose or non-TTY runs).
func NewBatchHooks(logger *slog.Logger, verbose bool, bar ProgressBar) subtitle.Hooks {
	hasBar := bar != nil
	if !hasBar {
		bar = NoOpProgressBar{}
	}
	return &BatchHooks{logger: logger, verbose: verbose, bar: bar, hasBar: hasBar}
}

func (h *BatchHooks) OnFileDiscovered(path string) error {
	if h.verbose {
		h.logger.Debug("File discovered", slog.String("path", path))
	}
	return nil
}

func (h *BatchHooks) OnFileStatusUpdate(path string, status subtitle.Status, message string, duration time.Duration) error {
	if h.verbose {
		level := slog.LevelInfo
		if status == subtitle.StatusFailed {
			level = slog.LevelError
		}
		attrs := []any{
			slog.String("path", path),
			slog.String("status", string(status)),
			slog.Duration("duration", duration),
		}
		if message != "" {
			attrs = append(attrs, slog.String("message", message))
		}
		h.logger.Log(context.Background(), level, "File settled", attrs...)
		return nil
	}

	h.mu.Lock()
	_ = h.bar.Add(1)
	h.mu.Unlock()
	if status == subtitle.StatusFailed {
		h.logger.Error("File conversion failed", slog.String("path", path), slog.String("error", message))
	}
	return nil
}

func (h *BatchHooks) OnRunComplete(stats subtitle.BatchStats) error {
	h.mu.Lock()
	_ = h.bar.Close()
	h.mu.Unlock()
	if h.hasBar && !h.verbose {
		// Keep the shell prompt off the progress bar line; without a bar
		// there is no line to finish.
		fmt.Fprintln(os.Stderr)
	}
	return nil
}
