package subtitle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// BatchOrchestrator discovers subtitle files by glob pattern, schedules
// bounded concurrent conversions with retry, and aggregates statistics.
//
// A run moves through discovery, directory grouping, chunked processing and
// finalization. The stop flag set by fail-fast is advisory: in-flight work in
// the current chunk finishes, later chunks never start, and collected
// statistics stay consistent.
type BatchOrchestrator struct {
	opts      BatchOptions
	logger    *slog.Logger
	hooks     Hooks
	process   ProcessFunc
	stats     *statsAccumulator
	stop      atomic.Bool
	fatalOnce sync.Once
	fatalErr  error

	// patternBase is the literal (non-wildcard) prefix of the pattern;
	// depth limits and structure-preserving output paths are both relative
	// to it.
	patternBase string
}

// NewBatchOrchestrator validates opts and prepares a single-use
// orchestrator. The default ProcessFunc wraps FileConverter.Process.
func NewBatchOrchestrator(opts BatchOptions) (*BatchOrchestrator, error) {
	if opts.Pattern == "" {
		return nil, fmt.Errorf("%w: batch pattern must not be empty", ErrProcessing)
	}
	loggerHandler := opts.Logger
	if loggerHandler == nil {
		loggerHandler = slog.DiscardHandler
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = NoOpHooks{}
	}
	process := opts.ProcessFunc
	if process == nil {
		converter := NewFileConverter(loggerHandler, nil)
		process = converter.Process
	}
	return &BatchOrchestrator{
		opts:    opts,
		logger:  slog.New(loggerHandler).With(slog.String("component", "batch")),
		hooks:   hooks,
		process: process,
		stats:   newStatsAccumulator(),
	}, nil
}

// Run executes the batch. It returns the final statistics snapshot along
// with the first fatal error when fail-fast aborted the run, or a discovery
// or output-directory failure; per-file failures are recorded in the stats,
// not returned.
func (o *BatchOrchestrator) Run(ctx context.Context) (BatchStats, error) {
	start := time.Now()
	o.logger.Info("Starting batch run",
		slog.String("pattern", o.opts.Pattern),
		slog.Bool("parallel", o.opts.Parallel))

	files, err := o.discover()
	if err != nil {
		return o.stats.snapshot(start, time.Now()), err
	}
	if len(files) == 0 {
		// Nothing matched: no output directory, no scheduler, zeroed stats.
		o.logger.Info("No files matched pattern", slog.String("pattern", o.opts.Pattern))
		stats := o.stats.snapshot(start, time.Now())
		o.emitRunComplete(stats)
		return stats, nil
	}

	groups, order := o.groupByDirectory(files)
	o.logger.Info("Discovery complete",
		slog.Int("files", len(files)),
		slog.Int("directories", len(order)))

	if o.opts.OutputDir != "" {
		if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
			return o.stats.snapshot(start, time.Now()),
				fmt.Errorf("%w: create output directory %s: %w", ErrIO, o.opts.OutputDir, err)
		}
	}

	dirWidth := 1
	if o.opts.Parallel {
		dirWidth = o.opts.ChunkSize
		if dirWidth <= 0 {
			dirWidth = DefaultDirectoryChunkSize
		}
	}
	o.runChunked(ctx, len(order), dirWidth, func(i int) {
		dir := order[i]
		o.processDirectory(ctx, dir, groups[dir])
	})

	stats := o.stats.snapshot(start, time.Now())
	o.logger.Info("Batch run finished",
		slog.Int("total", stats.Total),
		slog.Int("successful", stats.Successful),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
		slog.Float64("timeTaken", stats.TimeTaken))
	o.emitRunComplete(stats)

	if o.fatalErr != nil {
		return stats, o.fatalErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stats, fmt.Errorf("%w: %w", ErrProcessing, ctxErr)
	}
	return stats, nil
}

// discover expands the glob pattern and applies the depth and directory-name
// filters. Directories are excluded from the result; symlinked targets are
// followed when classifying matches.
func (o *BatchOrchestrator) discover() ([]string, error) {
	pattern := filepath.ToSlash(o.opts.Pattern)
	if o.opts.Recursive && !strings.Contains(pattern, "**") {
		base, rest := doublestar.SplitPattern(pattern)
		pattern = base + "/**/" + rest
	}
	o.patternBase, _ = doublestar.SplitPattern(pattern)

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %w", ErrIO, o.opts.Pattern, err)
	}

	var files []string
	for _, match := range matches {
		info, statErr := os.Stat(match) // follows symlinks
		if statErr != nil || info.IsDir() {
			continue
		}
		if !o.withinDepth(match) {
			continue
		}
		if !o.directoryAllowed(filepath.Dir(match)) {
			continue
		}
		files = append(files, match)
		if hookErr := o.hooks.OnFileDiscovered(match); hookErr != nil {
			o.logger.Warn("OnFileDiscovered hook failed",
				slog.String("path", match), slog.String("error", hookErr.Error()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// withinDepth checks the file's segment depth below the pattern's literal
// base directory; the filename itself does not count.
func (o *BatchOrchestrator) withinDepth(path string) bool {
	if o.opts.MaxDepth < 0 {
		return true
	}
	rel, err := filepath.Rel(o.patternBase, filepath.Dir(path))
	if err != nil {
		return true
	}
	depth := 0
	if rel != "." {
		depth = strings.Count(filepath.ToSlash(rel), "/") + 1
	}
	return depth <= o.opts.MaxDepth
}

// directoryAllowed applies the include whitelist (when non-empty) and the
// exclude blacklist as independent substring tests on the containing
// directory path.
func (o *BatchOrchestrator) directoryAllowed(dir string) bool {
	dir = filepath.ToSlash(dir)
	if len(o.opts.IncludeDirectories) > 0 {
		included := false
		for _, substr := range o.opts.IncludeDirectories {
			if strings.Contains(dir, substr) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, substr := range o.opts.ExcludeDirectories {
		if strings.Contains(dir, substr) {
			return false
		}
	}
	return true
}

// groupByDirectory partitions files by immediate containing directory and
// registers a zeroed stat bucket per group. The returned order is sorted for
// deterministic scheduling.
func (o *BatchOrchestrator) groupByDirectory(files []string) (map[string][]string, []string) {
	groups := make(map[string][]string)
	for _, file := range files {
		dir := filepath.Dir(file)
		groups[dir] = append(groups[dir], file)
	}
	order := make([]string, 0, len(groups))
	for dir, group := range groups {
		order = append(order, dir)
		o.stats.initDirectory(dir, len(group))
	}
	sort.Strings(order)
	return groups, order
}

// processDirectory converts one directory group's files, sequentially or in
// bounded chunks.
func (o *BatchOrchestrator) processDirectory(ctx context.Context, dir string, files []string) {
	fileWidth := 1
	if o.opts.Parallel {
		fileWidth = o.opts.ChunkSize
		if fileWidth <= 0 {
			fileWidth = DefaultFileChunkSize
		}
	}
	o.runChunked(ctx, len(files), fileWidth, func(i int) {
		o.processFile(ctx, FileTask{Path: files[i], Dir: dir})
	})
	o.stats.markDirectoryProcessed(dir)
}

// runChunked executes fn(0..n-1) in chunks of the given width. Chunk N+1
// never starts before all of chunk N has settled, and no new chunk starts
// once the stop flag is set or the context is cancelled.
func (o *BatchOrchestrator) runChunked(ctx context.Context, n, width int, fn func(int)) {
	if width < 1 {
		width = 1
	}
	for begin := 0; begin < n; begin += width {
		if o.stop.Load() || ctx.Err() != nil {
			return
		}
		end := begin + width
		if end > n {
			end = n
		}
		if width == 1 {
			fn(begin)
			continue
		}
		var wg sync.WaitGroup
		for i := begin; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fn(i)
			}(i)
		}
		wg.Wait()
	}
}

// processFile settles one file: skip, or convert with up to retryCount+1
// attempts. Counters are bumped exactly once, on settlement.
func (o *BatchOrchestrator) processFile(ctx context.Context, task FileTask) {
	if o.stop.Load() {
		return
	}
	start := time.Now()

	outputPath := o.outputPathFor(task.Path)
	if o.opts.SkipExisting && outputPath != "" {
		if _, err := os.Stat(outputPath); err == nil {
			o.stats.addSkipped(task.Dir)
			o.emitStatus(task.Path, StatusSkipped, "output already exists", time.Since(start))
			return
		}
	}

	var lastErr error
	for task.Attempts = 0; task.Attempts <= o.opts.RetryCount; task.Attempts++ {
		if task.Attempts > 0 {
			if !o.sleepBetweenAttempts(ctx) {
				lastErr = ctx.Err()
				break
			}
			o.logger.Debug("Retrying file",
				slog.String("path", task.Path),
				slog.Int("attempt", task.Attempts+1))
		}
		_, err := o.process(ctx, task.Path, outputPath, o.opts.Conversion)
		if err == nil {
			o.stats.addSuccess(task.Dir)
			o.emitStatus(task.Path, StatusSuccess, "", time.Since(start))
			return
		}
		lastErr = err
	}

	message := "conversion failed"
	if lastErr != nil {
		message = lastErr.Error()
	}
	o.stats.addFailure(task.Dir, task.Path, message)
	o.emitStatus(task.Path, StatusFailed, message, time.Since(start))
	if o.opts.FailFast {
		o.stop.Store(true)
		o.fatalOnce.Do(func() {
			o.fatalErr = fmt.Errorf("%w: fail-fast: %s: %s", ErrProcessing, task.Path, message)
		})
	}
}

// outputPathFor computes where a discovered file's output lands: the suffix
// strategy next to the input, or re-rooted under the output directory, with
// the base-relative path preserved or flattened.
func (o *BatchOrchestrator) outputPathFor(input string) string {
	if o.opts.Conversion.OverwriteInput {
		return input
	}
	suffixed := NewSuffixStrategy("").OutputPath(input)
	if o.opts.OutputDir == "" {
		return suffixed
	}
	name := filepath.Base(suffixed)
	if o.opts.PreserveStructure {
		if rel, err := filepath.Rel(o.patternBase, filepath.Dir(input)); err == nil && rel != "." {
			return filepath.Join(o.opts.OutputDir, rel, name)
		}
	}
	return filepath.Join(o.opts.OutputDir, name)
}

// sleepBetweenAttempts pauses for the configured retry delay; it returns
// false if the context was cancelled while waiting.
func (o *BatchOrchestrator) sleepBetweenAttempts(ctx context.Context) bool {
	delay := time.Duration(o.opts.RetryDelay) * time.Millisecond
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *BatchOrchestrator) emitStatus(path string, status Status, message string, duration time.Duration) {
	if err := o.hooks.OnFileStatusUpdate(path, status, message, duration); err != nil {
		o.logger.Warn("OnFileStatusUpdate hook failed",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (o *BatchOrchestrator) emitRunComplete(stats BatchStats) {
	if err := o.hooks.OnRunComplete(stats); err != nil {
		o.logger.Warn("OnRunComplete hook failed", slog.String("error", err.Error()))
	}
}
