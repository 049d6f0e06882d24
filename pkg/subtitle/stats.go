package subtitle

import (
	"sync"
	"time"
)

// DirectoryStats is the per-directory breakdown inside BatchStats.
type DirectoryStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// FailedFile records one exhausted-retry failure.
type FailedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// BatchStats is the aggregate result of one batch run. Counters satisfy
// successful+failed+skipped <= total throughout the run, with equality on
// completion unless fail-fast aborted it.
type BatchStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`

	Failures []FailedFile `json:"failures,omitempty"`

	DirectoriesProcessed int                       `json:"directoriesProcessed"`
	Directories          map[string]DirectoryStats `json:"directories"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	// TimeTaken is wall-clock seconds between StartTime and EndTime.
	TimeTaken float64 `json:"timeTaken"`
	// AverageTimePerFile is TimeTaken / (successful + failed), zero when
	// that denominator is zero.
	AverageTimePerFile float64 `json:"averageTimePerFile"`
}

// statsAccumulator collects counters during a run. Workers in concurrent
// chunks settle files from multiple goroutines, so every read-modify-write
// is mutex-guarded; directory buckets are keyed by path.
type statsAccumulator struct {
	mu            sync.Mutex
	total         int
	successful    int
	failed        int
	skipped       int
	failures      []FailedFile
	dirsProcessed int
	directories   map[string]*DirectoryStats
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{directories: make(map[string]*DirectoryStats)}
}

// initDirectory registers a zeroed bucket for dir and adds its file count to
// the run total. Called once per directory group before processing starts.
func (a *statsAccumulator) initDirectory(dir string, fileCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.directories[dir] = &DirectoryStats{Total: fileCount}
	a.total += fileCount
}

func (a *statsAccumulator) addSuccess(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successful++
	if d := a.directories[dir]; d != nil {
		d.Successful++
	}
}

func (a *statsAccumulator) addFailure(dir, file, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	a.failures = append(a.failures, FailedFile{File: file, Error: message})
	if d := a.directories[dir]; d != nil {
		d.Failed++
	}
}

func (a *statsAccumulator) addSkipped(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped++
	if d := a.directories[dir]; d != nil {
		d.Skipped++
	}
}

// markDirectoryProcessed counts dir as processed only when every one of its
// files has settled; a group cut short by fail-fast or cancellation does not
// count.
func (a *statsAccumulator) markDirectoryProcessed(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.directories[dir]
	if d != nil && d.Successful+d.Failed+d.Skipped == d.Total {
		a.dirsProcessed++
	}
}

// snapshot copies the accumulated counters into an immutable BatchStats and
// derives the timing fields.
func (a *statsAccumulator) snapshot(start, end time.Time) BatchStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	dirs := make(map[string]DirectoryStats, len(a.directories))
	for path, d := range a.directories {
		dirs[path] = *d
	}
	failures := make([]FailedFile, len(a.failures))
	copy(failures, a.failures)

	taken := end.Sub(start).Seconds()
	avg := 0.0
	if settled := a.successful + a.failed; settled > 0 {
		avg = taken / float64(settled)
	}
	return BatchStats{
		Total:                a.total,
		Successful:           a.successful,
		Failed:               a.failed,
		Skipped:              a.skipped,
		Failures:             failures,
		DirectoriesProcessed: a.dirsProcessed,
		Directories:          dirs,
		StartTime:            start,
		EndTime:              end,
		TimeTaken:            taken,
		AverageTimePerFile:   avg,
	}
}
