package subtitle

import "time"

// Status is the settlement state of a single file within a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// LineEnding selects the line terminator written to output files.
type LineEnding string

const (
	// LineEndingLF writes "\n".
	LineEndingLF LineEnding = "lf"
	// LineEndingCRLF writes "\r\n".
	LineEndingCRLF LineEnding = "crlf"
	// LineEndingAuto writes the platform default.
	LineEndingAuto LineEnding = "auto"
)

// BackupPolicy controls how backup paths are chosen when a backup of the
// input is taken before mutation.
type BackupPolicy string

const (
	// BackupOverwrite writes to a single <input>.bak, replacing any prior
	// backup.
	BackupOverwrite BackupPolicy = "overwrite"
	// BackupNumbered probes <input>.bak, <input>.bak.1, <input>.bak.2, ...
	// and writes to the first free path, so prior backups survive.
	BackupNumbered BackupPolicy = "numbered"
)

// Result describes the outcome of one FileConverter invocation. It is
// immutable after return.
type Result struct {
	// OutputPath is the newly created or overwritten output file.
	OutputPath string
	// BackupPath is non-empty only if a backup was created.
	BackupPath string
}

// FileTask is the transient per-file descriptor the orchestrator creates for
// each discovered file; it is discarded once the conversion settles.
type FileTask struct {
	Path     string // absolute path
	Dir      string // owning directory
	Attempts int
}

// Hooks receives progress events during a batch run. Implementations must be
// safe for concurrent use; the orchestrator calls OnFileStatusUpdate from
// multiple workers.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(stats BatchStats) error
}

// NoOpHooks is the default do-nothing Hooks implementation.
type NoOpHooks struct{}

func (NoOpHooks) OnFileDiscovered(string) error { return nil }

func (NoOpHooks) OnFileStatusUpdate(string, Status, string, time.Duration) error { return nil }

func (NoOpHooks) OnRunComplete(BatchStats) error { return nil }
