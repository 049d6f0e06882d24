package subtitle

import (
	"context"
	"log/slog"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle/sanitize"
)

// Defaults applied when the corresponding option is zero.
const (
	// DefaultSuffix is the token the suffix output strategy inserts before
	// the final extension.
	DefaultSuffix = ".subzilla"
	// DefaultDirectoryChunkSize bounds how many directories are processed
	// concurrently when no explicit chunk size is given.
	DefaultDirectoryChunkSize = 3
	// DefaultFileChunkSize bounds how many files within one directory are
	// processed concurrently when no explicit chunk size is given.
	DefaultFileChunkSize = 5
	// DefaultEncoding is the fallback when statistical detection is
	// inconclusive.
	DefaultEncoding = "UTF-8"
)

// ConversionOptions configures a single-file conversion.
type ConversionOptions struct {
	// Strip selects the content categories removed from subtitle text.
	// Structural timing lines and sequence numbers are protected from all
	// categories; requesting timestamps or numbers never corrupts them.
	Strip sanitize.Options `mapstructure:"strip"`

	// Backup copies the input aside before any mutation.
	Backup bool `mapstructure:"backup"`
	// BackupPolicy selects overwrite vs numbered backup naming. Empty
	// means BackupOverwrite.
	BackupPolicy BackupPolicy `mapstructure:"backupPolicy"`

	// BOM prepends the UTF-8 byte-order mark to the output.
	BOM bool `mapstructure:"bom"`
	// LineEndings selects lf, crlf or the platform default (auto). Empty
	// means auto.
	LineEndings LineEnding `mapstructure:"lineEndings"`

	// OverwriteExisting permits writing over an existing output file.
	OverwriteExisting bool `mapstructure:"overwriteExisting"`
	// OverwriteInput converts the file in place; implies a mandatory
	// backup before mutation.
	OverwriteInput bool `mapstructure:"overwriteInput"`

	// DefaultEncoding overrides the fallback used when detection is
	// inconclusive. Empty means UTF-8.
	DefaultEncoding string `mapstructure:"defaultEncoding"`
}

// ProcessFunc is the unit of work the orchestrator retries per file. It
// exists as an injection seam for tests; the default wraps
// FileConverter.Process.
type ProcessFunc func(ctx context.Context, inputPath, outputPath string, opts ConversionOptions) (Result, error)

// BatchOptions configures a batch run over a glob pattern.
type BatchOptions struct {
	// Pattern is a shell-style glob; a ** segment matches recursively.
	Pattern string `mapstructure:"pattern"`

	// Conversion is applied to every discovered file.
	Conversion ConversionOptions `mapstructure:"common"`

	// Recursive injects a ** segment into patterns that lack one.
	Recursive bool `mapstructure:"recursive"`
	// Parallel processes directory groups and their files in bounded
	// concurrent chunks instead of sequentially.
	Parallel bool `mapstructure:"parallel"`
	// SkipExisting marks files whose computed output already exists as
	// skipped instead of converting them.
	SkipExisting bool `mapstructure:"skipExisting"`
	// PreserveStructure recreates each file's directory-relative path
	// under OutputDir instead of flattening.
	PreserveStructure bool `mapstructure:"preserveStructure"`

	// ChunkSize bounds concurrency width; 0 selects the defaults (3 for
	// directory groups, 5 for files within a directory).
	ChunkSize int `mapstructure:"chunkSize"`
	// MaxDepth drops files deeper than this many path segments below the
	// pattern's literal base directory. Negative means unlimited.
	MaxDepth int `mapstructure:"maxDepth"`

	// IncludeDirectories, when non-empty, whitelists files whose
	// containing directory path contains one of these substrings.
	IncludeDirectories []string `mapstructure:"includeDirectories"`
	// ExcludeDirectories blacklists files whose containing directory path
	// contains one of these substrings.
	ExcludeDirectories []string `mapstructure:"excludeDirectories"`

	// RetryCount is the number of additional attempts after the first
	// failure; retry count N yields at most N+1 attempts.
	RetryCount int `mapstructure:"retryCount"`
	// RetryDelay is the fixed pause between attempts, in milliseconds.
	RetryDelay int `mapstructure:"retryDelay"`

	// FailFast aborts the run after the first exhausted-retry failure.
	FailFast bool `mapstructure:"failFast"`

	// OutputDir redirects converted output under this directory; empty
	// writes alongside each input.
	OutputDir string `mapstructure:"outputDir"`

	// Logger is the slog backend; nil discards logs.
	Logger slog.Handler `mapstructure:"-"`
	// EventHooks receives progress callbacks; nil installs NoOpHooks.
	EventHooks Hooks `mapstructure:"-"`
	// ProcessFunc overrides the per-file unit of work (testing seam).
	ProcessFunc ProcessFunc `mapstructure:"-"`
}
