package subtitle

import (
	"path/filepath"
	"strings"
)

// OutputPathStrategy decides where a converted file is written and whether a
// backup of the input is mandatory. The variant set is closed: suffix and
// overwrite.
type OutputPathStrategy interface {
	// OutputPath returns the output path for input.
	OutputPath(input string) string
	// RequiresBackup reports whether this strategy mutates the input and
	// therefore demands a backup by default.
	RequiresBackup() bool
}

// SuffixStrategy writes output alongside the input, inserting Suffix
// immediately before the last extension component:
//
//	movie.srt    -> movie.subzilla.srt
//	movie        -> movie.subzilla
//	movie.en.srt -> movie.en.subzilla.srt
type SuffixStrategy struct {
	Suffix string
}

// NewSuffixStrategy returns a SuffixStrategy; an empty suffix defaults to
// DefaultSuffix.
func NewSuffixStrategy(suffix string) SuffixStrategy {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return SuffixStrategy{Suffix: suffix}
}

func (s SuffixStrategy) OutputPath(input string) string {
	ext := filepath.Ext(input)
	if ext == "" {
		return input + s.Suffix
	}
	return strings.TrimSuffix(input, ext) + s.Suffix + ext
}

func (s SuffixStrategy) RequiresBackup() bool { return false }

// OverwriteStrategy converts the input in place; the output path is the
// input path and a backup is mandatory before mutation.
type OverwriteStrategy struct{}

func (OverwriteStrategy) OutputPath(input string) string { return input }

func (OverwriteStrategy) RequiresBackup() bool { return true }
