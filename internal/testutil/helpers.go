// Package testutil provides shared helpers and mocks for testing the
// subtitle library and the CLI glue around it.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SampleSRT is a small well-formed SubRip document with two blocks.
const SampleSRT = "1\n00:00:01,000 --> 00:00:04,000\nHello there.\n\n2\n00:00:05,000 --> 00:00:08,000\nGeneral Kenobi!\n"

// WriteFile creates a file with the given content, creating parent
// directories as needed.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755),
		"failed to create parent directory for %s", path)
	require.NoError(t, os.WriteFile(path, content, 0o644),
		"failed to write %s", path)
}

// WriteSRT writes a sample subtitle file and returns its path.
func WriteSRT(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	WriteFile(t, path, []byte(SampleSRT))
	return path
}

// SRTBlock renders one subtitle block from a sequence number, a timing span
// and text lines.
func SRTBlock(seq, timing string, lines ...string) string {
	out := seq + "\n" + timing + "\n"
	for _, line := range lines {
		out += line + "\n"
	}
	return out
}
