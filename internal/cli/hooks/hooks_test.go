package hooks

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

type recordingBar struct {
	added  int
	closed bool
}

func (r *recordingBar) Add(num int) error { r.added += num; return nil }

func (r *recordingBar) Describe(string) {}

func (r *recordingBar) Close() error { r.closed = true; return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBatchHooks_ProgressMode(t *testing.T) {
	bar := &recordingBar{}
	h := NewBatchHooks(discardLogger(), false, bar)

	assert.NoError(t, h.OnFileDiscovered("a.srt"))
	assert.NoError(t, h.OnFileStatusUpdate("a.srt", subtitle.StatusSuccess, "", time.Millisecond))
	assert.NoError(t, h.OnFileStatusUpdate("b.srt", subtitle.StatusFailed, "boom", time.Millisecond))
	assert.Equal(t, 2, bar.added, "every settled file ticks the bar once")

	assert.NoError(t, h.OnRunComplete(subtitle.BatchStats{}))
	assert.True(t, bar.closed)
}

func TestBatchHooks_VerboseSkipsBar(t *testing.T) {
	bar := &recordingBar{}
	h := NewBatchHooks(discardLogger(), true, bar)

	assert.NoError(t, h.OnFileStatusUpdate("a.srt", subtitle.StatusSuccess, "", time.Millisecond))
	assert.Zero(t, bar.added, "verbose mode logs instead of ticking the bar")
}

func TestBatchHooks_NilBar(t *testing.T) {
	h := NewBatchHooks(discardLogger(), false, nil)
	assert.NoError(t, h.OnFileStatusUpdate("a.srt", subtitle.StatusSkipped, "exists", 0))
	assert.NoError(t, h.OnRunComplete(subtitle.BatchStats{}))
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestBatchHooks_RunCompleteNewline(t *testing.T) {
	t.Run("with bar", func(t *testing.T) {
		h := NewBatchHooks(discardLogger(), false, &recordingBar{})
		out := captureStderr(t, func() {
			assert.NoError(t, h.OnRunComplete(subtitle.BatchStats{}))
		})
		assert.Equal(t, "\n", out, "the bar line must be finished")
	})

	t.Run("without bar", func(t *testing.T) {
		h := NewBatchHooks(discardLogger(), false, nil)
		out := captureStderr(t, func() {
			assert.NoError(t, h.OnRunComplete(subtitle.BatchStats{}))
		})
		assert.Empty(t, out, "no bar, no stray newline")
	})
}
