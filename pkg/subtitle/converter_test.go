package subtitle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxdevs/subzilla-sub000/internal/testutil"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle/encoding"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle/sanitize"
)

func newTestConverter() *subtitle.FileConverter {
	return subtitle.NewFileConverter(nil, nil)
}

func TestProcess_SuffixOutput(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "movie.subzilla.srt"), result.OutputPath)
	assert.Empty(t, result.BackupPath)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleSRT, string(out))
}

func TestProcess_ExplicitOutputWins(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	explicit := filepath.Join(dir, "elsewhere", "renamed.srt")

	result, err := newTestConverter().Process(context.Background(), input, explicit, subtitle.ConversionOptions{})
	require.NoError(t, err)
	assert.Equal(t, explicit, result.OutputPath)
	assert.FileExists(t, explicit)
}

func TestProcess_InputNotFound(t *testing.T) {
	_, err := newTestConverter().Process(context.Background(),
		filepath.Join(t.TempDir(), "missing.srt"), "", subtitle.ConversionOptions{})
	assert.ErrorIs(t, err, subtitle.ErrNotFound)
	assert.ErrorIs(t, err, subtitle.ErrProcessing)
}

func TestProcess_AlreadyExistsBeforeSideEffects(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	output := filepath.Join(dir, "movie.subzilla.srt")
	testutil.WriteFile(t, output, []byte("occupied"))

	_, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{Backup: true})
	assert.ErrorIs(t, err, subtitle.ErrAlreadyExists)

	// The existing-output check precedes the backup side effect.
	assert.NoFileExists(t, input+".bak")
	out, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, "occupied", string(out), "existing output must not be touched")
}

func TestProcess_OverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	output := filepath.Join(dir, "movie.subzilla.srt")
	testutil.WriteFile(t, output, []byte("stale"))

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{OverwriteExisting: true})
	require.NoError(t, err)
	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleSRT, string(out))
}

func TestProcess_OverwriteInputTakesBackup(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{OverwriteInput: true})
	require.NoError(t, err)
	assert.Equal(t, input, result.OutputPath)
	assert.Equal(t, input+".bak", result.BackupPath)

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleSRT, string(backup), "backup must hold the pre-conversion bytes")
}

func TestProcess_NumberedBackupPolicy(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	testutil.WriteFile(t, input+".bak", []byte("first backup"))

	opts := subtitle.ConversionOptions{OverwriteInput: true, BackupPolicy: subtitle.BackupNumbered}
	result, err := newTestConverter().Process(context.Background(), input, "", opts)
	require.NoError(t, err)
	assert.Equal(t, input+".bak.1", result.BackupPath)

	prior, err := os.ReadFile(input + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "first backup", string(prior), "numbered policy must never clobber prior backups")
}

func TestProcess_BOMWrittenExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	// Input already carries a BOM; the output must still have exactly one.
	input := filepath.Join(dir, "movie.srt")
	testutil.WriteFile(t, input, append([]byte{0xEF, 0xBB, 0xBF}, []byte(testutil.SampleSRT)...))

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{BOM: true})
	require.NoError(t, err)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	require.True(t, len(out) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])
	assert.False(t, strings.Contains(string(out[3:]), "\uFEFF"), "BOM must not be doubled")
}

func TestProcess_StripBOMWhenNotRequested(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	testutil.WriteFile(t, input, append([]byte{0xEF, 0xBB, 0xBF}, []byte(testutil.SampleSRT)...))

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{})
	require.NoError(t, err)
	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleSRT, string(out))
}

func TestProcess_StructuralProtection(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")

	opts := subtitle.ConversionOptions{Strip: sanitize.Options{Timestamps: true, Numbers: true}}
	result, err := newTestConverter().Process(context.Background(), input, "", opts)
	require.NoError(t, err)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	// No digits outside structural lines in the sample, so the whole document
	// must round-trip byte-identical.
	assert.Equal(t, testutil.SampleSRT, string(out))
	assert.NotContains(t, string(out), "[TIMESTAMP]")
	assert.NotContains(t, string(out), "#")
}

func TestProcess_RepairsCorruptedTimingLines(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	testutil.WriteFile(t, input, []byte("1\n000001000 000004000\nHello there.\n"))

	result, err := newTestConverter().Process(context.Background(), input, "", subtitle.ConversionOptions{})
	require.NoError(t, err)
	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:04,000\nHello there.\n", string(out))
}

func TestProcess_Resegmentation(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	// Double blank lines between blocks and a stray blank line inside one.
	raw := "1\r\n00:00:01,000 --> 00:00:04,000\r\nHello\r\n\r\nthere.\r\n\r\n\r\n2\r\n00:00:05,000 --> 00:00:08,000\r\nWorld\r\n"
	testutil.WriteFile(t, input, []byte(raw))

	opts := subtitle.ConversionOptions{LineEndings: subtitle.LineEndingLF}
	result, err := newTestConverter().Process(context.Background(), input, "", opts)
	require.NoError(t, err)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "\n\n\n", "at most one blank line between blocks")
	assert.NotContains(t, string(out), "\r")
	assert.Contains(t, string(out), "Hello\nthere.\n\n2", "stray blank line inside a block must be collapsed")
	assert.True(t, strings.HasSuffix(string(out), "World\n"))
}

func TestProcess_CRLFOutput(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")

	opts := subtitle.ConversionOptions{LineEndings: subtitle.LineEndingCRLF}
	result, err := newTestConverter().Process(context.Background(), input, "", opts)
	require.NoError(t, err)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\r\n")
	assert.NotContains(t, strings.ReplaceAll(string(out), "\r\n", ""), "\n", "no bare LF may remain")
}

func TestProcess_Idempotent(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	opts := subtitle.ConversionOptions{LineEndings: subtitle.LineEndingLF, OverwriteExisting: true}
	converter := newTestConverter()

	first, err := converter.Process(context.Background(), input, "", opts)
	require.NoError(t, err)
	firstOut, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)

	second, err := converter.Process(context.Background(), first.OutputPath, "", opts)
	require.NoError(t, err)
	secondOut, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, string(firstOut), string(secondOut))
}

func TestProcess_Latin1Input(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	// "café" in ISO-8859-1 within a subtitle block.
	raw := append([]byte("1\n00:00:01,000 --> 00:00:04,000\ncaf"), 0xE9, '\n')
	testutil.WriteFile(t, input, raw)

	opts := subtitle.ConversionOptions{DefaultEncoding: "ISO-8859-1"}
	result, err := newTestConverter().Process(context.Background(), input, "", opts)
	require.NoError(t, err)

	out, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "café")
}

// failingDecodeHandler is an encoding.Handler whose Decode always fails,
// forcing the pipeline to error after the backup was taken. A non-empty
// removePath is deleted first, so the subsequent restore cannot succeed
// either.
type failingDecodeHandler struct {
	removePath string
}

var _ encoding.Handler = failingDecodeHandler{}

func (failingDecodeHandler) DetectFile(string) (string, error) { return "UTF-8", nil }

func (failingDecodeHandler) Detect([]byte) string { return "UTF-8" }

func (h failingDecodeHandler) Decode([]byte, string) (string, error) {
	if h.removePath != "" {
		_ = os.Remove(h.removePath)
	}
	return "", errors.New("mangled payload")
}

func TestProcess_InPlaceFailureRestoresInput(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	converter := subtitle.NewFileConverter(nil, failingDecodeHandler{})

	_, err := converter.Process(context.Background(), input, "", subtitle.ConversionOptions{OverwriteInput: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, subtitle.ErrEncoding)

	restored, readErr := os.ReadFile(input)
	require.NoError(t, readErr)
	assert.Equal(t, testutil.SampleSRT, string(restored), "input must be restored from the backup")
	assert.NoFileExists(t, input+".bak", "the backup is deleted after a successful restore")
}

func TestProcess_RestoreFailureCarriesBothCauses(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	converter := subtitle.NewFileConverter(nil, failingDecodeHandler{removePath: input + ".bak"})

	_, err := converter.Process(context.Background(), input, "", subtitle.ConversionOptions{OverwriteInput: true})
	require.Error(t, err)

	var restoreErr *subtitle.RestoreError
	require.ErrorAs(t, err, &restoreErr)
	assert.ErrorIs(t, err, subtitle.ErrEncoding, "the original conversion failure stays reachable")
	assert.Error(t, restoreErr.RestoreErr, "the restoration failure rides along")
}

func TestProcess_BackupPreservesFileMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(input, []byte(testutil.SampleSRT), 0o600))

	result, err := newTestConverter().Process(context.Background(), input, "",
		subtitle.ConversionOptions{OverwriteInput: true})
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupPath)

	info, err := os.Stat(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProcess_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteSRT(t, dir, "movie.srt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestConverter().Process(ctx, input, "", subtitle.ConversionOptions{})
	assert.ErrorIs(t, err, subtitle.ErrProcessing)
}
