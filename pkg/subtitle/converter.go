package subtitle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle/encoding"
	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle/sanitize"
)

// utf8BOM is the byte sequence prepended when a byte-order mark is requested.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileConverter runs the single-file pipeline: encoding detection and
// conversion, sanitization, structural normalization, backup and write.
type FileConverter struct {
	logger    *slog.Logger
	encoding  encoding.Handler
	sanitizer *sanitize.Sanitizer
}

// NewFileConverter creates a FileConverter. A nil loggerHandler discards
// logs; a nil encHandler installs the chardet-backed default.
func NewFileConverter(loggerHandler slog.Handler, encHandler encoding.Handler) *FileConverter {
	if loggerHandler == nil {
		loggerHandler = slog.DiscardHandler
	}
	if encHandler == nil {
		encHandler = encoding.NewChardetHandler(DefaultEncoding)
	}
	return &FileConverter{
		logger:    slog.New(loggerHandler).With(slog.String("component", "converter")),
		encoding:  encHandler,
		sanitizer: sanitize.New(),
	}
}

// Process converts inputPath to normalized UTF-8 output. An explicit
// outputPath wins over the output strategy derived from opts; pass "" to let
// the strategy decide. All failures wrap ErrProcessing; the existing-output
// check happens before any backup or write side effect.
func (c *FileConverter) Process(ctx context.Context, inputPath, outputPath string, opts ConversionOptions) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrProcessing, err)
	}

	// 1. Input must be accessible.
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %w: %s", ErrProcessing, ErrNotFound, inputPath)
		}
		return Result{}, fmt.Errorf("%w: %w: stat %s: %w", ErrProcessing, ErrIO, inputPath, err)
	}

	// 2. Resolve the output path via the strategy.
	var strategy OutputPathStrategy
	if opts.OverwriteInput {
		strategy = OverwriteStrategy{}
	} else {
		strategy = NewSuffixStrategy("")
	}
	finalPath := outputPath
	if finalPath == "" {
		finalPath = strategy.OutputPath(inputPath)
	}

	// 3. Refuse to clobber existing output before any side effect.
	if !opts.OverwriteExisting && !opts.OverwriteInput {
		if _, err := os.Stat(finalPath); err == nil {
			return Result{}, fmt.Errorf("%w: %w: %s", ErrProcessing, ErrAlreadyExists, finalPath)
		}
	}

	// 4. Backup before mutation when requested or mandated by the strategy.
	backupPath := ""
	if opts.Backup || strategy.RequiresBackup() {
		path, err := backupPathFor(inputPath, opts.BackupPolicy)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrProcessing, err)
		}
		if err := copyFile(inputPath, path); err != nil {
			return Result{}, fmt.Errorf("%w: %w: backup %s: %w", ErrProcessing, ErrIO, path, err)
		}
		backupPath = path
		c.logger.Debug("Backup created", slog.String("input", inputPath), slog.String("backup", backupPath))
	}

	overwritingInput := finalPath == inputPath

	if err := c.convert(inputPath, finalPath, opts); err != nil {
		if overwritingInput && backupPath != "" {
			if restoreErr := copyFile(backupPath, inputPath); restoreErr != nil {
				return Result{}, &RestoreError{Cause: err, RestoreErr: restoreErr}
			}
			_ = os.Remove(backupPath)
			c.logger.Warn("Conversion failed, input restored from backup",
				slog.String("path", inputPath), slog.String("error", err.Error()))
		}
		return Result{}, err
	}

	c.logger.Debug("File converted",
		slog.String("input", inputPath),
		slog.String("output", finalPath),
		slog.Duration("duration", time.Since(start)))
	return Result{OutputPath: finalPath, BackupPath: backupPath}, nil
}

// convert runs pipeline steps 5-12: decode, normalize, sanitize, write.
func (c *FileConverter) convert(inputPath, finalPath string, opts ConversionOptions) error {
	// 5. Read and decode to UTF-8.
	content, err := os.ReadFile(inputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w: %s", ErrProcessing, ErrNotFound, inputPath)
		}
		return fmt.Errorf("%w: %w: read %s: %w", ErrProcessing, ErrIO, inputPath, err)
	}
	detected := c.encoding.Detect(content)
	if fallback := opts.DefaultEncoding; fallback != "" && detected == DefaultEncoding && !strings.EqualFold(fallback, DefaultEncoding) {
		detected = fallback
	}
	text, err := c.encoding.Decode(content, detected)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrProcessing, ErrEncoding, err)
	}
	c.logger.Debug("Encoding detected", slog.String("path", inputPath), slog.String("encoding", detected))

	// 6. Strip a single leading byte-order mark so a requested BOM is never
	// doubled.
	text = strings.TrimPrefix(text, "\uFEFF")

	// 7. Reconstruct timing lines corrupted by the historical punctuation
	// stripping bug before any further transformation.
	text = repairCorruptedTimingLines(text)

	// 8. Sanitize with every structural timing line (and its sequence
	// number) protected, so any stripping combination leaves the timing
	// grammar and block numbering intact.
	if opts.Strip.Any() {
		protected, guard := protectTimingLines(text)
		protected = c.sanitizer.Clean(protected, opts.Strip)
		text = guard.restore(protected)
	}

	// 9. Re-segment into blocks: exactly one blank line between blocks,
	// none inside a block.
	text = resegmentBlocks(text)

	// 10. Normalize line endings.
	if eol := lineTerminator(opts.LineEndings); eol != "\n" {
		text = strings.ReplaceAll(text, "\n", eol)
	}

	// 11-12. Optional BOM, then write.
	out := []byte(text)
	if opts.BOM {
		out = append(append(make([]byte, 0, len(utf8BOM)+len(out)), utf8BOM...), out...)
	}
	if dir := filepath.Dir(finalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w: mkdir %s: %w", ErrProcessing, ErrIO, dir, err)
		}
	}
	if err := os.WriteFile(finalPath, out, 0o644); err != nil {
		return fmt.Errorf("%w: %w: write %s: %w", ErrProcessing, ErrIO, finalPath, err)
	}
	return nil
}

// resegmentBlocks rebuilds the blank-line structure players expect: exactly
// one blank line between blocks and none inside a block. A blank-line-
// delimited chunk that does not open with a sequence number or timing line is
// a continuation of the previous block (a stray blank line split it) and is
// folded back in. Line-ending variants are normalized to \n as a side effect;
// the requested terminator is applied afterwards.
func resegmentBlocks(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var blocks []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.Join(current, "\n")
		if len(blocks) > 0 && !opensBlock(current) {
			blocks[len(blocks)-1] += "\n" + chunk
		} else {
			blocks = append(blocks, chunk)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(blocks, "\n\n") + "\n"
}

var (
	reSequenceLine = regexp.MustCompile(`^[ \t]*\d+[ \t]*$`)
	reTimingPrefix = regexp.MustCompile(`^[ \t]*\d{2}:\d{2}:\d{2},\d{3}[ \t]*-->`)
)

// opensBlock reports whether a chunk of non-empty lines looks like the start
// of a subtitle block: a timing line up front, or a sequence number followed
// by one.
func opensBlock(lines []string) bool {
	if reTimingPrefix.MatchString(lines[0]) {
		return true
	}
	return len(lines) >= 2 && reSequenceLine.MatchString(lines[0]) && reTimingPrefix.MatchString(lines[1])
}

// lineTerminator maps the requested mode to a terminator; auto selects the
// platform default.
func lineTerminator(mode LineEnding) string {
	switch mode {
	case LineEndingLF:
		return "\n"
	case LineEndingCRLF:
		return "\r\n"
	default:
		if runtime.GOOS == "windows" {
			return "\r\n"
		}
		return "\n"
	}
}

// backupPathFor resolves the backup destination for the given policy. The
// numbered policy probes <input>.bak, <input>.bak.1, <input>.bak.2, ... and
// picks the first free path so prior backups are never destroyed.
func backupPathFor(input string, policy BackupPolicy) (string, error) {
	base := input + ".bak"
	if policy != BackupNumbered {
		return base, nil
	}
	candidate := base
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("%w: probe backup %s: %w", ErrIO, candidate, err)
		}
		candidate = fmt.Sprintf("%s.%d", base, n)
	}
}

// copyFile copies src to dst, carrying over the source's permission bits so
// a backup (and a restored input) keeps the original file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	perm := info.Mode().Perm()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// O_CREATE is subject to the umask and leaves a pre-existing
	// destination's mode untouched, so align it explicitly.
	return os.Chmod(dst, perm)
}
