package encoding

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultFallback is the encoding label assumed when statistical detection
// yields no confident result.
const DefaultFallback = "UTF-8"

// minConfidence is the chardet confidence score below which a detection
// result is treated as inconclusive.
const minConfidence = 30

// ErrUnsupportedEncoding indicates that a source encoding label could not be
// resolved to a known decoder.
var ErrUnsupportedEncoding = errors.New("unsupported source encoding")

// ErrInvalidUTF8 indicates content labeled as UTF-8 (or ASCII) that is not
// actually valid UTF-8.
var ErrInvalidUTF8 = errors.New("content is not valid utf-8")

// Handler detects the character encoding of raw subtitle bytes and decodes
// them to UTF-8. Detection never fails for readable content; decoding is a
// pure function of (bytes, label).
type Handler interface {
	// DetectFile reads the file at path and returns a best-guess encoding
	// label. The only error conditions are I/O failures (missing file,
	// permission denied).
	DetectFile(path string) (string, error)

	// Detect returns a best-guess encoding label for content, falling back
	// to the handler's configured default when detection is inconclusive.
	Detect(content []byte) string

	// Decode converts content from the named source encoding to a UTF-8
	// string. ASCII and UTF-8 input round-trips unchanged.
	Decode(content []byte, label string) (string, error)
}

type chardetHandler struct {
	fallback string
}

// NewChardetHandler returns a Handler backed by statistical charset
// detection. An empty fallback defaults to UTF-8.
func NewChardetHandler(fallback string) Handler {
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &chardetHandler{fallback: fallback}
}

func (h *chardetHandler) DetectFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return h.Detect(content), nil
}

func (h *chardetHandler) Detect(content []byte) string {
	if len(content) == 0 {
		return h.fallback
	}

	// Byte-order marks are unambiguous; check them before statistics.
	switch {
	case len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF:
		return "UTF-8"
	case len(content) >= 2 && content[0] == 0xFF && content[1] == 0xFE:
		return "UTF-16LE"
	case len(content) >= 2 && content[0] == 0xFE && content[1] == 0xFF:
		return "UTF-16BE"
	}

	// Valid UTF-8 without high bytes is plain ASCII; report it as UTF-8 so
	// decoding is the identity.
	if utf8.Valid(content) && !hasHighBytes(content) {
		return "UTF-8"
	}

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(content)
	if err != nil || result == nil || result.Confidence < minConfidence {
		if utf8.Valid(content) {
			return "UTF-8"
		}
		return h.fallback
	}
	return result.Charset
}

func (h *chardetHandler) Decode(content []byte, label string) (string, error) {
	return Decode(content, label)
}

// Decode converts content from the named source encoding to UTF-8. It is a
// pure function: no I/O, no state.
func Decode(content []byte, label string) (string, error) {
	if len(content) == 0 {
		return "", nil
	}

	normalized := strings.ToLower(strings.TrimSpace(label))
	switch normalized {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		if !utf8.Valid(content) {
			return "", fmt.Errorf("%w: label %q", ErrInvalidUTF8, label)
		}
		return string(content), nil
	case "utf-16", "utf16":
		// Endianness comes from the BOM; default to little-endian, the
		// common case for subtitle files produced on Windows.
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(content)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", label, err)
		}
		return string(out), nil
	case "utf-16le", "utf16le":
		return decodeUTF16(content, unicode.LittleEndian)
	case "utf-16be", "utf16be":
		return decodeUTF16(content, unicode.BigEndian)
	}

	enc := lookupEncoding(label)
	if enc == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, label)
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(out), nil
}

func decodeUTF16(content []byte, endian unicode.Endianness) (string, error) {
	// ExpectBOM would reject BOM-less input, so tolerate both by honoring a
	// BOM when present and assuming the given endianness otherwise.
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	s := string(out)
	// A decoded BOM surfaces as U+FEFF; the pipeline strips a single leading
	// one later, so leave it in place here.
	return s, nil
}

// lookupEncoding resolves a charset label (chardet or IANA spelling) to an
// x/text Encoding. Common subtitle legacy encodings are mapped explicitly;
// everything else goes through the html/charset registry.
func lookupEncoding(label string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-2":
		return charmap.ISO8859_2
	case "iso-8859-5":
		return charmap.ISO8859_5
	case "iso-8859-6":
		return charmap.ISO8859_6
	case "iso-8859-7":
		return charmap.ISO8859_7
	case "iso-8859-8", "iso-8859-8-i":
		return charmap.ISO8859_8
	case "iso-8859-9":
		return charmap.ISO8859_9
	case "windows-1250":
		return charmap.Windows1250
	case "windows-1251":
		return charmap.Windows1251
	case "windows-1252":
		return charmap.Windows1252
	case "windows-1253":
		return charmap.Windows1253
	case "windows-1254":
		return charmap.Windows1254
	case "windows-1255":
		return charmap.Windows1255
	case "windows-1256":
		return charmap.Windows1256
	case "windows-1257":
		return charmap.Windows1257
	case "windows-1258":
		return charmap.Windows1258
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	}
	enc, _ := charset.Lookup(label)
	return enc
}

func hasHighBytes(content []byte) bool {
	for _, b := range content {
		if b > 0x7F {
			return true
		}
	}
	return false
}
