// Package sanitize removes or replaces presentation markup in subtitle text.
//
// Each content category is applied independently; any subset may be active in
// a single pass. The sanitizer's own placeholders ([URL], [TIMESTAMP],
// [EMOJI]) are protected from the punctuation and bracket rules by an
// internal marker substitution, so combining categories never corrupts
// placeholders introduced earlier in the same pass.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// Placeholder literals inserted by the url, timestamp and emoji rules.
const (
	PlaceholderURL       = "[URL]"
	PlaceholderTimestamp = "[TIMESTAMP]"
	PlaceholderEmoji     = "[EMOJI]"
)

// Internal markers used to shield placeholders from the punctuation and
// bracket rules. NUL delimiters cannot appear in decoded subtitle text and
// match neither \p{P} nor the bracket set.
const (
	markerURL       = "\x00U\x00"
	markerTimestamp = "\x00T\x00"
	markerEmoji     = "\x00E\x00"
)

// Options selects which content categories to strip.
type Options struct {
	HTML        bool `mapstructure:"html"`
	Colors      bool `mapstructure:"colors"`
	Styles      bool `mapstructure:"styles"`
	URLs        bool `mapstructure:"urls"`
	Timestamps  bool `mapstructure:"timestamps"`
	Numbers     bool `mapstructure:"numbers"`
	Punctuation bool `mapstructure:"punctuation"`
	Emojis      bool `mapstructure:"emojis"`
	Brackets    bool `mapstructure:"brackets"`
	BidiControl bool `mapstructure:"bidiControl"`
}

// Any reports whether at least one category is active.
func (o Options) Any() bool {
	return o.HTML || o.Colors || o.Styles || o.URLs || o.Timestamps ||
		o.Numbers || o.Punctuation || o.Emojis || o.Brackets || o.BidiControl
}

var (
	reHTMLTag = regexp.MustCompile(`<[^<>]+>`)

	// SRT/ASS color-set codes: {\c&H0000FF&}. A bare closing {\c} is not a
	// color-set code and is left alone.
	reColorCode = regexp.MustCompile(`\{\\c&H[0-9A-Fa-f]{6}&\}`)

	// Style toggles such as {\b1}, {\i0} or combined {\i1\b1}. The trailing
	// digit requirement keeps this from eating the {\c} closing token.
	reStyleCode = regexp.MustCompile(`\{(?:\\[a-zA-Z]+\d+)+\}`)

	reURL = regexp.MustCompile(`(?i)(?:(?:https?|ftp)://|www\.)\S+`)

	reTimestampSpan = regexp.MustCompile(`\d{2}:\d{2}:\d{2},\d{3}\s*-->\s*\d{2}:\d{2}:\d{2},\d{3}`)

	reDigitRun = regexp.MustCompile(`\d+`)

	reSpaceRun = regexp.MustCompile(`[ \t]+`)
)

// emojiLead covers the common emoji blocks; emoji continuation additionally
// admits ZWJ, variation selector-16 and skin-tone modifiers so a joined
// sequence collapses to a single placeholder.
const emojiLead = `[\x{1F1E6}-\x{1F1FF}\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F700}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{2B00}-\x{2BFF}]`

var reEmoji = regexp.MustCompile(emojiLead + `(?:[\x{200D}\x{FE0F}\x{1F3FB}-\x{1F3FF}]|` + emojiLead + `)*`)

var bracketRemover = strings.NewReplacer(
	"[", "", "]", "",
	"(", "", ")", "",
	"{", "", "}", "",
	"<", "", ">", "",
)

// isBidiControl reports whether r is a Unicode bidirectional control
// character: ALM, LRM/RLM, the LRE/RLE/PDF/LRO/RLO block and the isolate
// block (LRI/RLI/FSI/PDI).
func isBidiControl(r rune) bool {
	switch r {
	case '\u061C', '\u200E', '\u200F':
		return true
	}
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

// Sanitizer applies the selected stripping rules to UTF-8 text.
type Sanitizer struct{}

// New returns a Sanitizer. It holds no state; a single instance is safe for
// concurrent use.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Clean transforms text according to opts. Empty input returns empty output;
// no active categories returns the input unchanged.
//
// Placeholder insertion (urls, timestamps, emojis) always precedes the
// punctuation and bracket rules within one invocation, and the inserted
// placeholders are shielded from both.
func (s *Sanitizer) Clean(text string, opts Options) string {
	if text == "" || !opts.Any() {
		return text
	}

	if opts.HTML {
		text = stripHTML(text)
	}
	if opts.Colors {
		text = reColorCode.ReplaceAllString(text, "")
	}
	if opts.Styles {
		text = reStyleCode.ReplaceAllString(text, "")
	}
	if opts.URLs {
		text = reURL.ReplaceAllString(text, PlaceholderURL)
	}
	if opts.Timestamps {
		text = reTimestampSpan.ReplaceAllString(text, PlaceholderTimestamp)
	}
	if opts.Emojis {
		text = reEmoji.ReplaceAllString(text, PlaceholderEmoji)
	}
	if opts.Numbers {
		text = reDigitRun.ReplaceAllString(text, "#")
	}

	needsProtection := opts.Punctuation || opts.Brackets
	if needsProtection {
		text = protectPlaceholders(text, opts)
	}
	if opts.Punctuation {
		text = strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) {
				return -1
			}
			return r
		}, text)
	}
	if opts.Brackets {
		text = bracketRemover.Replace(text)
	}
	if needsProtection {
		text = restorePlaceholders(text, opts)
	}

	if opts.BidiControl {
		text = strings.Map(func(r rune) rune {
			if isBidiControl(r) {
				return -1
			}
			return r
		}, text)
	}

	return text
}

// stripHTML removes tag-delimited markup. Each tag is replaced with a single
// space so words that abutted a tag with no whitespace between them do not
// merge; the resulting whitespace runs are then collapsed per line and line
// edges trimmed.
func stripHTML(text string) string {
	text = reHTMLTag.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		hadCR := strings.HasSuffix(line, "\r")
		line = strings.TrimSuffix(line, "\r")
		line = reSpaceRun.ReplaceAllString(line, " ")
		line = strings.Trim(line, " ")
		if hadCR {
			line += "\r"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// protectPlaceholders shields only the placeholders whose producing rule ran
// in this pass; a literal "[URL]" present in the source with urls disabled is
// ordinary bracketed text and stays eligible for bracket stripping.
func protectPlaceholders(text string, opts Options) string {
	if opts.URLs {
		text = strings.ReplaceAll(text, PlaceholderURL, markerURL)
	}
	if opts.Timestamps {
		text = strings.ReplaceAll(text, PlaceholderTimestamp, markerTimestamp)
	}
	if opts.Emojis {
		text = strings.ReplaceAll(text, PlaceholderEmoji, markerEmoji)
	}
	return text
}

func restorePlaceholders(text string, opts Options) string {
	if opts.URLs {
		text = strings.ReplaceAll(text, markerURL, PlaceholderURL)
	}
	if opts.Timestamps {
		text = strings.ReplaceAll(text, markerTimestamp, PlaceholderTimestamp)
	}
	if opts.Emojis {
		text = strings.ReplaceAll(text, markerEmoji, PlaceholderEmoji)
	}
	return text
}
