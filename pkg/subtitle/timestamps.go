package subtitle

import (
	"fmt"
	"regexp"
	"strings"
)

// reStructuralLines matches a structural timing line together with its
// preceding sequence-number line when one is present. Trailing extension data
// is included (some tools append display coordinates after the span).
var reStructuralLines = regexp.MustCompile(`(?m)^(?:[ \t]*\d+[ \t]*\r?\n)?[ \t]*\d{2}:\d{2}:\d{2},\d{3}[ \t]*-->[ \t]*\d{2}:\d{2}:\d{2},\d{3}[^\r\n]*`)

// reCorruptedTiming matches the signature left behind by an earlier bug that
// stripped punctuation from timing lines: exactly two 9-digit runs separated
// by whitespace, i.e. HHMMSSmmm HHMMSSmmm.
var reCorruptedTiming = regexp.MustCompile(`(?m)^[ \t]*(\d{9})[ \t]+(\d{9})[ \t]*$`)

// timingGuard records the structural lines replaced by placeholder tokens
// before a sanitizer pass so they can be restored afterwards.
type timingGuard struct {
	tokens    []string
	originals []string
}

// protectTimingLines substitutes a unique token for every structural timing
// line, taking the block's sequence-number line along with it. Tokens are
// NUL-delimited and digit-free so no sanitizer category can alter them, which
// lets arbitrary stripping combinations (punctuation and brackets included)
// run over the text without touching the timing grammar or block numbering.
func protectTimingLines(text string) (string, *timingGuard) {
	guard := &timingGuard{}
	protected := reStructuralLines.ReplaceAllStringFunc(text, func(line string) string {
		token := "\x00SZ" + alphaIndex(len(guard.tokens)) + "\x00"
		guard.tokens = append(guard.tokens, token)
		guard.originals = append(guard.originals, line)
		return token
	})
	return protected, guard
}

// restore replaces each token with its original timing line text.
func (g *timingGuard) restore(text string) string {
	for i, token := range g.tokens {
		text = strings.Replace(text, token, g.originals[i], 1)
	}
	return text
}

// alphaIndex encodes i using letters only; tokens must stay digit-free so
// the numbers stripping rule cannot rewrite them.
func alphaIndex(i int) string {
	var b strings.Builder
	for {
		b.WriteByte(byte('A' + i%26))
		i /= 26
		if i == 0 {
			return b.String()
		}
	}
}

// repairCorruptedTimingLines reconstructs timing lines that lost their
// punctuation to the historical stripping bug. Each 9-digit run is read as
// HHMMSSmmm; field ranges are validated (minutes and seconds at most 59) and
// invalid lines are left unchanged.
func repairCorruptedTimingLines(text string) string {
	return reCorruptedTiming.ReplaceAllStringFunc(text, func(line string) string {
		m := reCorruptedTiming.FindStringSubmatch(line)
		if m == nil {
			return line
		}
		start, okStart := formatTimingField(m[1])
		end, okEnd := formatTimingField(m[2])
		if !okStart || !okEnd {
			return line
		}
		return start + " --> " + end
	})
}

// formatTimingField turns a 9-digit HHMMSSmmm run back into HH:MM:SS,mmm.
func formatTimingField(digits string) (string, bool) {
	hh := digits[0:2]
	mm := digits[2:4]
	ss := digits[4:6]
	ms := digits[6:9]
	if mm > "59" || ss > "59" {
		return "", false
	}
	return fmt.Sprintf("%s:%s:%s,%s", hh, mm, ss, ms), true
}
