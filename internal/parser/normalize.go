package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// bullet is the canonical bullet glyph every marker is rewritten to.
const bullet = "•"

// bulletGlyphs are rewritten to the canonical bullet wherever they start a
// line, and split onto their own line when they appear mid-line.
var bulletGlyphs = []string{
	"•", "●", "▪", "■", "◦", "○", "‣", "⁃", "∙", "·", "✓", "✔", "➢", "➤", "►", "▶", "❖", "◆",
	"\uf0b7", "\uf0a7", "\uf076", "\uf0d8", "\uf0fc", // Symbol and Wingdings private-use bullets
}

// dashMarkers become bullets only when followed by a space and a non-digit,
// so page footers like "- 3 -" survive for the denylist.
var dashMarkers = []string{"-", "–", "—", "*"}

var (
	spaceRun = regexp.MustCompile(`[ ]{2,}`)
	// inlineNumber finds a numbering token preceded by whitespace inside a
	// line; the caller checks that whitespace or the line end follows it.
	inlineNumber = regexp.MustCompile(`\s(\d{1,2}(?:\.\d{1,3}){1,3})\.?`)
)

var spaceReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\t", " ",
	"\u00a0", " ",
	"\u2007", " ",
	"\u202f", " ",
	"\u2009", " ",
	"\u200b", "",
	"\ufeff", "",
)

// Normalizer canonicalizes raw converted text into clean lines.
type Normalizer struct {
	Grades GradeRange
}

// NormalizeText returns trimmed, non-empty lines with canonical bullets and
// with flattened numbering tokens moved onto lines of their own. Applying it
// to its own joined output returns the same lines.
func (n Normalizer) NormalizeText(raw string) []string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, " ")
	}
	raw = norm.NFC.String(raw)
	raw = spaceReplacer.Replace(raw)

	var out []string
	for _, physical := range strings.Split(raw, "\n") {
		for _, line := range n.splitLine(physical) {
			line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
			line = canonicalBullet(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// splitLine breaks a physical line before mid-line bullets and before
// hierarchy numbers that conversion glued onto surrounding text.
func (n Normalizer) splitLine(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var parts []string
	for _, piece := range splitInlineBullets(line) {
		// "•10.1.1 Units" needs its space before the number can split off.
		piece = canonicalBullet(strings.TrimSpace(piece))
		if piece == "" {
			continue
		}
		parts = append(parts, n.splitInlineNumbers(piece)...)
	}
	return parts
}

func splitInlineBullets(line string) []string {
	var cuts []int
	for i, r := range line {
		if i == 0 || !isBulletGlyph(r) {
			continue
		}
		if prev, _ := utf8.DecodeLastRuneInString(line[:i]); unicode.IsSpace(prev) {
			cuts = append(cuts, i)
		}
	}
	return cutAt(line, cuts)
}

func (n Normalizer) splitInlineNumbers(line string) []string {
	var cuts []int
	for _, m := range inlineNumber.FindAllStringSubmatchIndex(line, -1) {
		start, end := m[2], m[3]
		after := line[m[1]:]
		if after != "" && after[0] != ' ' {
			continue
		}
		num := ParseNumbering(line[start:end])
		if num.Level() == LevelNone || !n.Grades.Contains(num.First()) {
			continue
		}
		if num.Level() == LevelTopic && !looksLikeTopicBreak(line[:start], after) {
			continue
		}
		cuts = append(cuts, start)
	}
	return cutAt(line, cuts)
}

// looksLikeTopicBreak guards two-segment numbers, which also occur as
// decimals in prose: the caption must start upper-case and the preceding
// word must not be a lower-case word.
func looksLikeTopicBreak(before, after string) bool {
	after = strings.TrimSpace(after)
	if after == "" {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(after); !unicode.IsUpper(r) {
		return false
	}
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return true
	}
	last := fields[len(fields)-1]
	r, _ := utf8.DecodeRuneInString(last)
	return !unicode.IsLower(r)
}

func cutAt(line string, cuts []int) []string {
	if len(cuts) == 0 {
		return []string{line}
	}
	var parts []string
	prev := 0
	for _, c := range cuts {
		if c > prev {
			parts = append(parts, line[prev:c])
		}
		prev = c
	}
	return append(parts, line[prev:])
}

func isBulletGlyph(r rune) bool {
	for _, g := range bulletGlyphs {
		if g == string(r) {
			return true
		}
	}
	return false
}

// canonicalBullet rewrites a leading bullet glyph or dash marker to "• ".
func canonicalBullet(line string) string {
	r, size := utf8.DecodeRuneInString(line)
	if isBulletGlyph(r) {
		rest := strings.TrimSpace(line[size:])
		// Collapse doubled markers such as "• ● text".
		for {
			r2, s2 := utf8.DecodeRuneInString(rest)
			if !isBulletGlyph(r2) {
				break
			}
			rest = strings.TrimSpace(rest[s2:])
		}
		if rest == "" {
			return ""
		}
		return bullet + " " + rest
	}
	for _, d := range dashMarkers {
		if line == d {
			return ""
		}
		if !strings.HasPrefix(line, d+" ") {
			continue
		}
		rest := strings.TrimSpace(line[len(d):])
		if rest == "" {
			return ""
		}
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsDigit(r) {
			return line
		}
		return bullet + " " + rest
	}
	return line
}
