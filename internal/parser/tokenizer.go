package parser

import (
	"regexp"
	"strings"
)

// TokenKind classifies one normalized line or cell line.
type TokenKind int

const (
	TokenProse      TokenKind = iota // unrecognized text
	TokenIgnore                      // header, footer or banner
	TokenNumberOnly                  // a numbering token with no caption
	TokenNumbered                    // numbering token plus caption
	TokenContent                     // bullet or dash line, marker stripped
)

// Token is the tokenizer's view of a line.
type Token struct {
	Kind   TokenKind
	Number Numbering
	Text   string
}

// Level is the candidate hierarchy level of a numbered token.
func (t Token) Level() Level {
	if t.Kind != TokenNumbered && t.Kind != TokenNumberOnly {
		return LevelNone
	}
	return t.Number.Level()
}

// Caption joins the number and its text the way node names are stored.
func (t Token) Caption() string {
	if t.Text == "" {
		return t.Number.String()
	}
	return t.Number.String() + " " + t.Text
}

// numberPattern matches a leading dotted number of two to five segments
// followed by optional punctuation and the caption.
var numberPattern = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,3}){1,4})\.?[\s:)]*(.*)$`)

// DefaultDenylist matches table column headers, page furniture and curriculum banners.
var DefaultDenylist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(topics?|sub[\s-]?topics?|specific\s+outcomes?|content|knowledge|skills|values|specific\s+competences?|learning\s+activities|suggested\s+learning\s+activities|expected\s+standards|assessment|key\s+inquiry\s+questions?|resources|remarks|learning\s+outcomes?)\s*:?$`),
	regexp.MustCompile(`(?i)^topic\s+sub[\s-]?topic\b`),
	regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`),
	regexp.MustCompile(`^[-–—\s]*\d{1,3}[-–—\s]*$`),
	regexp.MustCompile(`(?i)^ministry\s+of\b`),
	regexp.MustCompile(`(?i)^republic\s+of\b`),
	regexp.MustCompile(`(?i)curriculum\s+development\s+cent(re|er)`),
	regexp.MustCompile(`^[A-Z0-9\s&,()\-–]*SYLLABUS[A-Z0-9\s&,()\-–]*$`),
	regexp.MustCompile(`(?i)^(grade|form|year)\s+\d{1,2}(\s*[-–]\s*\d{1,2})?$`),
	regexp.MustCompile(`(?i)^(©|\(c\)|copyright\b)`),
}

// Tokenizer classifies lines against the grade range and denylist.
type Tokenizer struct {
	Grades   GradeRange
	Denylist []*regexp.Regexp
}

// NewTokenizer returns a tokenizer with DefaultDenylist plus extra patterns.
func NewTokenizer(grades GradeRange, extra ...*regexp.Regexp) *Tokenizer {
	deny := make([]*regexp.Regexp, 0, len(DefaultDenylist)+len(extra))
	deny = append(deny, DefaultDenylist...)
	deny = append(deny, extra...)
	return &Tokenizer{Grades: grades, Denylist: deny}
}

// Tokenize classifies a single line. The denylist is checked first, then
// bullets, then numbering.
func (t *Tokenizer) Tokenize(line string) Token {
	line = strings.TrimSpace(line)
	if line == "" {
		return Token{Kind: TokenIgnore}
	}
	for _, re := range t.Denylist {
		if re.MatchString(line) {
			return Token{Kind: TokenIgnore, Text: line}
		}
	}
	if text, ok := stripBullet(line); ok {
		if text == "" {
			return Token{Kind: TokenIgnore}
		}
		return Token{Kind: TokenContent, Text: text}
	}
	if m := numberPattern.FindStringSubmatch(line); m != nil {
		num := ParseNumbering(m[1])
		if num.Level() != LevelNone && t.Grades.Contains(num.First()) {
			text := strings.TrimSpace(m[2])
			if text == "" {
				return Token{Kind: TokenNumberOnly, Number: num}
			}
			return Token{Kind: TokenNumbered, Number: num, Text: text}
		}
	}
	return Token{Kind: TokenProse, Text: line}
}

// stripBullet removes a leading canonical bullet or dash marker.
func stripBullet(line string) (string, bool) {
	for _, marker := range []string{bullet, "-", "–", "—"} {
		if strings.HasPrefix(line, marker) {
			rest := strings.TrimPrefix(line, marker)
			if marker != bullet && (rest == "" || rest[0] != ' ') {
				return "", false
			}
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
