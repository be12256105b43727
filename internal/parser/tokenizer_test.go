package parser

import (
	"regexp"
	"testing"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// ========== Numbering ==========

func TestNumbering_Levels(t *testing.T) {
	cases := map[string]Level{
		"10":         LevelNone,
		"10.1":       LevelTopic,
		"10.1.1":     LevelSubtopic,
		"10.1.1.1":   LevelOutcome,
		"10.1.1.1.1": LevelNone,
		"10.1.":      LevelTopic,
	}
	for in, want := range cases {
		if got := ParseNumbering(in).Level(); got != want {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
}

func TestNumbering_Extends(t *testing.T) {
	topic := ParseNumbering("10.1")
	if !ParseNumbering("10.1.3").Extends(topic) {
		t.Error("10.1.3 should extend 10.1")
	}
	if ParseNumbering("10.2.1").Extends(topic) {
		t.Error("10.2.1 should not extend 10.1")
	}
	if ParseNumbering("10.1.1.1").Extends(topic) {
		t.Error("a grandchild should not extend directly")
	}
	if ParseNumbering("10.1").Extends(Numbering{}) {
		t.Error("nothing extends the zero numbering")
	}
}

func TestGradeRangeFor(t *testing.T) {
	cases := []struct {
		category   syllabus.Category
		descriptor string
		want       GradeRange
	}{
		{syllabus.CategorySecondary, "Grade 10-12", GradeRange{10, 12}},
		{syllabus.CategorySecondary, "Form 1 - 4", GradeRange{1, 4}},
		{syllabus.CategorySecondary, "Grades 12 to 10", GradeRange{10, 12}},
		{syllabus.CategoryPrimary, "Year 7", GradeRange{7, 7}},
		{syllabus.CategorySecondary, "Form 1 & 2", GradeRange{1, 2}},
		{syllabus.CategorySecondary, "Grades 8 and 9", GradeRange{8, 9}},
		{syllabus.CategorySecondary, "2015 Grade 10-12", GradeRange{10, 12}},
		{syllabus.CategorySecondary, "Forms 1, 2, 3 and 4 (revised 2019)", GradeRange{1, 4}},
		{syllabus.CategoryPrimary, "Syllabus 2023", GradeRange{1, 7}},
		{syllabus.CategoryPrimary, "", GradeRange{1, 7}},
		{syllabus.CategoryEarlyChildhood, "", GradeRange{0, 4}},
		{syllabus.CategoryNone, "", GradeRange{1, 12}},
	}
	for _, c := range cases {
		if got := GradeRangeFor(c.category, c.descriptor); got != c.want {
			t.Errorf("GradeRangeFor(%q, %q) = %v, want %v", c.category, c.descriptor, got, c.want)
		}
	}
}

// ========== Tokenize ==========

func TestTokenize_Numbered(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	got := tok.Tokenize("10.1 General Physics")
	if got.Kind != TokenNumbered {
		t.Fatalf("kind = %v, want TokenNumbered", got.Kind)
	}
	if got.Number.String() != "10.1" || got.Text != "General Physics" {
		t.Errorf("got number %q text %q", got.Number, got.Text)
	}
	if got.Level() != LevelTopic {
		t.Errorf("level = %v", got.Level())
	}
	if got.Caption() != "10.1 General Physics" {
		t.Errorf("caption = %q", got.Caption())
	}
}

func TestTokenize_NumberPunctuation(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	for _, line := range []string{"10.1.1. Units", "10.1.1: Units", "10.1.1) Units"} {
		got := tok.Tokenize(line)
		if got.Kind != TokenNumbered || got.Number.String() != "10.1.1" || got.Text != "Units" {
			t.Errorf("%q: got %+v", line, got)
		}
	}
}

func TestTokenize_NumberOnly(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	for _, line := range []string{"10.1", "10.1.", " 10.1.2 "} {
		if got := tok.Tokenize(line); got.Kind != TokenNumberOnly {
			t.Errorf("%q: kind = %v, want TokenNumberOnly", line, got.Kind)
		}
	}
}

func TestTokenize_OutOfGradeRangeIsProse(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	if got := tok.Tokenize("3.2 Something else"); got.Kind != TokenProse {
		t.Errorf("kind = %v, want TokenProse", got.Kind)
	}
}

func TestTokenize_FiveSegmentsIsProse(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	if got := tok.Tokenize("10.1.1.1.1 Too deep"); got.Kind != TokenProse {
		t.Errorf("kind = %v, want TokenProse", got.Kind)
	}
}

func TestTokenize_Denylist(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	for _, line := range []string{
		"SPECIFIC OUTCOMES",
		"Sub-topic",
		"LEARNING ACTIVITIES",
		"Page 3 of 40",
		"- 3 -",
		"14",
		"MINISTRY OF EDUCATION",
		"Curriculum Development Centre",
		"PHYSICS SYLLABUS GRADE 10-12",
		"Grade 10",
		"© 2023 Curriculum Development Centre",
	} {
		if got := tok.Tokenize(line); got.Kind != TokenIgnore {
			t.Errorf("%q: kind = %v, want TokenIgnore", line, got.Kind)
		}
	}
}

func TestTokenize_DenylistBeforeNumbering(t *testing.T) {
	tok := NewTokenizer(seniorGrades, regexp.MustCompile(`^10\.1 Draft`))
	if got := tok.Tokenize("10.1 Draft notes"); got.Kind != TokenIgnore {
		t.Errorf("kind = %v, want TokenIgnore", got.Kind)
	}
}

func TestTokenize_Content(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	for line, want := range map[string]string{
		"• Knows the SI base units": "Knows the SI base units",
		"- Measure length":          "Measure length",
		"– Record results":          "Record results",
	} {
		got := tok.Tokenize(line)
		if got.Kind != TokenContent || got.Text != want {
			t.Errorf("%q: got %+v", line, got)
		}
	}
}

func TestTokenize_HyphenWithoutSpaceIsProse(t *testing.T) {
	tok := NewTokenizer(seniorGrades)
	if got := tok.Tokenize("-based learning"); got.Kind != TokenProse {
		t.Errorf("kind = %v, want TokenProse", got.Kind)
	}
}
