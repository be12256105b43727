package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// Level is a hierarchy level, equal to the segment count of its numbering token.
type Level int

const (
	LevelNone     Level = 0
	LevelTopic    Level = 2
	LevelSubtopic Level = 3
	LevelOutcome  Level = 4
)

func (l Level) String() string {
	switch l {
	case LevelTopic:
		return "topic"
	case LevelSubtopic:
		return "subtopic"
	case LevelOutcome:
		return "outcome"
	}
	return "none"
}

// Numbering is a dotted hierarchy number such as 10.1.2.
type Numbering struct {
	Segments []string
}

// ParseNumbering splits a dotted number. It does not check the grade range.
func ParseNumbering(s string) Numbering {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return Numbering{}
	}
	return Numbering{Segments: strings.Split(s, ".")}
}

func (n Numbering) String() string { return strings.Join(n.Segments, ".") }

func (n Numbering) IsZero() bool { return len(n.Segments) == 0 }

// Level maps the segment count to a hierarchy level; 2, 3 and 4 are the only
// structural counts.
func (n Numbering) Level() Level {
	switch len(n.Segments) {
	case 2:
		return LevelTopic
	case 3:
		return LevelSubtopic
	case 4:
		return LevelOutcome
	}
	return LevelNone
}

// Extends reports whether n is a direct child of parent: exactly one more
// segment, and every parent segment equal.
func (n Numbering) Extends(parent Numbering) bool {
	if len(parent.Segments) == 0 || len(n.Segments) != len(parent.Segments)+1 {
		return false
	}
	for i, seg := range parent.Segments {
		if n.Segments[i] != seg {
			return false
		}
	}
	return true
}

// First returns the top-level segment as an integer, or -1.
func (n Numbering) First() int {
	if len(n.Segments) == 0 {
		return -1
	}
	v, err := strconv.Atoi(n.Segments[0])
	if err != nil {
		return -1
	}
	return v
}

// ==================== Grade range ====================

// GradeRange bounds the valid top-level numbering segment (the grade, form or year).
type GradeRange struct {
	Min int
	Max int
}

func (g GradeRange) Contains(v int) bool { return v >= g.Min && v <= g.Max }

var digitRun = regexp.MustCompile(`\d+`)

// GradeRangeFor derives the top-level range from the grade descriptor
// ("Grade 10-12", "Form 1 - 4", "Grades 8 and 9", "Year 7"), falling back to
// category defaults. Every one- or two-digit number counts; longer runs are
// years or codes and are skipped.
func GradeRangeFor(category syllabus.Category, descriptor string) GradeRange {
	found := false
	var g GradeRange
	for _, run := range digitRun.FindAllString(descriptor, -1) {
		if len(run) > 2 {
			continue
		}
		v, _ := strconv.Atoi(run)
		if !found || v < g.Min {
			g.Min = v
		}
		if !found || v > g.Max {
			g.Max = v
		}
		found = true
	}
	if found {
		return g
	}
	switch category {
	case syllabus.CategoryEarlyChildhood:
		return GradeRange{Min: 0, Max: 4}
	case syllabus.CategoryPrimary:
		return GradeRange{Min: 1, Max: 7}
	}
	return GradeRange{Min: 1, Max: 12}
}
