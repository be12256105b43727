// Package generate drafts teaching documents (lesson plans, schemes of
// work, notes) for one subtopic of a stored syllabus.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/llm"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

var (
	ErrUnknownType      = errors.New("unknown document type")
	ErrSubtopicNotFound = errors.New("subtopic not found in syllabus")
	ErrNoProvider       = errors.New("no AI provider configured")
	ErrEmptyReply       = errors.New("AI service returned an empty document")
)

// DocType is the kind of document to draft.
type DocType string

const (
	LessonPlan     DocType = "lesson-plan"
	SchemeOfWork   DocType = "scheme-of-work"
	LessonNotes    DocType = "notes"
	defaultMinutes         = 40
)

// ParseDocType accepts the canonical names and a few common spellings.
func ParseDocType(s string) (DocType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lesson-plan", "lesson_plan", "lessonplan", "plan":
		return LessonPlan, nil
	case "scheme-of-work", "scheme_of_work", "scheme", "sow":
		return SchemeOfWork, nil
	case "notes", "lesson-notes":
		return LessonNotes, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Request names the subtopic (by number or exact name) and the shape of
// the document to draft.
type Request struct {
	Type     DocType
	Subtopic string
	Grade    string
	Minutes  int
	Weeks    int
	Notes    string
}

// Output is a drafted document.
type Output struct {
	Type     DocType `json:"type"`
	Subject  string  `json:"subject"`
	Topic    string  `json:"topic"`
	Subtopic string  `json:"subtopic"`
	Content  string  `json:"content"`
}

type Generator struct {
	ai  llm.Provider
	log *zap.Logger
}

func New(ai llm.Provider, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{ai: ai, log: log}
}

// Generate makes one AI call and returns its reply as the document body.
func (g *Generator) Generate(ctx context.Context, doc *syllabus.Document, req Request) (*Output, error) {
	if g == nil || g.ai == nil {
		return nil, ErrNoProvider
	}
	t, err := ParseDocType(string(req.Type))
	if err != nil {
		return nil, err
	}
	req.Type = t
	topic, sub, ok := doc.FindSubtopic(req.Subtopic)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSubtopicNotFound, req.Subtopic)
	}

	prompt := fmt.Sprintf("%s\n\n%s", instructions(doc, sub, req), FormatContext(doc, topic, sub))
	reply, err := g.ai.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Type, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, ErrEmptyReply
	}
	g.log.Info("document generated",
		zap.String("type", string(req.Type)),
		zap.String("subject", doc.Subject),
		zap.String("subtopic", sub.Name),
		zap.Int("chars", len(reply)))
	return &Output{
		Type:     req.Type,
		Subject:  doc.Subject,
		Topic:    topic.Name,
		Subtopic: sub.Name,
		Content:  reply,
	}, nil
}

// FormatContext renders the subtopic with its outcomes and leaf buckets.
func FormatContext(doc *syllabus.Document, topic *syllabus.Topic, sub *syllabus.Subtopic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== SYLLABUS ===\nSubject: %s\nCurriculum: %s\n", doc.Subject, doc.Kind)
	if doc.GradeRange != "" {
		fmt.Fprintf(&b, "Grades: %s\n", doc.GradeRange)
	}
	fmt.Fprintf(&b, "Topic: %s\nSubtopic: %s\n", topic.Name, sub.Name)
	writeLeaves(&b, doc.Kind, sub.Leaves, "")

	label := doc.Kind.StatementLabel()
	for i, o := range sub.Outcomes {
		fmt.Fprintf(&b, "\n[%s %d] %s\n", label, i+1, o.Statement)
		writeLeaves(&b, doc.Kind, o.Leaves, "  ")
	}
	return b.String()
}

func writeLeaves(b *strings.Builder, kind syllabus.CurriculumKind, l syllabus.Leaves, indent string) {
	for _, bucket := range kind.Buckets() {
		items := l.Get(bucket)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s%s:\n", indent, bucketTitle(bucket))
		for _, item := range items {
			fmt.Fprintf(b, "%s- %s\n", indent, item)
		}
	}
}

func bucketTitle(b syllabus.Bucket) string {
	switch b {
	case syllabus.BucketActivity:
		return "Suggested learning activities"
	case syllabus.BucketStandard:
		return "Expected standards"
	case syllabus.BucketCompetence:
		return "Competences"
	}
	s := string(b)
	return strings.ToUpper(s[:1]) + s[1:]
}

func instructions(doc *syllabus.Document, sub *syllabus.Subtopic, req Request) string {
	grade := req.Grade
	if grade == "" {
		grade = doc.GradeRange
	}
	var b strings.Builder
	switch req.Type {
	case LessonPlan:
		minutes := req.Minutes
		if minutes <= 0 {
			minutes = defaultMinutes
		}
		fmt.Fprintf(&b, "Write a %d-minute lesson plan for the subtopic below.", minutes)
		b.WriteString(" Include lesson objectives, teaching aids, introduction, lesson development with teacher and learner activities, conclusion and assessment.")
	case SchemeOfWork:
		weeks := req.Weeks
		if weeks <= 0 {
			// One week per outcome.
			weeks = max(len(sub.Outcomes), 1)
		}
		fmt.Fprintf(&b, "Write a scheme of work spanning %d week(s) for the subtopic below.", weeks)
		b.WriteString(" Give one row per week with outcomes, content, methods, resources and assessment.")
	case LessonNotes:
		b.WriteString("Write learner notes for the subtopic below, with worked examples and a short exercise at the end.")
	}
	if grade != "" {
		fmt.Fprintf(&b, " Target learners: %s.", grade)
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		fmt.Fprintf(&b, "\nTeacher's notes: %s", n)
	}
	return b.String()
}

var systemPrompt = `You are an experienced teacher preparing classroom documents from an official syllabus.
Stay within the outcomes and content listed in the syllabus excerpt. Do not invent outcomes.
Respond in Markdown with clear headings.`
