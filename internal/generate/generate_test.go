package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

type fakeAI struct {
	reply  string
	err    error
	calls  int
	system string
	prompt string
}

func (f *fakeAI) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	return f.reply, f.err
}

func physicsDoc() *syllabus.Document {
	return &syllabus.Document{
		Subject:    "Physics",
		Kind:       syllabus.OutcomeBased,
		GradeRange: "Grade 10-12",
		Topics: []syllabus.Topic{{
			Number: "10.1",
			Name:   "10.1 General Physics",
			Subtopics: []syllabus.Subtopic{{
				Number: "10.1.1",
				Name:   "10.1.1 Units",
				Outcomes: []syllabus.Outcome{{
					Number:    "10.1.1.1",
					Statement: "10.1.1.1 Distinguish base and derived units",
					Leaves: syllabus.Leaves{
						Knowledge: []string{"SI base units"},
						Values:    []string{"Appreciating accuracy"},
					},
				}, {
					Number:    "10.1.1.2",
					Statement: "10.1.1.2 Convert units",
				}},
			}},
		}},
	}
}

// ========== ParseDocType ==========

func TestParseDocType(t *testing.T) {
	cases := map[string]DocType{
		"lesson-plan": LessonPlan,
		"Lesson_Plan": LessonPlan,
		"SOW":         SchemeOfWork,
		" notes ":     LessonNotes,
	}
	for in, want := range cases {
		got, err := ParseDocType(in)
		if err != nil || got != want {
			t.Errorf("ParseDocType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDocType("essay"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

// ========== Generate ==========

func TestGenerate_LessonPlan(t *testing.T) {
	ai := &fakeAI{reply: "  # Lesson plan\n...  "}
	out, err := New(ai, nil).Generate(context.Background(), physicsDoc(), Request{Type: "plan", Subtopic: "10.1.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ai.calls != 1 {
		t.Errorf("calls = %d", ai.calls)
	}
	if out.Type != LessonPlan || out.Topic != "10.1 General Physics" || out.Subtopic != "10.1.1 Units" {
		t.Errorf("output = %+v", out)
	}
	if out.Content != "# Lesson plan\n..." {
		t.Errorf("content = %q", out.Content)
	}
	for _, want := range []string{
		"40-minute lesson plan",
		"Target learners: Grade 10-12.",
		"Subtopic: 10.1.1 Units",
		"[specific outcome 1] 10.1.1.1 Distinguish base and derived units",
		"  Knowledge:\n  - SI base units",
	} {
		if !strings.Contains(ai.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, ai.prompt)
		}
	}
	if !strings.Contains(ai.system, "Do not invent outcomes") {
		t.Errorf("system prompt = %q", ai.system)
	}
}

func TestGenerate_SchemeDefaultsToOneWeekPerOutcome(t *testing.T) {
	ai := &fakeAI{reply: "| Week | ... |"}
	_, err := New(ai, nil).Generate(context.Background(), physicsDoc(), Request{Type: SchemeOfWork, Subtopic: "10.1.1 Units", Grade: "Grade 10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ai.prompt, "spanning 2 week(s)") || !strings.Contains(ai.prompt, "Target learners: Grade 10.") {
		t.Errorf("prompt = %s", ai.prompt)
	}
}

func TestGenerate_NotesWithTeacherNotes(t *testing.T) {
	ai := &fakeAI{reply: "notes"}
	_, err := New(ai, nil).Generate(context.Background(), physicsDoc(), Request{Type: LessonNotes, Subtopic: "10.1.1", Notes: "Use local examples"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ai.prompt, "Teacher's notes: Use local examples") {
		t.Errorf("prompt = %s", ai.prompt)
	}
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()
	doc := physicsDoc()

	if _, err := New(nil, nil).Generate(ctx, doc, Request{Type: LessonPlan, Subtopic: "10.1.1"}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
	ai := &fakeAI{reply: "x"}
	if _, err := New(ai, nil).Generate(ctx, doc, Request{Type: "essay", Subtopic: "10.1.1"}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if _, err := New(ai, nil).Generate(ctx, doc, Request{Type: LessonPlan, Subtopic: "9.9.9"}); !errors.Is(err, ErrSubtopicNotFound) {
		t.Errorf("expected ErrSubtopicNotFound, got %v", err)
	}
	if ai.calls != 0 {
		t.Errorf("AI called %d times for invalid requests", ai.calls)
	}

	boom := errors.New("boom")
	if _, err := New(&fakeAI{err: boom}, nil).Generate(ctx, doc, Request{Type: LessonPlan, Subtopic: "10.1.1"}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
	if _, err := New(&fakeAI{reply: "  \n"}, nil).Generate(ctx, doc, Request{Type: LessonPlan, Subtopic: "10.1.1"}); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("expected ErrEmptyReply, got %v", err)
	}
}

// ========== FormatContext ==========

func TestFormatContext_CompetencyBuckets(t *testing.T) {
	doc := &syllabus.Document{
		Subject: "Biology",
		Kind:    syllabus.CompetencyBased,
		Topics: []syllabus.Topic{{
			Name: "8.1 Cells",
			Subtopics: []syllabus.Subtopic{{
				Name:   "8.1.1 Cell structure",
				Leaves: syllabus.Leaves{LearningActivities: []string{"Observe onion cells"}},
			}},
		}},
	}
	got := FormatContext(doc, &doc.Topics[0], &doc.Topics[0].Subtopics[0])
	if !strings.Contains(got, "Suggested learning activities:\n- Observe onion cells") {
		t.Errorf("context = %s", got)
	}
	if strings.Contains(got, "Grades:") {
		t.Errorf("unexpected grades line: %s", got)
	}
}
