package syllabus

import (
	"errors"
	"reflect"
	"testing"
)

// ========== ParseCurriculumKind ==========

func TestParseCurriculumKind_Aliases(t *testing.T) {
	cases := map[string]CurriculumKind{
		"competency-based": CompetencyBased,
		"CBC":              CompetencyBased,
		" outcome-based ":  OutcomeBased,
		"obc":              OutcomeBased,
	}
	for in, want := range cases {
		got, err := ParseCurriculumKind(in)
		if err != nil {
			t.Fatalf("ParseCurriculumKind(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseCurriculumKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCurriculumKind_Unknown(t *testing.T) {
	_, err := ParseCurriculumKind("montessori")
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}

func TestParseCategory_EmptyIsUnset(t *testing.T) {
	got, err := ParseCategory("")
	if err != nil || got != CategoryNone {
		t.Errorf("ParseCategory(\"\") = %q, %v; want unset category", got, err)
	}
	if _, err := ParseCategory("tertiary"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}

// ========== Leaves ==========

func TestLeavesAdd_ExactlyOneBucket(t *testing.T) {
	var l Leaves
	if !l.Add(BucketSkills, "Measure length") {
		t.Fatal("Add returned false for a known bucket")
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 leaf, got %d", l.Len())
	}
	if got := l.Get(BucketSkills); len(got) != 1 || got[0] != "Measure length" {
		t.Errorf("skills = %v, want [Measure length]", got)
	}
	if l.Add(Bucket("misc"), "x") {
		t.Error("Add accepted an unknown bucket")
	}
}

func TestLeavesFold_MovesOutOfKindBuckets(t *testing.T) {
	l := Leaves{
		Knowledge: []string{"Atoms"},
		Skills:    []string{"Measure length"},
		Values:    []string{"Appreciate safety"},
	}
	if moved := l.Fold(CompetencyBased); moved != 3 {
		t.Errorf("moved = %d, want 3", moved)
	}
	want := []string{"Atoms", "Measure length", "Appreciate safety"}
	if !reflect.DeepEqual(l.ExpectedStandards, want) {
		t.Errorf("standards = %q, want %q", l.ExpectedStandards, want)
	}
	if l.Len() != 3 {
		t.Errorf("len = %d, want 3", l.Len())
	}

	obc := Leaves{Skills: []string{"Measure length"}, Competences: []string{"Explains motion"}}
	obc.Fold(OutcomeBased)
	if !reflect.DeepEqual(obc.Knowledge, []string{"Explains motion"}) || len(obc.Competences) != 0 {
		t.Errorf("outcome-based fold = %+v", obc)
	}
	if !reflect.DeepEqual(obc.Skills, []string{"Measure length"}) {
		t.Errorf("legal bucket changed: %q", obc.Skills)
	}
}

// ========== Validate ==========

func TestValidate_ZeroTopicsIsFailure(t *testing.T) {
	d := &Document{Subject: "Physics", Kind: OutcomeBased}
	if err := d.Validate(); !errors.Is(err, ErrNoTopics) {
		t.Errorf("expected ErrNoTopics, got %v", err)
	}
}

func TestValidate_RejectsUnknownEnums(t *testing.T) {
	d := &Document{Subject: "Physics", Kind: "other", Topics: []Topic{{Name: "10.1 A"}}}
	if err := d.Validate(); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	d.Kind = OutcomeBased
	d.Category = "college"
	if err := d.Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}

// ========== CheckContainment ==========

func TestCheckContainment_ReportsMismatch(t *testing.T) {
	d := &Document{Topics: []Topic{{
		Number: "10.1",
		Subtopics: []Subtopic{
			{Number: "10.1.1", Outcomes: []Outcome{{Number: "10.1.1.1"}, {Number: "10.2.1.1"}}},
			{Number: "10.2.1"},
		},
	}}}
	got := d.CheckContainment()
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(got), got)
	}
	if got[0].Child != "10.2.1.1" || got[1].Child != "10.2.1" {
		t.Errorf("unexpected violations: %v", got)
	}
}

func TestCounts(t *testing.T) {
	d := &Document{Topics: []Topic{
		{Subtopics: []Subtopic{{Outcomes: []Outcome{{}, {}}}, {}}},
		{},
	}}
	topics, subs, outs := d.Counts()
	if topics != 2 || subs != 2 || outs != 2 {
		t.Errorf("Counts = %d/%d/%d, want 2/2/2", topics, subs, outs)
	}
}

// ========== FindSubtopic ==========

func TestFindSubtopic(t *testing.T) {
	doc := Document{Topics: []Topic{{
		Number: "10.1", Name: "10.1 General Physics",
		Subtopics: []Subtopic{{Number: "10.1.1", Name: "10.1.1 Units"}, {Number: "10.1.2", Name: "10.1.2 Measurement"}},
	}}}
	topic, sub, ok := doc.FindSubtopic("10.1.2")
	if !ok || topic.Number != "10.1" || sub.Name != "10.1.2 Measurement" {
		t.Fatalf("by number: %v %+v %+v", ok, topic, sub)
	}
	if _, sub, ok = doc.FindSubtopic("10.1.1 Units"); !ok || sub.Number != "10.1.1" {
		t.Errorf("by name: %v %+v", ok, sub)
	}
	if _, _, ok = doc.FindSubtopic("10.9.9"); ok {
		t.Error("expected miss")
	}
}
