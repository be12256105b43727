package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "syllabi.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func physicsDoc() *syllabus.Document {
	return &syllabus.Document{
		Subject:    "Physics",
		Kind:       syllabus.OutcomeBased,
		Category:   syllabus.CategorySecondary,
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
					Leaves:    syllabus.Leaves{Knowledge: []string{"Knows the SI base units"}},
				}},
			}},
		}},
	}
}

// ========== Create / Get ==========

func TestCreateGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, physicsDoc(), Meta{Source: "lines", FileName: "physics.docx"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Errorf("expected id and timestamps, got %+v", rec)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "Physics" || got.Source != "lines" || got.TopicCount != 1 {
		t.Errorf("record = %+v", got)
	}
	doc, err := got.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	o := doc.Topics[0].Subtopics[0].Outcomes[0]
	if o.Statement != "10.1.1.1 Distinguish base and derived units" || len(o.Knowledge) != 1 {
		t.Errorf("outcome = %+v", o)
	}
	if doc.Category != syllabus.CategorySecondary {
		t.Errorf("category = %q", doc.Category)
	}
}

func TestCreate_RejectsEmptyTree(t *testing.T) {
	s := openTestStore(t)
	doc := physicsDoc()
	doc.Topics = nil
	if _, err := s.Create(context.Background(), doc, Meta{}); !errors.Is(err, syllabus.ErrNoTopics) {
		t.Fatalf("expected ErrNoTopics, got %v", err)
	}
}

func TestBeforeSave_RejectsUnknownEnums(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bad := &Record{ID: uuid.New(), Subject: "Physics", CurriculumKind: "mixed"}
	if err := s.db.WithContext(ctx).Create(bad).Error; !errors.Is(err, syllabus.ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	bad = &Record{ID: uuid.New(), Subject: "Physics", CurriculumKind: "outcome-based", Category: "tertiary"}
	if err := s.db.WithContext(ctx).Create(bad).Error; !errors.Is(err, syllabus.ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ========== List ==========

func TestList_SummariesAndFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, physicsDoc(), Meta{Source: "lines"}); err != nil {
		t.Fatal(err)
	}
	bio := physicsDoc()
	bio.Subject = "Biology"
	bio.Kind = syllabus.CompetencyBased
	if _, err := s.Create(ctx, bio, Meta{Source: "tables"}); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(all))
	}
	for _, sum := range all {
		if sum.ID == uuid.Nil || sum.TopicCount != 1 || sum.CreatedAt.IsZero() {
			t.Errorf("summary = %+v", sum)
		}
	}

	bySubject, err := s.List(ctx, ListOptions{Subject: "physics"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySubject) != 1 || bySubject[0].Subject != "Physics" {
		t.Errorf("by subject = %+v", bySubject)
	}

	byKind, err := s.List(ctx, ListOptions{Kind: syllabus.CompetencyBased})
	if err != nil {
		t.Fatal(err)
	}
	if len(byKind) != 1 || byKind[0].Source != "tables" {
		t.Errorf("by kind = %+v", byKind)
	}
}

func TestList_Empty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

// ========== Delete ==========

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, err := s.Create(ctx, physicsDoc(), Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
