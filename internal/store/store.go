// Package store persists parsed syllabi in SQLite through gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// ErrNotFound is returned when no syllabus has the requested ID.
var ErrNotFound = errors.New("syllabus not found")

// Record is one stored syllabus. The topic tree is kept as JSON.
type Record struct {
	ID             uuid.UUID      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Subject        string         `gorm:"column:subject;not null;index" json:"subject"`
	CurriculumKind string         `gorm:"column:curriculum_kind;not null;index" json:"curriculum_kind"`
	Category       string         `gorm:"column:category" json:"category,omitempty"`
	GradeRange     string         `gorm:"column:grade_range" json:"grade_range,omitempty"`
	Source         string         `gorm:"column:source" json:"source"`
	FileName       string         `gorm:"column:file_name" json:"file_name,omitempty"`
	TopicCount     int            `gorm:"column:topic_count" json:"topic_count"`
	Topics         datatypes.JSON `gorm:"column:topics" json:"topics"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Record) TableName() string { return "syllabi" }

// BeforeSave re-checks the enumerations so no write path can store an
// unknown curriculum kind or category.
func (r *Record) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(r.Subject) == "" {
		return syllabus.ErrMissingSubject
	}
	if !syllabus.CurriculumKind(r.CurriculumKind).Valid() {
		return fmt.Errorf("%w: %q", syllabus.ErrInvalidKind, r.CurriculumKind)
	}
	if !syllabus.Category(r.Category).Valid() {
		return fmt.Errorf("%w: %q", syllabus.ErrInvalidCategory, r.Category)
	}
	return nil
}

// Document decodes the record back into a syllabus tree.
func (r *Record) Document() (*syllabus.Document, error) {
	doc := &syllabus.Document{
		Subject:    r.Subject,
		Kind:       syllabus.CurriculumKind(r.CurriculumKind),
		Category:   syllabus.Category(r.Category),
		GradeRange: r.GradeRange,
	}
	if len(r.Topics) > 0 {
		if err := json.Unmarshal(r.Topics, &doc.Topics); err != nil {
			return nil, fmt.Errorf("decode topics of %s: %w", r.ID, err)
		}
	}
	return doc, nil
}

// Summary is the list projection of a Record, without the tree.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	Subject        string    `json:"subject"`
	CurriculumKind string    `json:"curriculum_kind"`
	Category       string    `json:"category,omitempty"`
	GradeRange     string    `json:"grade_range,omitempty"`
	Source         string    `json:"source"`
	FileName       string    `json:"file_name,omitempty"`
	TopicCount     int       `json:"topic_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Meta describes where a document came from.
type Meta struct {
	Source   string
	FileName string
}

// ListOptions filters List. Zero values match everything.
type ListOptions struct {
	Subject string
	Kind    syllabus.CurriculumKind
	Limit   int
}

// Store is the syllabus repository.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open opens (or creates) the SQLite database at path and migrates it.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("syllabus store ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create validates doc and stores it under a new ID.
func (s *Store) Create(ctx context.Context, doc *syllabus.Document, meta Meta) (*Record, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	topics, err := json.Marshal(doc.Topics)
	if err != nil {
		return nil, fmt.Errorf("encode topics: %w", err)
	}
	rec := &Record{
		ID:             uuid.New(),
		Subject:        doc.Subject,
		CurriculumKind: string(doc.Kind),
		Category:       string(doc.Category),
		GradeRange:     doc.GradeRange,
		Source:         meta.Source,
		FileName:       meta.FileName,
		TopicCount:     len(doc.Topics),
		Topics:         datatypes.JSON(topics),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create syllabus: %w", err)
	}
	s.log.Info("syllabus stored",
		zap.String("id", rec.ID.String()),
		zap.String("subject", rec.Subject),
		zap.Int("topics", rec.TopicCount))
	return rec, nil
}

// Get returns the full record for id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get syllabus %s: %w", id, err)
	}
	return &rec, nil
}

// List returns summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	q := s.db.WithContext(ctx).Model(&Record{}).
		Select("id, subject, curriculum_kind, category, grade_range, source, file_name, topic_count, created_at, updated_at").
		Order("created_at DESC")
	if opts.Subject != "" {
		q = q.Where("LOWER(subject) = LOWER(?)", opts.Subject)
	}
	if opts.Kind != "" {
		q = q.Where("curriculum_kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	summaries := []Summary{}
	if err := q.Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("list syllabi: %w", err)
	}
	return summaries, nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("delete syllabus %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.log.Info("syllabus deleted", zap.String("id", id.String()))
	return nil
}
