// Package parser turns converted curriculum documents into a syllabus tree.
//
// Text and tagged HTML are normalized into lines or table rows, tokenized
// by their dotted numbering (two segments for a topic, three for a subtopic,
// four for an outcome) and fed into one Builder. Content lines are sorted
// into buckets by a lexical Classifier; that sorting is best effort, not
// semantic understanding. When nothing structural is found and an AI
// Fallback is configured, the service is asked for the tree instead.
package parser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// ErrNoTopics is returned when a full pass finds no topic.
var ErrNoTopics = syllabus.ErrNoTopics

// ErrMissingContent rejects a request with neither text nor markup.
var ErrMissingContent = errors.New("document content is required")

// Source records which path produced a tree.
type Source string

const (
	SourceLines    Source = "lines"
	SourceTables   Source = "tables"
	SourceFallback Source = "ai-fallback"
)

// Request is one document to parse. Exactly one of Text and HTML is
// normally set; HTML wins when both are.
type Request struct {
	Subject    string
	Kind       syllabus.CurriculumKind
	Category   syllabus.Category
	GradeRange string
	Text       string
	HTML       string
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return syllabus.ErrMissingSubject
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", syllabus.ErrInvalidKind, r.Kind)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", syllabus.ErrInvalidCategory, r.Category)
	}
	if strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.HTML) == "" {
		return ErrMissingContent
	}
	return nil
}

// Result is a complete tree and how it was obtained.
type Result struct {
	Document *syllabus.Document
	Source   Source
	Stats    Stats
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithFallback enables the AI path for documents with no local structure.
func WithFallback(f *Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithRules adds classifier rules tried before the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = append(e.rules, rules...) }
}

// WithDenylist adds patterns for lines to discard.
func WithDenylist(patterns ...*regexp.Regexp) Option {
	return func(e *Engine) { e.denylist = append(e.denylist, patterns...) }
}

// Engine holds configuration only. Every Parse builds its own normalizer,
// tokenizer and builder, so an Engine is safe for concurrent use.
type Engine struct {
	log      *zap.Logger
	fallback *Fallback
	rules    []Rule
	denylist []*regexp.Regexp
}

func New(opts ...Option) *Engine {
	e := &Engine{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse extracts the tree for req. Markup is tried as tables first, then as
// lines. The whole tree or an error is returned, never a partial tree.
func (e *Engine) Parse(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	grades := GradeRangeFor(req.Category, req.GradeRange)
	nz := Normalizer{Grades: grades}
	text := req.Text

	if strings.TrimSpace(req.HTML) != "" {
		rows, err := nz.NormalizeHTML(req.HTML)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			b := e.newBuilder(req.Kind, grades)
			ExtractTables(rows, b, nz)
			if topics, err := b.Finish(); err == nil {
				return e.result(req, topics, SourceTables, b.Stats()), nil
			}
			e.log.Debug("tables yielded no topics, trying lines",
				zap.String("subject", req.Subject), zap.Int("rows", len(rows)))
		}
		if text, err = HTMLText(req.HTML); err != nil {
			return nil, err
		}
	}

	lines := nz.NormalizeText(text)
	b := e.newBuilder(req.Kind, grades)
	for _, line := range lines {
		b.FeedLine(line)
	}
	topics, err := b.Finish()
	if err == nil {
		return e.result(req, topics, SourceLines, b.Stats()), nil
	}

	if e.fallback == nil || len(lines) == 0 {
		return nil, err
	}
	e.log.Info("no local structure, using ai fallback",
		zap.String("subject", req.Subject), zap.Int("lines", len(lines)))
	doc, ferr := e.fallback.Extract(ctx, req, strings.Join(lines, "\n"))
	if ferr != nil {
		return nil, fmt.Errorf("%w; %w", err, ferr)
	}
	return &Result{Document: doc, Source: SourceFallback, Stats: b.Stats()}, nil
}

func (e *Engine) newBuilder(kind syllabus.CurriculumKind, grades GradeRange) *Builder {
	tok := NewTokenizer(grades, e.denylist...)
	cls := NewClassifier(kind, e.rules...)
	return NewBuilder(kind, tok, cls, e.log)
}

func (e *Engine) result(req Request, topics []syllabus.Topic, src Source, stats Stats) *Result {
	e.log.Debug("syllabus parsed",
		zap.String("subject", req.Subject),
		zap.String("source", string(src)),
		zap.Int("topics", stats.Topics),
		zap.Int("subtopics", stats.Subtopics),
		zap.Int("outcomes", stats.Outcomes),
		zap.Int("orphans", stats.Orphans),
		zap.Int("rejected", stats.Rejected))
	return &Result{
		Document: &syllabus.Document{
			Subject:    req.Subject,
			Kind:       req.Kind,
			Category:   req.Category,
			GradeRange: req.GradeRange,
			Topics:     topics,
		},
		Source: src,
		Stats:  stats,
	}
}
