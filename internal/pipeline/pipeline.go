// Package pipeline wires conversion, parsing, storage and indexing into the
// single ingest path shared by the HTTP server and the ingest CLI.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/extractor"
	"github.com/thedmsonlineschool/edugen-backend/internal/indexer"
	"github.com/thedmsonlineschool/edugen-backend/internal/parser"
	"github.com/thedmsonlineschool/edugen-backend/internal/store"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// DefaultConcurrency bounds parallel file processing in Batch.
const DefaultConcurrency = 4

// Options describe the syllabus a file holds.
type Options struct {
	Subject    string
	Kind       syllabus.CurriculumKind
	Category   syllabus.Category
	GradeRange string
	// Format overrides inference from the file name.
	Format extractor.Format
}

// Parsed is a converted and parsed file that has not been persisted.
type Parsed struct {
	Converted *extractor.Converted
	Result    *parser.Result
}

// Outcome is a persisted file.
type Outcome struct {
	Parsed
	Record  *store.Record
	Indexed int
}

// Pipeline holds the ingest components. Store and Index may be nil for
// parse-only use.
type Pipeline struct {
	Engine *parser.Engine
	Store  *store.Store
	Index  *indexer.Index
	log    *zap.Logger
}

func New(engine *parser.Engine, st *store.Store, idx *indexer.Index, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{Engine: engine, Store: st, Index: idx, log: log}
}

// Parse converts and parses one file without persisting it.
func (p *Pipeline) Parse(ctx context.Context, name string, data []byte, opts Options) (*Parsed, error) {
	start := time.Now()
	conv, err := extractor.Convert(name, data, opts.Format)
	if err != nil {
		return nil, err
	}
	res, err := p.Engine.Parse(ctx, parser.Request{
		Subject:    opts.Subject,
		Kind:       opts.Kind,
		Category:   opts.Category,
		GradeRange: opts.GradeRange,
		Text:       conv.Text,
		HTML:       conv.HTML,
	})
	if err != nil {
		return nil, err
	}
	topics, subs, outs := res.Document.Counts()
	p.log.Info("file parsed",
		zap.String("file", name),
		zap.String("format", string(conv.Format)),
		zap.String("source", string(res.Source)),
		zap.Int("topics", topics),
		zap.Int("subtopics", subs),
		zap.Int("outcomes", outs),
		zap.Duration("elapsed", time.Since(start)))
	return &Parsed{Converted: conv, Result: res}, nil
}

// Ingest parses one file, stores the tree and indexes it. A failed index
// write is logged; the stored record stays authoritative.
func (p *Pipeline) Ingest(ctx context.Context, name string, data []byte, opts Options) (*Outcome, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("ingest %s: no store configured", name)
	}
	parsed, err := p.Parse(ctx, name, data, opts)
	if err != nil {
		return nil, err
	}
	rec, err := p.Store.Create(ctx, parsed.Result.Document, store.Meta{
		Source:   string(parsed.Result.Source),
		FileName: filepath.Base(name),
	})
	if err != nil {
		return nil, err
	}
	out := &Outcome{Parsed: *parsed, Record: rec}
	if p.Index != nil {
		n, err := p.Index.AddSyllabus(rec.ID.String(), parsed.Result.Document)
		if err != nil {
			p.log.Warn("index write failed", zap.String("id", rec.ID.String()), zap.Error(err))
		}
		out.Indexed = n
	}
	return out, nil
}

// Delete removes a syllabus from the store and the index.
func (p *Pipeline) Delete(ctx context.Context, id uuid.UUID) error {
	if err := p.Store.Delete(ctx, id); err != nil {
		return err
	}
	if p.Index != nil {
		if _, err := p.Index.RemoveSyllabus(id.String()); err != nil {
			p.log.Warn("index removal failed", zap.String("id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// File is one batch input. Options apply to this file only.
type File struct {
	Path    string
	Options Options
}

// FileResult is the outcome of one batch file.
type FileResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // "ok" or "failed"
	Error      string `json:"error,omitempty"`
	SyllabusID string `json:"syllabus_id,omitempty"`
	Source     string `json:"source,omitempty"`
	Topics     int    `json:"topics"`
}

// Batch ingests files with at most concurrency in flight and reports each
// result to progress as it completes. With dryRun set nothing is stored.
// Results are returned in input order.
func (p *Pipeline) Batch(ctx context.Context, files []File, concurrency int, dryRun bool, progress func(FileResult)) []FileResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]FileResult, len(files))
	sem := make(chan struct{}, concurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			res := FileResult{Name: filepath.Base(f.Path)}

			select {
			case <-ctx.Done():
			case sem <- struct{}{}:
				if ctx.Err() == nil {
					res = p.batchOne(ctx, f, dryRun)
				}
				<-sem
			}
			if res.Status == "" {
				res.Status, res.Error = "failed", ctx.Err().Error()
			}

			results[i] = res
			if progress != nil {
				mu.Lock()
				progress(res)
				mu.Unlock()
			}
		}(i, f)
	}
	wg.Wait()
	return results
}

func (p *Pipeline) batchOne(ctx context.Context, f File, dryRun bool) FileResult {
	res := FileResult{Name: filepath.Base(f.Path), Status: "failed"}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	var parsed *Parsed
	if dryRun {
		parsed, err = p.Parse(ctx, f.Path, data, f.Options)
	} else {
		var out *Outcome
		if out, err = p.Ingest(ctx, f.Path, data, f.Options); err == nil {
			parsed = &out.Parsed
			res.SyllabusID = out.Record.ID.String()
		}
	}
	if err != nil {
		p.log.Warn("file failed", zap.String("file", res.Name), zap.Error(err))
		res.Error = err.Error()
		return res
	}
	res.Status = "ok"
	res.Source = string(parsed.Result.Source)
	res.Topics = len(parsed.Result.Document.Topics)
	return res
}
