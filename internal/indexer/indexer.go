// Package indexer keeps a bleve full-text index of stored syllabi. Every
// topic, subtopic, outcome and leaf string becomes one searchable entry.
package indexer

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// Entry levels.
const (
	LevelTopic    = "topic"
	LevelSubtopic = "subtopic"
	LevelOutcome  = "outcome"
	LevelLeaf     = "leaf"
)

// Indexed field names.
const (
	FieldSyllabusID = "syllabus_id"
	FieldSubject    = "subject"
	FieldKind       = "kind"
	FieldLevel      = "level"
	FieldNumber     = "number"
	FieldBucket     = "bucket"
	FieldTopic      = "topic"
	FieldSubtopic   = "subtopic"
	FieldText       = "text"
)

// Entry is one indexed node of a syllabus tree. Leaf entries carry the
// number of the node that owns them.
type Entry struct {
	ID         string
	SyllabusID string
	Subject    string
	Kind       string
	Level      string
	Number     string
	Bucket     string
	Topic      string
	Subtopic   string
	Text       string
}

func (e Entry) fields() map[string]interface{} {
	return map[string]interface{}{
		FieldSyllabusID: e.SyllabusID,
		FieldSubject:    strings.ToLower(e.Subject),
		FieldKind:       e.Kind,
		FieldLevel:      e.Level,
		FieldNumber:     e.Number,
		FieldBucket:     e.Bucket,
		FieldTopic:      e.Topic,
		FieldSubtopic:   e.Subtopic,
		FieldText:       e.Text,
	}
}

type Index struct {
	FullText bleve.Index
	log      *zap.Logger
	mu       sync.Mutex // serializes add/remove of whole syllabi
}

// Open opens the index at path, creating it when it does not exist yet.
func Open(path string, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		ft  bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		ft, err = bleve.New(path, newMapping())
	} else {
		ft, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Index{FullText: ft, log: log}, nil
}

// newMapping indexes the filter fields as single keyword terms and the
// text fields with English stemming.
func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName

	entry := bleve.NewDocumentMapping()
	for _, f := range []string{FieldSyllabusID, FieldSubject, FieldKind, FieldLevel, FieldNumber, FieldBucket} {
		entry.AddFieldMappingsAt(f, keyword)
	}
	for _, f := range []string{FieldTopic, FieldSubtopic, FieldText} {
		entry.AddFieldMappingsAt(f, text)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = entry
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

// Entries flattens a syllabus tree into index entries. It does not touch
// the index and is safe to call concurrently.
func Entries(syllabusID string, doc *syllabus.Document) []Entry {
	var out []Entry
	add := func(e Entry) {
		e.ID = fmt.Sprintf("%s/%d", syllabusID, len(out))
		e.SyllabusID = syllabusID
		e.Subject = doc.Subject
		e.Kind = string(doc.Kind)
		out = append(out, e)
	}
	addLeaves := func(l syllabus.Leaves, number, topic, sub string) {
		for _, b := range doc.Kind.Buckets() {
			for _, text := range l.Get(b) {
				add(Entry{Level: LevelLeaf, Number: number, Bucket: string(b), Topic: topic, Subtopic: sub, Text: text})
			}
		}
	}

	for _, t := range doc.Topics {
		add(Entry{Level: LevelTopic, Number: t.Number, Topic: t.Name, Text: t.Name})
		for _, s := range t.Subtopics {
			add(Entry{Level: LevelSubtopic, Number: s.Number, Topic: t.Name, Subtopic: s.Name, Text: s.Name})
			addLeaves(s.Leaves, s.Number, t.Name, s.Name)
			for _, o := range s.Outcomes {
				add(Entry{Level: LevelOutcome, Number: o.Number, Topic: t.Name, Subtopic: s.Name, Text: o.Statement})
				addLeaves(o.Leaves, o.Number, t.Name, s.Name)
			}
		}
	}
	return out
}

// AddSyllabus replaces any entries of syllabusID with the entries of doc
// and returns how many were indexed.
func (idx *Index) AddSyllabus(syllabusID string, doc *syllabus.Document) (int, error) {
	entries := Entries(syllabusID, doc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.removeLocked(syllabusID); err != nil {
		return 0, err
	}
	batch := idx.FullText.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ID, e.fields()); err != nil {
			return 0, fmt.Errorf("index entry %s: %w", e.ID, err)
		}
	}
	if err := idx.FullText.Batch(batch); err != nil {
		return 0, fmt.Errorf("index syllabus %s: %w", syllabusID, err)
	}
	idx.log.Info("syllabus indexed",
		zap.String("id", syllabusID),
		zap.Int("entries", len(entries)))
	return len(entries), nil
}

// RemoveSyllabus deletes every entry of syllabusID and returns the count.
func (idx *Index) RemoveSyllabus(syllabusID string) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n, err := idx.removeLocked(syllabusID)
	if err == nil && n > 0 {
		idx.log.Info("syllabus removed from index",
			zap.String("id", syllabusID),
			zap.Int("entries", n))
	}
	return n, err
}

func (idx *Index) removeLocked(syllabusID string) (int, error) {
	q := bleve.NewTermQuery(syllabusID)
	q.SetField(FieldSyllabusID)

	removed := 0
	for {
		req := bleve.NewSearchRequestOptions(q, 500, 0, false)
		res, err := idx.FullText.Search(req)
		if err != nil {
			return removed, fmt.Errorf("find entries of %s: %w", syllabusID, err)
		}
		if len(res.Hits) == 0 {
			return removed, nil
		}
		batch := idx.FullText.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := idx.FullText.Batch(batch); err != nil {
			return removed, fmt.Errorf("remove entries of %s: %w", syllabusID, err)
		}
		removed += len(res.Hits)
	}
}

// Count returns the number of indexed entries.
func (idx *Index) Count() (uint64, error) {
	return idx.FullText.DocCount()
}

// Close closes the bleve index. Must be called before reopening the path.
func (idx *Index) Close() error {
	if idx.FullText != nil {
		return idx.FullText.Close()
	}
	return nil
}
