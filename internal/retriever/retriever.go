// Package retriever answers full-text queries over indexed syllabi.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/thedmsonlineschool/edugen-backend/internal/indexer"
)

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("query is required")

// DefaultTopK is used when Search is called with topK <= 0.
const DefaultTopK = 10

// Result is one matching syllabus node.
type Result struct {
	EntryID    string  `json:"entry_id"`
	SyllabusID string  `json:"syllabus_id"`
	Subject    string  `json:"subject"`
	Kind       string  `json:"curriculum_kind"`
	Level      string  `json:"level"`
	Number     string  `json:"number,omitempty"`
	Bucket     string  `json:"bucket,omitempty"`
	Topic      string  `json:"topic,omitempty"`
	Subtopic   string  `json:"subtopic,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Filter narrows a search. Zero values match everything.
type Filter struct {
	SyllabusID string
	Subject    string
	Kind       string
	Level      string
}

type Retriever struct {
	FullText bleve.Index
}

// NewRetriever creates a Retriever over an open Index.
func NewRetriever(idx *indexer.Index) *Retriever {
	return &Retriever{FullText: idx.FullText}
}

// Search matches query against node text and returns up to topK results,
// best first. The same text repeated within one syllabus (a reused
// subtopic, a leaf listed under two outcomes) is returned once.
func (r *Retriever) Search(ctx context.Context, q string, filter Filter, topK int) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	match := bleve.NewMatchQuery(q)
	match.SetField(indexer.FieldText)
	conj := []query.Query{match}
	for field, value := range map[string]string{
		indexer.FieldSyllabusID: filter.SyllabusID,
		indexer.FieldSubject:    strings.ToLower(strings.TrimSpace(filter.Subject)),
		indexer.FieldKind:       filter.Kind,
		indexer.FieldLevel:      filter.Level,
	} {
		if value == "" {
			continue
		}
		term := bleve.NewTermQuery(value)
		term.SetField(field)
		conj = append(conj, term)
	}

	// More candidates than needed so duplicates can be dropped.
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conj...), topK*3, 0, false)
	req.Fields = []string{"*"}
	res, err := r.FullText.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	seen := make(map[string]bool)
	results := []Result{}
	for _, hit := range res.Hits {
		if len(results) >= topK {
			break
		}
		out := Result{
			EntryID:    hit.ID,
			SyllabusID: field(hit.Fields, indexer.FieldSyllabusID),
			Subject:    field(hit.Fields, indexer.FieldSubject),
			Kind:       field(hit.Fields, indexer.FieldKind),
			Level:      field(hit.Fields, indexer.FieldLevel),
			Number:     field(hit.Fields, indexer.FieldNumber),
			Bucket:     field(hit.Fields, indexer.FieldBucket),
			Topic:      field(hit.Fields, indexer.FieldTopic),
			Subtopic:   field(hit.Fields, indexer.FieldSubtopic),
			Text:       field(hit.Fields, indexer.FieldText),
			Score:      hit.Score,
		}
		key := out.SyllabusID + "\x00" + out.Text
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, out)
	}
	return results, nil
}

func field(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}
