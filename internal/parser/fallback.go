package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/llm"
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// DefaultFallbackMaxChars is the input budget sent to the AI service.
const DefaultFallbackMaxChars = 24000

var (
	ErrFallbackUnreachable = errors.New("ai fallback: service unreachable")
	ErrFallbackRejected    = errors.New("ai fallback: service returned a non-success response")
	ErrFallbackNoJSON      = errors.New("ai fallback: no JSON object in response")
	ErrFallbackSchema      = errors.New("ai fallback: response does not match the syllabus schema")
	ErrFallbackEmpty       = errors.New("ai fallback: response has no topics")
)

// treeSchemaJSON is the canonical tree the AI service must return. Field
// names match the stored syllabus JSON.
const treeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["topics"],
  "properties": {
    "subject": {"type": "string"},
    "topics": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "subtopics": {"type": "array", "items": {"$ref": "#/$defs/subtopic"}}
        }
      }
    }
  },
  "$defs": {
    "strings": {"type": "array", "items": {"type": "string"}},
    "subtopic": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "outcomes": {"type": "array", "items": {"$ref": "#/$defs/outcome"}},
        "knowledge": {"$ref": "#/$defs/strings"},
        "skills": {"$ref": "#/$defs/strings"},
        "values": {"$ref": "#/$defs/strings"},
        "competences": {"$ref": "#/$defs/strings"},
        "learning_activities": {"$ref": "#/$defs/strings"},
        "expected_standards": {"$ref": "#/$defs/strings"}
      }
    },
    "outcome": {
      "type": "object",
      "required": ["statement"],
      "properties": {
        "statement": {"type": "string", "minLength": 1},
        "knowledge": {"$ref": "#/$defs/strings"},
        "skills": {"$ref": "#/$defs/strings"},
        "values": {"$ref": "#/$defs/strings"},
        "competences": {"$ref": "#/$defs/strings"},
        "learning_activities": {"$ref": "#/$defs/strings"},
        "expected_standards": {"$ref": "#/$defs/strings"}
      }
    }
  }
}`

var treeSchema = compileTreeSchema()

func compileTreeSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("syllabus.json", strings.NewReader(treeSchemaJSON)); err != nil {
		panic(fmt.Sprintf("load syllabus schema: %v", err))
	}
	schema, err := compiler.Compile("syllabus.json")
	if err != nil {
		panic(fmt.Sprintf("compile syllabus schema: %v", err))
	}
	return schema
}

// Fallback asks the AI service for the tree when local parsing finds
// nothing. It makes exactly one call per Extract and never merges with a
// partial local result.
type Fallback struct {
	ai       llm.Provider
	maxChars int
	log      *zap.Logger
}

// NewFallback returns a coordinator over ai. maxChars <= 0 selects
// DefaultFallbackMaxChars.
func NewFallback(ai llm.Provider, maxChars int, log *zap.Logger) *Fallback {
	if maxChars <= 0 {
		maxChars = DefaultFallbackMaxChars
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{ai: ai, maxChars: maxChars, log: log}
}

// Extract sends text to the AI service and returns the validated tree.
func (f *Fallback) Extract(ctx context.Context, req Request, text string) (*syllabus.Document, error) {
	input, truncated := truncateOnLine(text, f.maxChars)
	if truncated {
		f.log.Info("fallback input truncated",
			zap.Int("original_bytes", len(text)),
			zap.Int("sent_bytes", len(input)))
	}

	reply, err := f.ai.Complete(ctx, fallbackSystemPrompt, fallbackPrompt(req, input))
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: %w", ErrFallbackRejected, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrFallbackUnreachable, err)
	}

	raw, ok := llm.FirstJSONObject(reply)
	if !ok {
		f.log.Warn("fallback reply has no JSON object", zap.Int("reply_bytes", len(reply)))
		return nil, ErrFallbackNoJSON
	}

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackNoJSON, err)
	}
	if err := treeSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackSchema, err)
	}

	var tree struct {
		Topics []syllabus.Topic `json:"topics"`
	}
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackSchema, err)
	}
	if len(tree.Topics) == 0 {
		return nil, ErrFallbackEmpty
	}

	doc := &syllabus.Document{
		Subject:    req.Subject,
		Kind:       req.Kind,
		Category:   req.Category,
		GradeRange: req.GradeRange,
		Topics:     tree.Topics,
	}
	numberTree(doc)
	if moved := doc.FoldLeaves(); moved > 0 {
		f.log.Info("fallback leaves moved to the default bucket",
			zap.Int("moved", moved),
			zap.String("bucket", string(req.Kind.DefaultBucket())))
	}
	if violations := doc.CheckContainment(); len(violations) > 0 {
		f.log.Warn("fallback tree breaks numbering containment",
			zap.Int("violations", len(violations)),
			zap.Stringer("first", violations[0]))
	}
	return doc, nil
}

// numberTree fills empty Number fields from the leading numbering token of
// each name or statement when its level fits the node.
func numberTree(doc *syllabus.Document) {
	for ti := range doc.Topics {
		t := &doc.Topics[ti]
		if t.Number == "" {
			t.Number = leadingNumber(t.Name, LevelTopic)
		}
		for si := range t.Subtopics {
			s := &t.Subtopics[si]
			if s.Number == "" {
				s.Number = leadingNumber(s.Name, LevelSubtopic)
			}
			for oi := range s.Outcomes {
				o := &s.Outcomes[oi]
				if o.Number == "" {
					o.Number = leadingNumber(o.Statement, LevelOutcome)
				}
			}
		}
	}
}

func leadingNumber(caption string, want Level) string {
	m := numberPattern.FindStringSubmatch(strings.TrimSpace(caption))
	if m == nil {
		return ""
	}
	num := ParseNumbering(m[1])
	if num.Level() != want {
		return ""
	}
	return num.String()
}

// truncateOnLine cuts text to at most limit bytes, ending on a line break,
// or on a space when the budget holds no line break.
func truncateOnLine(text string, limit int) (string, bool) {
	if limit <= 0 || len(text) <= limit {
		return text, false
	}
	head := text[:limit]
	cut := strings.LastIndexByte(head, '\n')
	if cut <= 0 {
		cut = strings.LastIndexByte(head, ' ')
	}
	if cut <= 0 {
		cut = limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return strings.TrimRight(text[:cut], " \n"), true
}

const fallbackSystemPrompt = "You convert curriculum syllabus documents into structured data. " +
	"Reply with a single JSON object and nothing else: no explanation and no markdown."

func fallbackPrompt(req Request, text string) string {
	var b strings.Builder
	b.WriteString("Extract the topic hierarchy of this ")
	b.WriteString(string(req.Kind))
	b.WriteString(" syllabus for ")
	b.WriteString(req.Subject)
	if req.GradeRange != "" {
		b.WriteString(" (" + req.GradeRange + ")")
	}
	b.WriteString(".\n\nReturn JSON of this shape:\n")
	b.WriteString(`{"subject": string, "topics": [{"name": string, "subtopics": [{"name": string, "outcomes": [{"statement": string`)
	if req.Kind == syllabus.CompetencyBased {
		b.WriteString(`, "competences": [string], "learning_activities": [string], "expected_standards": [string]`)
	} else {
		b.WriteString(`, "knowledge": [string], "skills": [string], "values": [string]`)
	}
	b.WriteString("}]}]}]}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Keep the document's numbering at the start of every name and statement, e.g. \"10.1 General Physics\", \"10.1.1 Units\", \"10.1.1.1 Distinguish base and derived units\".\n")
	b.WriteString("- A subtopic number extends its topic number by one segment; an outcome number extends its subtopic number by one segment.\n")
	b.WriteString("- Copy content items verbatim; do not summarize or invent content.\n\n")
	b.WriteString("Document:\n")
	b.WriteString(text)
	return b.String()
}
