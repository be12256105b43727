package parser

import (
	"go.uber.org/zap"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// UnitKind tags a ParseUnit.
type UnitKind int

const (
	UnitIgnore UnitKind = iota
	UnitTopic
	UnitSubtopic
	UnitOutcome
	UnitContent
)

// ParseUnit is one tokenized input unit. Both the line adapter and the table
// adapter produce these for the same Builder.
type ParseUnit struct {
	Kind   UnitKind
	Number Numbering
	Text   string
	// Bucket forces the content bucket; empty means classify.
	Bucket syllabus.Bucket
}

// caption is the stored node name: number, then text.
func (u ParseUnit) caption() string {
	return Token{Kind: TokenNumbered, Number: u.Number, Text: u.Text}.Caption()
}

// structuralUnit maps a numbering level to its unit kind.
func structuralUnit(num Numbering, text string) ParseUnit {
	switch num.Level() {
	case LevelTopic:
		return ParseUnit{Kind: UnitTopic, Number: num, Text: text}
	case LevelSubtopic:
		return ParseUnit{Kind: UnitSubtopic, Number: num, Text: text}
	case LevelOutcome:
		return ParseUnit{Kind: UnitOutcome, Number: num, Text: text}
	}
	return ParseUnit{Kind: UnitIgnore}
}

// Stats counts what the builder did with its input.
type Stats struct {
	Units     int `json:"units"`
	Topics    int `json:"topics"`
	Subtopics int `json:"subtopics"`
	Outcomes  int `json:"outcomes"`
	Leaves    int `json:"leaves"`
	Reused    int `json:"reused"`
	Orphans   int `json:"orphans"`
	Rejected  int `json:"rejected"`
	Ignored   int `json:"ignored"`
}

// Builder is the tree-building state machine. The current Topic, Subtopic
// and Outcome are indexes into the tree (-1 when closed). A Builder is used
// for a single document and is not safe for concurrent use.
type Builder struct {
	kind syllabus.CurriculumKind
	tok  *Tokenizer
	cls  *Classifier
	log  *zap.Logger

	topics     []syllabus.Topic
	curTopic   int
	curSub     int
	curOutcome int
	// detached is set after a rejected structural unit; content is orphaned
	// until the next accepted one.
	detached bool

	// pending holds a number-only line waiting for its caption.
	pending *Numbering

	stats Stats
}

// NewBuilder returns an empty builder.
func NewBuilder(kind syllabus.CurriculumKind, tok *Tokenizer, cls *Classifier, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		kind:       kind,
		tok:        tok,
		cls:        cls,
		log:        log,
		curTopic:   -1,
		curSub:     -1,
		curOutcome: -1,
	}
}

// Stats returns the counters so far.
func (b *Builder) Stats() Stats { return b.stats }

// Apply feeds one unit to the state machine.
func (b *Builder) Apply(u ParseUnit) {
	b.stats.Units++
	switch u.Kind {
	case UnitTopic:
		b.openTopic(u)
	case UnitSubtopic:
		b.openSubtopic(u)
	case UnitOutcome:
		b.openOutcome(u)
	case UnitContent:
		b.addContent(u)
	default:
		b.stats.Ignored++
	}
}

func (b *Builder) openTopic(u ParseUnit) {
	name := u.caption()
	b.curOutcome, b.detached = -1, false
	for i := range b.topics {
		if b.topics[i].Name == name {
			// Repeating the open topic's label (a merged table cell) keeps
			// its subtopic open; switching topics closes it.
			if i != b.curTopic {
				b.curSub = -1
			}
			b.curTopic = i
			b.stats.Reused++
			return
		}
	}
	b.curSub = -1
	b.topics = append(b.topics, syllabus.Topic{
		Number:    u.Number.String(),
		Name:      name,
		Subtopics: []syllabus.Subtopic{},
	})
	b.curTopic = len(b.topics) - 1
	b.stats.Topics++
}

func (b *Builder) openSubtopic(u ParseUnit) {
	if b.curTopic < 0 {
		b.reject(u, "no open topic")
		b.curSub, b.curOutcome = -1, -1
		return
	}
	topic := &b.topics[b.curTopic]
	if !u.Number.Extends(ParseNumbering(topic.Number)) {
		b.reject(u, "outside topic "+topic.Number)
		b.curSub, b.curOutcome = -1, -1
		return
	}

	name := u.caption()
	b.curOutcome, b.detached = -1, false
	for i := range topic.Subtopics {
		if topic.Subtopics[i].Name == name {
			b.curSub = i
			b.stats.Reused++
			return
		}
	}
	topic.Subtopics = append(topic.Subtopics, syllabus.Subtopic{
		Number:   u.Number.String(),
		Name:     name,
		Outcomes: []syllabus.Outcome{},
	})
	b.curSub = len(topic.Subtopics) - 1
	b.stats.Subtopics++
}

func (b *Builder) openOutcome(u ParseUnit) {
	sub := b.subtopic()
	if sub == nil {
		b.reject(u, "no open subtopic")
		return
	}
	if !u.Number.Extends(ParseNumbering(sub.Number)) {
		b.reject(u, "outside subtopic "+sub.Number)
		return
	}
	sub.Outcomes = append(sub.Outcomes, syllabus.Outcome{
		Number:    u.Number.String(),
		Statement: u.caption(),
	})
	b.curOutcome = len(sub.Outcomes) - 1
	b.detached = false
	b.stats.Outcomes++
}

func (b *Builder) addContent(u ParseUnit) {
	sub := b.subtopic()
	if sub == nil || b.detached || u.Text == "" {
		b.stats.Orphans++
		return
	}
	bucket := u.Bucket
	if bucket == "" {
		bucket = b.cls.Classify(u.Text)
	}
	leaves := &sub.Leaves
	if b.curOutcome >= 0 {
		leaves = &sub.Outcomes[b.curOutcome].Leaves
	}
	if !leaves.Add(bucket, u.Text) {
		leaves.Add(b.kind.DefaultBucket(), u.Text)
	}
	b.stats.Leaves++
}

// reject discards a structural unit whose parent is missing or whose number
// does not extend the parent's, and detaches following content.
func (b *Builder) reject(u ParseUnit, reason string) {
	b.stats.Rejected++
	b.curOutcome = -1
	b.detached = true
	b.log.Debug("structural line discarded",
		zap.String("number", u.Number.String()),
		zap.String("level", u.Number.Level().String()),
		zap.String("reason", reason))
}

func (b *Builder) subtopic() *syllabus.Subtopic {
	if b.curTopic < 0 || b.curSub < 0 {
		return nil
	}
	return &b.topics[b.curTopic].Subtopics[b.curSub]
}

// ==================== Line adapter ====================

// FeedLine tokenizes one normalized line and applies it. A number-only line
// is held until the next caption line; denylisted lines in between are
// skipped without releasing it.
func (b *Builder) FeedLine(line string) {
	tok := b.tok.Tokenize(line)
	switch tok.Kind {
	case TokenIgnore:
		b.Apply(ParseUnit{Kind: UnitIgnore})
	case TokenNumberOnly:
		b.flushPending()
		num := tok.Number
		b.pending = &num
	case TokenProse:
		if b.pending == nil {
			b.Apply(ParseUnit{Kind: UnitIgnore})
			return
		}
		num := *b.pending
		b.pending = nil
		b.Apply(structuralUnit(num, tok.Text))
	case TokenNumbered:
		b.flushPending()
		b.Apply(structuralUnit(tok.Number, tok.Text))
	case TokenContent:
		b.flushPending()
		b.Apply(ParseUnit{Kind: UnitContent, Text: tok.Text})
	}
}

// flushPending applies a held number with an empty caption.
func (b *Builder) flushPending() {
	if b.pending == nil {
		return
	}
	num := *b.pending
	b.pending = nil
	b.Apply(structuralUnit(num, ""))
}

// Finish flushes the pending number and returns the tree, or ErrNoTopics
// when nothing structural was found.
func (b *Builder) Finish() ([]syllabus.Topic, error) {
	b.flushPending()
	if len(b.topics) == 0 {
		return nil, syllabus.ErrNoTopics
	}
	return b.topics, nil
}
