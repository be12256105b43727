package syllabus

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTopics is the structural failure: a full pass produced an empty tree.
var ErrNoTopics = errors.New("no topics extracted")

var (
	ErrMissingSubject  = errors.New("subject is required")
	ErrInvalidKind     = errors.New("curriculum kind must be competency-based or outcome-based")
	ErrInvalidCategory = errors.New("category must be early-childhood, primary or secondary")
)

// ==================== Enumerations ====================

// CurriculumKind selects the leaf-bucket schema of a syllabus.
type CurriculumKind string

const (
	CompetencyBased CurriculumKind = "competency-based"
	OutcomeBased    CurriculumKind = "outcome-based"
)

// ParseCurriculumKind accepts the canonical names and the cbc/obc abbreviations.
func ParseCurriculumKind(s string) (CurriculumKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "competency-based", "competency", "cbc":
		return CompetencyBased, nil
	case "outcome-based", "outcome", "obc":
		return OutcomeBased, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k CurriculumKind) Valid() bool {
	return k == CompetencyBased || k == OutcomeBased
}

// Buckets lists the leaf buckets legal for the kind, in classification priority order.
func (k CurriculumKind) Buckets() []Bucket {
	if k == CompetencyBased {
		return []Bucket{BucketCompetence, BucketActivity, BucketStandard}
	}
	return []Bucket{BucketValues, BucketSkills, BucketKnowledge}
}

// DefaultBucket is where content lands when no keyword matches.
func (k CurriculumKind) DefaultBucket() Bucket {
	if k == CompetencyBased {
		return BucketStandard
	}
	return BucketKnowledge
}

// StatementLabel names the Outcome statement for this kind.
func (k CurriculumKind) StatementLabel() string {
	if k == CompetencyBased {
		return "specific competence"
	}
	return "specific outcome"
}

// Category is the optional education level.
type Category string

const (
	CategoryNone           Category = ""
	CategoryEarlyChildhood Category = "early-childhood"
	CategoryPrimary        Category = "primary"
	CategorySecondary      Category = "secondary"
)

func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return CategoryNone, nil
	case "early-childhood", "early childhood", "ecd", "ece":
		return CategoryEarlyChildhood, nil
	case "primary":
		return CategoryPrimary, nil
	case "secondary":
		return CategorySecondary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryEarlyChildhood, CategoryPrimary, CategorySecondary:
		return true
	}
	return false
}

// Bucket is the semantic classification of a leaf content string.
type Bucket string

const (
	BucketKnowledge  Bucket = "knowledge"
	BucketSkills     Bucket = "skills"
	BucketValues     Bucket = "values"
	BucketCompetence Bucket = "competence"
	BucketActivity   Bucket = "learning-activity"
	BucketStandard   Bucket = "expected-standard"
)

// ==================== Tree ====================

// Document is the root record of a parsed syllabus.
type Document struct {
	Subject    string         `json:"subject"`
	Kind       CurriculumKind `json:"curriculum_kind"`
	Category   Category       `json:"category,omitempty"`
	GradeRange string         `json:"grade_range,omitempty"`
	Topics     []Topic        `json:"topics"`
}

type Topic struct {
	Number    string     `json:"number,omitempty"`
	Name      string     `json:"name"`
	Subtopics []Subtopic `json:"subtopics"`
}

type Subtopic struct {
	Number   string    `json:"number,omitempty"`
	Name     string    `json:"name"`
	Outcomes []Outcome `json:"outcomes"`
	Leaves
}

// Outcome holds a specific outcome (outcome-based) or a specific
// competence (competency-based).
type Outcome struct {
	Number    string `json:"number,omitempty"`
	Statement string `json:"statement"`
	Leaves
}

// Leaves are the content buckets. Each raw string lives in exactly one of them.
type Leaves struct {
	Knowledge          []string `json:"knowledge,omitempty"`
	Skills             []string `json:"skills,omitempty"`
	Values             []string `json:"values,omitempty"`
	Competences        []string `json:"competences,omitempty"`
	LearningActivities []string `json:"learning_activities,omitempty"`
	ExpectedStandards  []string `json:"expected_standards,omitempty"`
}

// Add appends text to the bucket. Unknown buckets are ignored and reported false.
func (l *Leaves) Add(b Bucket, text string) bool {
	dst := l.slot(b)
	if dst == nil {
		return false
	}
	*dst = append(*dst, text)
	return true
}

// Get returns the contents of one bucket.
func (l Leaves) Get(b Bucket) []string {
	if dst := l.slot(b); dst != nil {
		return *dst
	}
	return nil
}

var allBuckets = []Bucket{
	BucketKnowledge, BucketSkills, BucketValues,
	BucketCompetence, BucketActivity, BucketStandard,
}

func (l *Leaves) slot(b Bucket) *[]string {
	switch b {
	case BucketKnowledge:
		return &l.Knowledge
	case BucketSkills:
		return &l.Skills
	case BucketValues:
		return &l.Values
	case BucketCompetence:
		return &l.Competences
	case BucketActivity:
		return &l.LearningActivities
	case BucketStandard:
		return &l.ExpectedStandards
	}
	return nil
}

// Fold moves strings held in buckets the kind does not use into its default
// bucket, keeping their order, and returns how many moved.
func (l *Leaves) Fold(k CurriculumKind) int {
	if !k.Valid() {
		return 0
	}
	legal := make(map[Bucket]bool)
	for _, b := range k.Buckets() {
		legal[b] = true
	}
	def := l.slot(k.DefaultBucket())
	moved := 0
	for _, b := range allBuckets {
		if legal[b] {
			continue
		}
		src := l.slot(b)
		*def = append(*def, *src...)
		moved += len(*src)
		*src = nil
	}
	return moved
}

// Len is the total number of leaf strings across all buckets.
func (l Leaves) Len() int {
	return len(l.Knowledge) + len(l.Skills) + len(l.Values) +
		len(l.Competences) + len(l.LearningActivities) + len(l.ExpectedStandards)
}

// ==================== Validation ====================

// Validate checks the record-level invariants a store would enforce.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Subject) == "" {
		return ErrMissingSubject
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}
	if len(d.Topics) == 0 {
		return ErrNoTopics
	}
	return nil
}

// FoldLeaves applies Leaves.Fold with the document's kind to every subtopic
// and outcome.
func (d *Document) FoldLeaves() int {
	moved := 0
	for ti := range d.Topics {
		for si := range d.Topics[ti].Subtopics {
			sub := &d.Topics[ti].Subtopics[si]
			moved += sub.Fold(d.Kind)
			for oi := range sub.Outcomes {
				moved += sub.Outcomes[oi].Fold(d.Kind)
			}
		}
	}
	return moved
}

// Counts returns the number of topics, subtopics and outcomes in the tree.
func (d *Document) Counts() (topics, subtopics, outcomes int) {
	topics = len(d.Topics)
	for _, t := range d.Topics {
		subtopics += len(t.Subtopics)
		for _, s := range t.Subtopics {
			outcomes += len(s.Outcomes)
		}
	}
	return topics, subtopics, outcomes
}

// ContainmentViolation describes a child whose number does not extend its parent's.
type ContainmentViolation struct {
	Parent string
	Child  string
}

func (v ContainmentViolation) String() string {
	return fmt.Sprintf("%s is not contained in %s", v.Child, v.Parent)
}

// CheckContainment lists every numbered child that does not extend its
// parent's number by exactly one segment. Unnumbered nodes are skipped.
func (d *Document) CheckContainment() []ContainmentViolation {
	var out []ContainmentViolation
	for _, t := range d.Topics {
		for _, s := range t.Subtopics {
			if t.Number != "" && s.Number != "" && !extendsNumber(t.Number, s.Number) {
				out = append(out, ContainmentViolation{Parent: t.Number, Child: s.Number})
			}
			for _, o := range s.Outcomes {
				if s.Number != "" && o.Number != "" && !extendsNumber(s.Number, o.Number) {
					out = append(out, ContainmentViolation{Parent: s.Number, Child: o.Number})
				}
			}
		}
	}
	return out
}

func extendsNumber(parent, child string) bool {
	p := strings.Split(parent, ".")
	c := strings.Split(child, ".")
	if len(c) != len(p)+1 {
		return false
	}
	for i := range p {
		if p[i] != c[i] {
			return false
		}
	}
	return true
}

// FindSubtopic looks a subtopic up by number ("10.1.1") or by exact name.
func (d *Document) FindSubtopic(ref string) (*Topic, *Subtopic, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil, false
	}
	for ti := range d.Topics {
		t := &d.Topics[ti]
		for si := range t.Subtopics {
			s := &t.Subtopics[si]
			if s.Number == ref || s.Name == ref {
				return t, s, true
			}
		}
	}
	return nil, nil, false
}
