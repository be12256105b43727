package parser

import (
	"strings"
	"unicode"

	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// leadWords is how many leading words the classifier inspects.
const leadWords = 3

// Rule routes content whose leading words start with any keyword to Bucket.
// Keywords are lower-case stems; multi-word keywords match a phrase.
type Rule struct {
	Bucket   syllabus.Bucket
	Keywords []string
}

var outcomeBasedRules = []Rule{
	{Bucket: syllabus.BucketValues, Keywords: []string{
		"apprecia", "valu", "respect", "care for", "caring", "concern", "cooperat", "co-operat",
		"toleran", "honest", "integrity", "responsib", "awareness", "aware", "patien", "curios",
		"confiden", "love", "enjoy", "commit", "teamwork", "fairness", "empath",
	}},
	{Bucket: syllabus.BucketSkills, Keywords: []string{
		"observ", "measur", "calculat", "demonstrat", "draw", "construct", "plot", "sketch",
		"perform", "handl", "manipulat", "experiment", "determin", "solv", "apply", "investigat",
		"conduct", "operat", "record", "classif", "compar", "communicat", "interpret", "analys",
		"analyz", "predict", "estimat", "read", "writ", "design", "prepar", "test",
	}},
}

var competencyBasedRules = []Rule{
	{Bucket: syllabus.BucketCompetence, Keywords: []string{
		"explain", "describ", "defin", "identif", "state", "outline", "discuss", "recogni",
		"list", "name", "mention", "distinguish", "understand", "know",
	}},
	{Bucket: syllabus.BucketActivity, Keywords: []string{
		"demonstrat", "investigat", "practical", "experiment", "carry out", "conduct", "observ",
		"perform", "role play", "group", "visit", "field trip", "project", "research", "collect",
		"model", "simulat", "brainstorm", "debate", "watch", "explor",
	}},
}

// Classifier assigns a content line to one of the kind's leaf buckets. Rules
// are tried in order and the first match wins; unmatched content goes to the
// kind's default bucket.
type Classifier struct {
	kind  syllabus.CurriculumKind
	rules []Rule
}

// NewClassifier returns the built-in rules for kind with extra rules tried
// first. Extra rules naming a bucket the kind does not use are dropped.
func NewClassifier(kind syllabus.CurriculumKind, extra ...Rule) *Classifier {
	base := outcomeBasedRules
	if kind == syllabus.CompetencyBased {
		base = competencyBasedRules
	}
	rules := make([]Rule, 0, len(extra)+len(base))
	for _, r := range extra {
		if hasBucket(kind, r.Bucket) {
			rules = append(rules, r)
		}
	}
	rules = append(rules, base...)
	return &Classifier{kind: kind, rules: rules}
}

// Classify returns the bucket for text.
func (c *Classifier) Classify(text string) syllabus.Bucket {
	lead := leadingWords(text, leadWords)
	if len(lead) == 0 {
		return c.kind.DefaultBucket()
	}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if matchKeyword(lead, kw) {
				return rule.Bucket
			}
		}
	}
	return c.kind.DefaultBucket()
}

// matchKeyword reports whether any leading word starts with a single-word
// keyword, or the leading phrase contains a multi-word keyword at a word start.
func matchKeyword(lead []string, kw string) bool {
	if !strings.Contains(kw, " ") {
		for _, w := range lead {
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
		return false
	}
	for i := range lead {
		if strings.HasPrefix(strings.Join(lead[i:], " "), kw) {
			return true
		}
	}
	return false
}

func hasBucket(kind syllabus.CurriculumKind, b syllabus.Bucket) bool {
	for _, kb := range kind.Buckets() {
		if kb == b {
			return true
		}
	}
	return false
}

func leadingWords(text string, n int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '-')
	})
	if len(fields) > n {
		fields = fields[:n]
	}
	return fields
}
