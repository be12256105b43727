package parser

import (
	"github.com/thedmsonlineschool/edugen-backend/internal/syllabus"
)

// ExtractTables feeds table rows to b. Column positions are not trusted:
// every cell is tokenized on its own and the row's structure is read from
// the segment counts found. Rows without any structural signal are skipped.
func ExtractTables(rows []Row, b *Builder, n Normalizer) {
	for _, row := range rows {
		feedRow(row, b, n)
	}
}

func feedRow(row Row, b *Builder, n Normalizer) {
	var (
		topic, sub  *ParseUnit
		outcomes    []ParseUnit
		outcomeCell = -1
		lastSignal  = -1
	)
	for ci, cell := range row.Cells {
		for _, u := range cellUnits(cell, b.tok) {
			switch u.Kind {
			case UnitTopic:
				if topic == nil {
					topic = &u
					lastSignal = max(lastSignal, ci)
				}
			case UnitSubtopic:
				if sub == nil {
					sub = &u
					lastSignal = max(lastSignal, ci)
				}
			case UnitOutcome:
				if outcomeCell < 0 || outcomeCell == ci {
					outcomes = append(outcomes, u)
					outcomeCell = ci
					lastSignal = max(lastSignal, ci)
				}
			}
		}
	}
	if lastSignal < 0 {
		b.Apply(ParseUnit{Kind: UnitIgnore})
		return
	}

	if topic != nil {
		b.Apply(*topic)
	}
	if sub != nil {
		b.Apply(*sub)
	}
	for _, u := range outcomes {
		b.Apply(u)
	}

	if outcomeCell >= 0 && b.kind == syllabus.CompetencyBased {
		// The two cells after the competence are activities then standards.
		forced := []syllabus.Bucket{syllabus.BucketActivity, syllabus.BucketStandard}
		for i, bucket := range forced {
			ci := outcomeCell + 1 + i
			if ci >= len(row.Cells) {
				break
			}
			applyItems(row.Cells[ci], bucket, b, n)
		}
		return
	}
	for ci := lastSignal + 1; ci < len(row.Cells); ci++ {
		applyItems(row.Cells[ci], "", b, n)
	}
}

// applyItems splits a content cell into bullet items and applies each one.
func applyItems(cell Cell, bucket syllabus.Bucket, b *Builder, n Normalizer) {
	for _, item := range n.splitBullets(cell) {
		if b.tok.Tokenize(item).Kind == TokenIgnore {
			continue
		}
		b.Apply(ParseUnit{Kind: UnitContent, Text: item, Bucket: bucket})
	}
}

// cellUnits returns the structural units in one cell. A number-only line
// takes the next line as its caption, and prose following a numbered line
// continues that line's caption.
func cellUnits(cell Cell, tok *Tokenizer) []ParseUnit {
	var (
		units   []ParseUnit
		pending *Numbering
		// inList stops bullet-item prose from continuing a caption.
		inList bool
	)
	flush := func() {
		if pending != nil {
			units = append(units, structuralUnit(*pending, ""))
			pending = nil
		}
	}
	for _, line := range cell.Text {
		t := tok.Tokenize(line)
		switch t.Kind {
		case TokenNumberOnly:
			flush()
			num := t.Number
			pending = &num
			inList = false
		case TokenNumbered:
			flush()
			units = append(units, structuralUnit(t.Number, t.Text))
			inList = false
		case TokenProse:
			switch {
			case pending != nil:
				units = append(units, structuralUnit(*pending, t.Text))
				pending = nil
			case len(units) > 0 && !inList:
				last := &units[len(units)-1]
				if last.Text == "" {
					last.Text = t.Text
				} else {
					last.Text += " " + t.Text
				}
			}
		case TokenContent:
			flush()
			inList = true
		}
	}
	flush()

	out := units[:0]
	for _, u := range units {
		if u.Kind != UnitIgnore {
			out = append(out, u)
		}
	}
	return out
}
