package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// convertPDF extracts text page by page, one line per text row, so that
// numbering tokens keep their own lines where the layout allows. Scanned
// PDFs yield ErrNoText; OCR is not attempted.
func convertPDF(data []byte) (*Converted, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for pageIndex := 1; pageIndex <= numPages; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}
		text, err := pageText(p)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		buf.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			buf.WriteByte('\n')
		}
	}

	if strings.TrimSpace(buf.String()) == "" {
		return nil, fmt.Errorf("%w: %d pages, none with text (scanned PDF?)", ErrNoText, numPages)
	}
	return &Converted{Text: buf.String(), Pages: numPages}, nil
}

// pageText prefers row-ordered text and falls back to the plain text stream.
func pageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err == nil && len(rows) > 0 {
		var b strings.Builder
		for _, row := range rows {
			line := joinRow(row.Content)
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return p.GetPlainText(nil)
}

// joinRow concatenates the glyph runs of one row, inserting a space where
// the horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts pdf.TextHorizontal) string {
	var b strings.Builder
	var prevEnd float64
	for i, t := range texts {
		if i > 0 && t.X-prevEnd > t.FontSize*0.15 && !strings.HasPrefix(t.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
