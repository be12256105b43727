package extractor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// convertDOCX reads the main document part. Documents with tables become
// tagged HTML so row and cell structure survives; every document also gets
// a plain-text rendition with one paragraph per line.
func convertDOCX(data []byte) (*Converted, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	body, err := renderDOCX(content)
	if err != nil {
		// Malformed XML: fall back to tag stripping per paragraph.
		return &Converted{Text: strings.Join(splitDOCXParagraphs(content), "\n"), Pages: 1}, nil
	}

	out := &Converted{Text: body.text, Pages: 1, Tables: body.tables}
	if body.tables > 0 {
		out.HTML = "<html><body>" + body.html + "</body></html>"
	}
	return out, nil
}

type docxBody struct {
	text   string
	html   string
	tables int
}

// renderDOCX walks WordprocessingML: w:tbl, w:tr and w:tc map to table
// markup, w:p to paragraphs, w:br and w:cr to line breaks. Numbered or
// list-styled paragraphs are prefixed with a bullet.
func renderDOCX(content string) (docxBody, error) {
	var (
		body     docxBody
		markup   strings.Builder
		plain    strings.Builder
		para     strings.Builder
		depth    int
		listItem bool
		inText   bool
	)
	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return docxBody{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				body.tables++
				markup.WriteString("<table>")
			case "tr":
				markup.WriteString("<tr>")
			case "tc":
				markup.WriteString("<td>")
			case "p":
				depth++
				if depth == 1 {
					para.Reset()
					listItem = false
				}
			case "numPr":
				listItem = true
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" && strings.Contains(strings.ToLower(a.Value), "list") {
						listItem = true
					}
				}
			case "t":
				inText = true
			case "br", "cr":
				para.WriteByte('\n')
			case "tab":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				markup.WriteString("</table>")
			case "tr":
				markup.WriteString("</tr>")
			case "tc":
				markup.WriteString("</td>")
			case "p":
				depth--
				if depth > 0 {
					continue
				}
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if listItem {
					text = "• " + text
				}
				markup.WriteString("<p>")
				markup.WriteString(strings.ReplaceAll(html.EscapeString(text), "\n", "<br>"))
				markup.WriteString("</p>")
				plain.WriteString(text)
				plain.WriteByte('\n')
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	body.text = plain.String()
	body.html = markup.String()
	return body, nil
}

// splitDOCXParagraphs splits DOCX XML content by <w:p> paragraph tags
// and strips all XML tags from each paragraph.
func splitDOCXParagraphs(xmlStr string) []string {
	var paragraphs []string
	for _, part := range strings.Split(xmlStr, "<w:p") {
		cleaned := strings.TrimSpace(html.UnescapeString(stripTags(part)))
		if cleaned != "" {
			paragraphs = append(paragraphs, cleaned)
		}
	}
	return paragraphs
}

func stripTags(xmlStr string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range xmlStr {
		if r == '<' {
			inTag = true
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
