package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cell is one table cell: its normalized lines plus the inner markup, which
// keeps list structure for bullet splitting.
type Cell struct {
	Text []string
	Raw  string
}

// Row is one table row in document order.
type Row struct {
	Cells []Cell
}

// NormalizeHTML returns every innermost table row of the markup with its
// cells normalized. Rows that wrap a nested table are skipped; the nested
// rows are returned instead.
func (n Normalizer) NormalizeHTML(markup string) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []Row
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("table").Length() > 0 {
			return
		}
		var row Row
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			raw, _ := td.Html()
			row.Cells = append(row.Cells, Cell{
				Text: n.NormalizeText(selectionText(td)),
				Raw:  raw,
			})
		})
		if len(row.Cells) > 0 {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

// HTMLText renders the markup as line-oriented text: block elements and
// table cells start new lines, list items become bullet lines.
func HTMLText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return selectionText(doc.Selection), nil
}

func selectionText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			renderText(&b, c)
		}
	}
	return b.String()
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		case atom.Li:
			b.WriteString("\n" + bullet + " ")
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block || (n.Type == html.ElementNode && n.DataAtom == atom.Li) {
		b.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Table, atom.Tr, atom.Td, atom.Th, atom.Ul, atom.Ol,
		atom.Section, atom.Article, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}

// splitBullets splits a content cell into items. List items in the markup
// win; otherwise bullet lines start items and other lines continue the
// current one.
func (n Normalizer) splitBullets(cell Cell) []string {
	if strings.Contains(strings.ToLower(cell.Raw), "<li") {
		if items := n.listItems(cell.Raw); len(items) > 0 {
			return items
		}
	}

	var items []string
	for _, line := range cell.Text {
		if text, ok := stripBullet(line); ok {
			if text != "" {
				items = append(items, text)
			}
			continue
		}
		if len(items) == 0 {
			items = append(items, line)
			continue
		}
		items[len(items)-1] += " " + line
	}
	return items
}

func (n Normalizer) listItems(raw string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	var items []string
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		var b strings.Builder
		for _, node := range li.Nodes {
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				// Nested lists are visited as their own items.
				if c.DataAtom == atom.Ul || c.DataAtom == atom.Ol {
					continue
				}
				renderText(&b, c)
			}
		}
		lines := n.NormalizeText(b.String())
		for i, line := range lines {
			if text, ok := stripBullet(line); ok {
				lines[i] = text
			}
		}
		if text := strings.TrimSpace(strings.Join(lines, " ")); text != "" {
			items = append(items, text)
		}
	})
	return items
}
