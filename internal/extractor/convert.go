// Package extractor converts uploaded syllabus files into text or tagged
// HTML for the parser.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoText is returned for files with no extractable text, such as
	// scanned PDFs.
	ErrNoText = errors.New("no text extracted")
)

// Format is the declared type of an uploaded document.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// FormatFromName infers the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".text", ".md":
		return FormatText, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
}

// Converted is the result of a conversion. HTML is set when the source
// kept table structure; Text is always set.
type Converted struct {
	Name   string
	Format Format
	Text   string
	HTML   string
	Pages  int
	Tables int
}

// Convert turns raw file bytes into text or tagged HTML. An empty format
// is inferred from name.
func Convert(name string, data []byte, format Format) (*Converted, error) {
	if format == "" {
		f, err := FormatFromName(name)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		out *Converted
		err error
	)
	switch format {
	case FormatDOCX:
		out, err = convertDOCX(data)
	case FormatPDF:
		out, err = convertPDF(data)
	case FormatText:
		out = &Converted{Text: decodeText(data), Pages: 1}
	case FormatHTML:
		html := decodeText(data)
		out = &Converted{Text: html, HTML: html, Pages: 1}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}
	if strings.TrimSpace(out.Text) == "" && out.HTML == "" {
		return nil, fmt.Errorf("convert %s: %w", name, ErrNoText)
	}
	out.Name = name
	out.Format = format
	return out, nil
}

// decodeText returns UTF-8 text, honouring a UTF-8 or UTF-16 byte order
// mark and replacing invalid sequences.
func decodeText(data []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\ufffd")
	}
	return string(out)
}
