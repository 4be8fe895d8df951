package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a supported source document format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatPPTX     Format = "pptx"
	FormatXLSX     Format = "xlsx"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// SupportedFormats lists every format the converter accepts, in display order.
var SupportedFormats = []Format{
	FormatPDF, FormatDOCX, FormatPPTX, FormatXLSX, FormatMarkdown, FormatHTML, FormatText,
}

// FormatFromFilename derives a format hint from a file extension. The second
// return value is false when the extension is not supported.
func FormatFromFilename(name string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "htm", "xhtml":
		ext = "html"
	case "markdown":
		ext = "md"
	case "text":
		ext = "txt"
	}
	for _, f := range SupportedFormats {
		if string(f) == ext {
			return f, true
		}
	}
	return "", false
}

// SectionKind describes what a section holds
type SectionKind string

const (
	SectionParagraph SectionKind = "paragraph"
	SectionTable     SectionKind = "table"
	SectionList      SectionKind = "list"
	SectionCode      SectionKind = "code"
)

// Section is one structural unit of a converted document: a block of text
// under a heading path, a table, a slide, a sheet or a page.
type Section struct {
	Headings []string
	Kind     SectionKind
	Text     string
	Page     int // 0 when the format has no pages
}

// Document is a converted source file
type Document struct {
	ID         string
	Path       string
	Filename   string
	Format     Format
	Title      string
	Sections   []Section
	IngestedAt time.Time
}

// HasContent reports whether any section carries non-blank text.
func (d *Document) HasContent() bool {
	for _, s := range d.Sections {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}
