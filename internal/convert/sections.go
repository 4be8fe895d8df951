package convert

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Metadata keys set by the parsers on every emitted eino document.
const (
	MetaKeyHeadings = "headings"
	MetaKeyKind     = "kind"
	MetaKeyPage     = "page"
	MetaKeyTitle    = "title"
)

// sectionBuilder accumulates sections in document order.
type sectionBuilder struct {
	uri      string
	title    string
	sections []domain.Section
}

func newSectionBuilder(uri string) *sectionBuilder {
	return &sectionBuilder{uri: uri}
}

func (b *sectionBuilder) add(headings []string, kind domain.SectionKind, text string, page int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.sections = append(b.sections, domain.Section{
		Headings: append([]string(nil), headings...),
		Kind:     kind,
		Text:     text,
		Page:     page,
	})
}

// setTitle keeps the first non-empty title seen.
func (b *sectionBuilder) setTitle(title string) {
	if b.title == "" {
		b.title = strings.TrimSpace(title)
	}
}

func (b *sectionBuilder) documents() []*schema.Document {
	docs := make([]*schema.Document, 0, len(b.sections))
	for i, s := range b.sections {
		meta := map[string]any{
			MetaKeyHeadings: s.Headings,
			MetaKeyKind:     string(s.Kind),
			MetaKeyPage:     s.Page,
		}
		if i == 0 && b.title != "" {
			meta[MetaKeyTitle] = b.title
		}
		docs = append(docs, &schema.Document{
			ID:       fmt.Sprintf("%s#%d", filepath.Base(b.uri), i),
			Content:  s.Text,
			MetaData: meta,
		})
	}
	return docs
}

func sectionFromDocument(d *schema.Document) domain.Section {
	section := domain.Section{Text: d.Content, Kind: domain.SectionParagraph}
	if d.MetaData == nil {
		return section
	}
	switch h := d.MetaData[MetaKeyHeadings].(type) {
	case []string:
		section.Headings = h
	case []any:
		for _, v := range h {
			if s, ok := v.(string); ok {
				section.Headings = append(section.Headings, s)
			}
		}
	}
	if kind, ok := d.MetaData[MetaKeyKind].(string); ok && kind != "" {
		section.Kind = domain.SectionKind(kind)
	}
	if page, ok := d.MetaData[MetaKeyPage].(int); ok {
		section.Page = page
	}
	return section
}

func titleFromFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// headingStack tracks the current heading path by level (1-based).
type headingStack struct {
	levels []int
	titles []string
}

func (h *headingStack) push(level int, title string) {
	for len(h.levels) > 0 && h.levels[len(h.levels)-1] >= level {
		h.levels = h.levels[:len(h.levels)-1]
		h.titles = h.titles[:len(h.titles)-1]
	}
	h.levels = append(h.levels, level)
	h.titles = append(h.titles, title)
}

func (h *headingStack) path() []string {
	return h.titles
}

func checkUTF8(data []byte) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("content is not valid UTF-8 text")
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
