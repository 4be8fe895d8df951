// Package convert turns uploaded files into structured documents.
//
// Files are loaded with the eino file loader; an eino ExtParser dispatches on
// the file extension to one parser per format. Every parser emits one eino
// document per section, carrying the section's heading path, kind and page in
// its metadata.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Converter converts files on disk into domain documents.
type Converter struct {
	loader *file.FileLoader
}

// Option configures a Converter.
type Option func(*options)

type options struct {
	runner CommandRunner
}

// WithCommandRunner replaces the runner used to invoke external tools (pdftotext).
func WithCommandRunner(r CommandRunner) Option {
	return func(o *options) {
		if r != nil {
			o.runner = r
		}
	}
}

// New creates a Converter with a parser registered for every supported format.
func New(ctx context.Context, opts ...Option) (*Converter, error) {
	o := &options{runner: execRunner{}}
	for _, opt := range opts {
		opt(o)
	}

	byFormat := map[domain.Format]parser.Parser{
		domain.FormatMarkdown: &MarkdownParser{},
		domain.FormatHTML:     &HTMLParser{},
		domain.FormatText:     &TextParser{},
		domain.FormatDOCX:     &DOCXParser{},
		domain.FormatPPTX:     &PPTXParser{},
		domain.FormatXLSX:     &XLSXParser{},
		domain.FormatPDF:      NewPDFParser(o.runner),
	}

	parsers := make(map[string]parser.Parser)
	for format, p := range byFormat {
		for _, ext := range extensionsFor(format) {
			parsers[ext] = p
			parsers[strings.ToUpper(ext)] = p
		}
	}

	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        parsers,
		FallbackParser: caseFoldParser{parsers: parsers},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ext parser: %w", err)
	}

	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file loader: %w", err)
	}

	return &Converter{loader: loader}, nil
}

// Convert loads and parses the file at path. Unsupported extensions and
// unreadable or corrupt files fail with a conversion error naming the file.
func (c *Converter) Convert(ctx context.Context, path string) (*domain.Document, error) {
	filename := filepath.Base(path)

	format, ok := domain.FormatFromFilename(filename)
	if !ok {
		return nil, domain.NewConversionError(filename, domain.ErrUnsupportedFormat)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, domain.NewConversionError(filename, err)
	}

	docs, err := c.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return nil, domain.NewConversionError(filename, err)
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Path:       path,
		Filename:   filename,
		Format:     format,
		Title:      titleFromFilename(filename),
		IngestedAt: time.Now().UTC(),
	}

	for _, d := range docs {
		if d == nil {
			continue
		}
		if title, _ := d.MetaData[MetaKeyTitle].(string); title != "" {
			doc.Title = title
		}
		section := sectionFromDocument(d)
		if strings.TrimSpace(section.Text) == "" {
			continue
		}
		doc.Sections = append(doc.Sections, section)
	}

	return doc, nil
}

// SupportedExtensions lists the extensions the converter accepts, lower-case with a leading dot.
func (c *Converter) SupportedExtensions() []string {
	var exts []string
	for _, f := range domain.SupportedFormats {
		exts = append(exts, extensionsFor(f)...)
	}
	return exts
}

func extensionsFor(f domain.Format) []string {
	switch f {
	case domain.FormatHTML:
		return []string{".html", ".htm", ".xhtml"}
	case domain.FormatMarkdown:
		return []string{".md", ".markdown"}
	case domain.FormatText:
		return []string{".txt", ".text"}
	default:
		return []string{"." + string(f)}
	}
}

// caseFoldParser catches mixed-case extensions such as ".Md" that miss the
// exact-match lookup in the ext parser.
type caseFoldParser struct {
	parsers map[string]parser.Parser
}

func (c caseFoldParser) Parse(ctx context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	ext := strings.ToLower(filepath.Ext(uri))
	if p, ok := c.parsers[ext]; ok {
		return p.Parse(ctx, r, opts...)
	}
	return nil, fmt.Errorf("%w: %q", errUnsupported, ext)
}

var errUnsupported = errors.New("no parser for extension")
