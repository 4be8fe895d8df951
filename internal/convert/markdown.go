package convert

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/cloo-solutions/docqa/internal/domain"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownParser splits markdown into sections at headings, keeping code
// blocks, tables and lists as their own blocks. Inline markup is reduced to
// its text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}
	if err := checkUTF8(data); err != nil {
		return nil, err
	}

	w := &markdownWalker{src: data, b: newSectionBuilder(uri)}
	root := markdown.Parser().Parse(text.NewReader(data))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}
	return w.b.documents(), nil
}

type markdownWalker struct {
	src   []byte
	b     *sectionBuilder
	stack headingStack
}

func (w *markdownWalker) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		title := inlineText(n, w.src)
		if title == "" {
			return
		}
		w.stack.push(n.Level, title)
		w.b.setTitle(title)
	case *ast.Paragraph, *ast.TextBlock:
		w.b.add(w.stack.path(), domain.SectionParagraph, inlineText(n, w.src), 0)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.b.add(w.stack.path(), domain.SectionCode, blockLines(n, w.src), 0)
	case *ast.List:
		var sb strings.Builder
		writeList(&sb, n, w.src, 0)
		w.b.add(w.stack.path(), domain.SectionList, sb.String(), 0)
	case *extast.Table:
		w.b.add(w.stack.path(), domain.SectionTable, mdTableText(n, w.src), 0)
	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
	}
}

// inlineText concatenates the text of n's inline descendants.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	writeInline(&sb, n, src)
	return strings.TrimSpace(sb.String())
}

func writeInline(sb *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(c.Value)
		case *ast.AutoLink:
			sb.Write(c.Label(src))
		case *ast.RawHTML:
			// inline tags carry no text
		case *extast.TaskCheckBox:
			if c.IsChecked {
				sb.WriteString("[x] ")
			} else {
				sb.WriteString("[ ] ")
			}
		default:
			writeInline(sb, c, src)
		}
	}
}

func blockLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// writeList renders list items one per line with "- " or "N. " markers,
// nested lists indented by two spaces per level.
func writeList(sb *strings.Builder, list *ast.List, src []byte, depth int) {
	number := list.Start
	indent := strings.Repeat("  ", depth)
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if list.IsOrdered() {
			marker = strconv.Itoa(number) + ". "
			number++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				writeList(sb, sub, src, depth+1)
				continue
			}
			var line string
			switch c.(type) {
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				line = blockLines(c, src)
			default:
				line = inlineText(c, src)
			}
			if line == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(indent)
			if first {
				sb.WriteString(marker)
				first = false
			} else {
				sb.WriteString("  ")
			}
			sb.WriteString(line)
		}
	}
}

// mdTableText renders the header and body rows with cells joined by " | ".
func mdTableText(t *extast.Table, src []byte) string {
	var rows []string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		if strings.TrimSpace(strings.Join(cells, "")) != "" {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}
