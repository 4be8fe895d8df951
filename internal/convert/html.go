package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// HTMLParser walks the DOM and emits sections for paragraphs, lists,
// preformatted blocks and tables under the enclosing h1-h6 path.
type HTMLParser struct{}

func (p *HTMLParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read html: %w", err)
	}
	if err := checkUTF8(data); err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	w := &htmlWalker{b: newSectionBuilder(uri)}
	w.walk(root)
	w.flushInline()
	return w.b.documents(), nil
}

type htmlWalker struct {
	b      *sectionBuilder
	stack  headingStack
	inline strings.Builder
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.inline.WriteString(n.Data)
		w.inline.WriteString(" ")
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			if n.DataAtom == atom.Head {
				if t := findFirst(n, atom.Title); t != nil {
					w.b.setTitle(collapseSpace(textContent(t)))
				}
			}
			return
		case atom.P, atom.Blockquote, atom.Dd, atom.Dt, atom.Figcaption:
			w.flushInline()
			w.b.add(w.stack.path(), domain.SectionParagraph, collapseSpace(textContent(n)), 0)
			return
		case atom.Pre:
			w.flushInline()
			w.b.add(w.stack.path(), domain.SectionCode, textContent(n), 0)
			return
		case atom.Ul, atom.Ol:
			w.flushInline()
			var items []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Li {
					if item := collapseSpace(textContent(c)); item != "" {
						items = append(items, "- "+item)
					}
				}
			}
			w.b.add(w.stack.path(), domain.SectionList, strings.Join(items, "\n"), 0)
			return
		case atom.Table:
			w.flushInline()
			w.b.add(w.stack.path(), domain.SectionTable, tableText(n), 0)
			return
		case atom.Br:
			w.inline.WriteString("\n")
			return
		}
		if level := headingLevel(n.DataAtom); level > 0 {
			w.flushInline()
			title := collapseSpace(textContent(n))
			if title != "" {
				w.stack.push(level, title)
				w.b.setTitle(title)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// flushInline emits loose text that sits outside any block element.
func (w *htmlWalker) flushInline() {
	text := collapseSpace(w.inline.String())
	w.inline.Reset()
	w.b.add(w.stack.path(), domain.SectionParagraph, text, 0)
}

func tableText(table *html.Node) string {
	var rows []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, collapseSpace(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, " | "))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
	return strings.Join(rows, "\n")
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteString("\n")
		}
	}
	visit(n)
	return sb.String()
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}
