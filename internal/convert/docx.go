package convert

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// DOCXParser reads word/document.xml. Paragraph styles Title and HeadingN
// drive the heading path, numbered paragraphs become lists and tables are
// rendered row by row.
type DOCXParser struct{}

func (p *DOCXParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	zr, err := openPackage(r)
	if err != nil {
		return nil, err
	}
	data, err := readNamedPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	b := newSectionBuilder(uri)
	b.setTitle(coreTitle(zr))
	if err := walkDocx(data, b); err != nil {
		return nil, err
	}
	return b.documents(), nil
}

func walkDocx(data []byte, b *sectionBuilder) error {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack      headingStack
		para       strings.Builder
		style      string
		isList     bool
		inText     bool
		listItems  []string
		tableDepth int
		cell       strings.Builder
		row        []string
		rows       []string
	)

	flushList := func() {
		if len(listItems) > 0 {
			b.add(stack.path(), domain.SectionList, strings.Join(listItems, "\n"), 0)
			listItems = nil
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse word/document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				if tableDepth == 0 {
					flushList()
					rows = nil
				}
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "p":
				para.Reset()
				style = ""
				isList = false
			case "pStyle":
				style = attr(t, "val")
			case "numPr":
				isList = true
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					if cell.Len() > 0 {
						cell.WriteString(" ")
					}
					cell.WriteString(text)
					continue
				}
				if level, ok := docxHeadingLevel(style); ok {
					flushList()
					stack.push(level, collapseSpace(text))
					if level == 0 {
						b.setTitle(text)
					}
					continue
				}
				if isList {
					listItems = append(listItems, "- "+text)
					continue
				}
				flushList()
				b.add(stack.path(), domain.SectionParagraph, text, 0)
			case "tc":
				if tableDepth == 1 {
					row = append(row, collapseSpace(cell.String()))
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					rows = append(rows, strings.Join(row, " | "))
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 {
					b.add(stack.path(), domain.SectionTable, strings.Join(rows, "\n"), 0)
				}
			}
		}
	}
	flushList()
	return nil
}

// docxHeadingLevel maps a paragraph style id to a heading level. Title is
// level 0 so that Heading1 nests beneath it.
func docxHeadingLevel(style string) (int, bool) {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 0, true
	}
	if rest, ok := strings.CutPrefix(s, "heading"); ok {
		level, err := strconv.Atoi(rest)
		if err == nil && level >= 1 && level <= 9 {
			return level, true
		}
	}
	return 0, false
}
