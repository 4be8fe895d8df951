package convert

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/cloo-solutions/docqa/internal/domain"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTXParser emits one section per slide. The slide number is the section's
// page and the title placeholder, when present, its heading.
type PPTXParser struct{}

func (p *PPTXParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	zr, err := openPackage(r)
	if err != nil {
		return nil, err
	}

	type slidePart struct {
		num  int
		name string
	}
	var slides []slidePart
	for _, f := range zr.File {
		m := slidePartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{num: n, name: f.Name})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("presentation has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	b := newSectionBuilder(uri)
	b.setTitle(coreTitle(zr))
	for _, s := range slides {
		data, err := readNamedPart(zr, s.name)
		if err != nil {
			return nil, err
		}
		title, paragraphs, err := slideText(data)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.num, err)
		}
		heading := title
		if heading == "" {
			heading = fmt.Sprintf("Slide %d", s.num)
		}
		b.add([]string{heading}, domain.SectionParagraph, strings.Join(paragraphs, "\n"), s.num)
	}
	return b.documents(), nil
}

// slideText returns the title placeholder text and every paragraph of the slide.
func slideText(data []byte) (string, []string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		title      string
		paragraphs []string
		para       strings.Builder
		inText     bool
		titleShape bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				titleShape = false
			case "ph":
				typ := attr(t, "type")
				titleShape = typ == "title" || typ == "ctrTitle"
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "br":
				para.WriteString(" ")
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
				text := collapseSpace(para.String())
				if text == "" {
					continue
				}
				if titleShape && title == "" {
					title = text
				}
				paragraphs = append(paragraphs, text)
			}
		}
	}
	return title, paragraphs, nil
}
