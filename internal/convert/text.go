package convert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// TextParser emits one paragraph section per blank-line separated block.
type TextParser struct{}

func (p *TextParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	if err := checkUTF8(data); err != nil {
		return nil, err
	}

	b := newSectionBuilder(uri)
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, block := range strings.Split(text, "\n\n") {
		b.add(nil, domain.SectionParagraph, block, 0)
	}
	return b.documents(), nil
}
