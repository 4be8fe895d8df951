package convert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/xuri/excelize/v2"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// XLSXParser renders every worksheet as a table section headed by the sheet
// name. Cells are read with their display formatting, so dates and numbers
// appear as they do in the workbook.
type XLSXParser struct{}

func (p *XLSXParser) Parse(_ context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("not a valid spreadsheet: %w", err)
	}
	defer f.Close()

	b := newSectionBuilder(uri)
	if props, err := f.GetDocProps(); err == nil && props != nil {
		b.setTitle(props.Title)
	}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		b.add([]string{sheet}, domain.SectionTable, sheetTable(rows), 0)
	}
	return b.documents(), nil
}

// sheetTable joins cells with " | " and drops rows without any text.
func sheetTable(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		empty := true
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				empty = false
			}
		}
		if !empty {
			lines = append(lines, strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n")
}
