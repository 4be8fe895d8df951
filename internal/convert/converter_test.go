package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cloo-solutions/docqa/internal/domain"
)

type mockRunner struct {
	output []byte
	err    error
	calls  [][]string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newConverter(t *testing.T, opts ...Option) *Converter {
	t.Helper()
	c, err := New(context.Background(), opts...)
	require.NoError(t, err)
	return c
}

const sampleMarkdown = `# Employee Handbook

Welcome to the **company**. See [the wiki](https://wiki.example.com).

## Leave Policy

Employees receive 25 days of paid leave per year.

- Carry over up to 5 days
- Requests need manager approval

## Benefits

| Benefit | Value |
|---------|-------|
| Health  | Full  |

` + "```go\nfmt.Println(\"hi\")\n```\n"

func TestConvert_Markdown(t *testing.T) {
	c := newConverter(t)
	path := writeFile(t, "handbook.md", []byte(sampleMarkdown))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "handbook.md", doc.Filename)
	assert.Equal(t, domain.FormatMarkdown, doc.Format)
	assert.Equal(t, "Employee Handbook", doc.Title)
	assert.NotEmpty(t, doc.ID)
	require.Len(t, doc.Sections, 5)

	assert.Equal(t, []string{"Employee Handbook"}, doc.Sections[0].Headings)
	assert.Equal(t, "Welcome to the company. See the wiki.", doc.Sections[0].Text)

	assert.Equal(t, []string{"Employee Handbook", "Leave Policy"}, doc.Sections[1].Headings)
	assert.Contains(t, doc.Sections[1].Text, "25 days")

	assert.Equal(t, domain.SectionList, doc.Sections[2].Kind)
	assert.Contains(t, doc.Sections[2].Text, "Carry over")

	assert.Equal(t, domain.SectionTable, doc.Sections[3].Kind)
	assert.Equal(t, []string{"Employee Handbook", "Benefits"}, doc.Sections[3].Headings)
	assert.Equal(t, "Benefit | Value\nHealth | Full", doc.Sections[3].Text)

	assert.Equal(t, domain.SectionCode, doc.Sections[4].Kind)
	assert.Equal(t, `fmt.Println("hi")`, doc.Sections[4].Text)
}

func TestConvert_MarkdownStructure(t *testing.T) {
	c := newConverter(t)
	src := "Guide\n=====\n\nIntro text.\n\nName | Value\n--- | ---\nport | 8080\n\n    go run .\n\n* 2 * 3 * 4 is math\n" +
		"\n1. first\n2. second\n   - nested\n"
	path := writeFile(t, "guide.md", []byte(src))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Guide", doc.Title)
	require.Len(t, doc.Sections, 5)
	for _, s := range doc.Sections {
		assert.Equal(t, []string{"Guide"}, s.Headings)
	}

	assert.Equal(t, "Intro text.", doc.Sections[0].Text)

	assert.Equal(t, domain.SectionTable, doc.Sections[1].Kind)
	assert.Equal(t, "Name | Value\nport | 8080", doc.Sections[1].Text)

	assert.Equal(t, domain.SectionCode, doc.Sections[2].Kind)
	assert.Equal(t, "go run .", doc.Sections[2].Text)

	assert.Equal(t, domain.SectionList, doc.Sections[3].Kind)
	assert.Equal(t, "- 2 * 3 * 4 is math", doc.Sections[3].Text)

	assert.Equal(t, domain.SectionList, doc.Sections[4].Kind)
	assert.Equal(t, "1. first\n2. second\n  - nested", doc.Sections[4].Text)
}

func TestConvert_UpperCaseExtension(t *testing.T) {
	c := newConverter(t)
	path := writeFile(t, "NOTES.Md", []byte("# Notes\n\nSome text."))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatMarkdown, doc.Format)
	require.Len(t, doc.Sections, 1)
}

func TestConvert_HTML(t *testing.T) {
	c := newConverter(t)
	page := `<html><head><title>Guide</title><style>p{}</style></head>
<body>
<h1>Install</h1>
<p>Run the   installer.</p>
<script>alert(1)</script>
<h2>Options</h2>
<ul><li>Fast</li><li>Safe</li></ul>
<table><tr><th>Flag</th><th>Meaning</th></tr><tr><td>-v</td><td>verbose</td></tr></table>
</body></html>`
	path := writeFile(t, "guide.html", []byte(page))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Guide", doc.Title)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "Run the installer.", doc.Sections[0].Text)
	assert.Equal(t, []string{"Install"}, doc.Sections[0].Headings)
	assert.Equal(t, domain.SectionList, doc.Sections[1].Kind)
	assert.Equal(t, "- Fast\n- Safe", doc.Sections[1].Text)
	assert.Equal(t, []string{"Install", "Options"}, doc.Sections[1].Headings)
	assert.Equal(t, "Flag | Meaning\n-v | verbose", doc.Sections[2].Text)
}

func TestConvert_Text(t *testing.T) {
	c := newConverter(t)
	path := writeFile(t, "notes.txt", []byte("first block\nstill first\n\nsecond block"))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "notes", doc.Title)
}

func TestConvert_DOCX(t *testing.T) {
	c := newConverter(t)
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Overview</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">The product </w:t></w:r><w:r><w:t>ships in May.</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t>First item</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t>Second item</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>B</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body></w:document>`
	core := `<?xml version="1.0"?><cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Roadmap</dc:title></cp:coreProperties>`
	path := writeFile(t, "roadmap.docx", buildZip(t, map[string]string{
		"word/document.xml": body,
		"docProps/core.xml": core,
	}))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Roadmap", doc.Title)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "The product ships in May.", doc.Sections[0].Text)
	assert.Equal(t, []string{"Overview"}, doc.Sections[0].Headings)
	assert.Equal(t, "- First item\n- Second item", doc.Sections[1].Text)
	assert.Equal(t, domain.SectionTable, doc.Sections[2].Kind)
	assert.Equal(t, "A | B", doc.Sections[2].Text)
}

func TestConvert_PPTX(t *testing.T) {
	c := newConverter(t)
	slide := func(title, body string) string {
		return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>
<p:sp><p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:txBody><a:p><a:r><a:t>` + title + `</a:t></a:r></a:p></p:txBody></p:sp>
<p:sp><p:txBody><a:p><a:r><a:t>` + body + `</a:t></a:r></a:p></p:txBody></p:sp>
</p:spTree></p:cSld></p:sld>`
	}
	path := writeFile(t, "deck.pptx", buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": slide("Summary", "Wrap up"),
		"ppt/slides/slide2.xml":  slide("Agenda", "Topics"),
		"ppt/slides/slide1.xml":  slide("Intro", "Hello"),
	}))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)

	assert.Equal(t, []string{"Intro"}, doc.Sections[0].Headings)
	assert.Equal(t, 1, doc.Sections[0].Page)
	assert.Equal(t, "Intro\nHello", doc.Sections[0].Text)
	assert.Equal(t, 2, doc.Sections[1].Page)
	assert.Equal(t, 10, doc.Sections[2].Page)
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Q1"))
	require.NoError(t, f.SetSheetRow("Q1", "A1", &[]any{"Item", "Cost", "Approved"}))
	require.NoError(t, f.SetSheetRow("Q1", "A2", &[]any{"Laptop", 1200, true}))
	require.NoError(t, f.SetSheetRow("Q1", "A4", &[]any{"Monitor", 300, false}))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "Renewal due in March"))
	require.NoError(t, f.SetDocProps(&excelize.DocProperties{Title: "Budget"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestConvert_XLSX(t *testing.T) {
	c := newConverter(t)
	path := writeFile(t, "budget.xlsx", buildWorkbook(t))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Budget", doc.Title)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, []string{"Q1"}, doc.Sections[0].Headings)
	assert.Equal(t, domain.SectionTable, doc.Sections[0].Kind)
	assert.Equal(t, "Item | Cost | Approved\nLaptop | 1200 | TRUE\nMonitor | 300 | FALSE", doc.Sections[0].Text)
	assert.Equal(t, []string{"Notes"}, doc.Sections[1].Headings)
	assert.Equal(t, "Renewal due in March", doc.Sections[1].Text)
}

func TestConvert_PDF(t *testing.T) {
	runner := &mockRunner{output: []byte("Quarterly Report\n\n  Revenue grew.  \f\fPage three text\n")}
	c := newConverter(t, WithCommandRunner(runner))
	path := writeFile(t, "report.pdf", []byte("%PDF-1.4\n..."))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pdftotext", runner.calls[0][0])
	assert.Equal(t, "Quarterly Report", doc.Title)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, 1, doc.Sections[0].Page)
	assert.Equal(t, "Quarterly Report\n\nRevenue grew.", doc.Sections[0].Text)
	assert.Equal(t, 3, doc.Sections[1].Page)
}

func TestConvert_PDFToolMissing(t *testing.T) {
	c := newConverter(t, WithCommandRunner(&mockRunner{err: ErrPDFToolNotFound}))
	path := writeFile(t, "report.pdf", []byte("%PDF-1.4\n..."))

	_, err := c.Convert(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversion)
	assert.Contains(t, err.Error(), "pdftotext")
}

func TestConvert_Errors(t *testing.T) {
	c := newConverter(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported extension", "image.png", []byte{0x89, 'P', 'N', 'G'}},
		{"corrupt docx", "broken.docx", []byte("not a zip")},
		{"corrupt xlsx", "broken.xlsx", []byte("not a zip")},
		{"corrupt pdf", "broken.pdf", []byte("garbage")},
		{"invalid utf-8 markdown", "bad.md", []byte{0xff, 0xfe, 0xfd}},
		{"docx without body", "empty.docx", buildZip(t, map[string]string{"other.xml": "<x/>"})},
		{"pptx without slides", "empty.pptx", buildZip(t, map[string]string{"other.xml": "<x/>"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.filename, tt.data)
			_, err := c.Convert(context.Background(), path)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConversion)
			assert.Contains(t, err.Error(), tt.filename)
		})
	}
}

func TestConvert_MissingFile(t *testing.T) {
	c := newConverter(t)
	_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "gone.md"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConversion))
}

func TestConvert_EmptyFileHasNoContent(t *testing.T) {
	c := newConverter(t)
	path := writeFile(t, "blank.md", []byte("\n\n   \n"))

	doc, err := c.Convert(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, doc.HasContent())
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := []struct {
		style   string
		level   int
		heading bool
	}{
		{"Heading1", 1, true},
		{"heading 3", 3, true},
		{"Title", 0, true},
		{"Normal", 0, false},
		{"HeadingX", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			level, ok := docxHeadingLevel(tt.style)
			assert.Equal(t, tt.heading, ok)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	c := newConverter(t)
	exts := c.SupportedExtensions()
	for _, want := range []string{".pdf", ".docx", ".pptx", ".xlsx", ".md", ".html", ".txt"} {
		assert.Contains(t, exts, want)
	}
}
