package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
		ok       bool
	}{
		{"report.pdf", FormatPDF, true},
		{"REPORT.PDF", FormatPDF, true},
		{"notes.docx", FormatDOCX, true},
		{"deck.pptx", FormatPPTX, true},
		{"sheet.xlsx", FormatXLSX, true},
		{"page.html", FormatHTML, true},
		{"page.htm", FormatHTML, true},
		{"readme.md", FormatMarkdown, true},
		{"readme.markdown", FormatMarkdown, true},
		{"plain.txt", FormatText, true},
		{"archive.zip", "", false},
		{"noextension", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, ok := FormatFromFilename(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func TestDocument_HasContent(t *testing.T) {
	assert.False(t, (&Document{}).HasContent())
	assert.False(t, (&Document{Sections: []Section{{Text: "  \n\t"}}}).HasContent())
	assert.True(t, (&Document{Sections: []Section{{Text: ""}, {Text: "hello"}}}).HasContent())
}

func TestValidateChunk(t *testing.T) {
	valid := Chunk{Text: "text", TokenCount: 10, Metadata: ChunkMetadata{Filename: "a.md"}}
	assert.NoError(t, ValidateChunk(&valid, 100))

	assert.Error(t, ValidateChunk(nil, 100))

	noText := valid
	noText.Text = ""
	assert.Error(t, ValidateChunk(&noText, 100))

	noFile := valid
	noFile.Metadata.Filename = ""
	assert.Error(t, ValidateChunk(&noFile, 100))

	tooLong := valid
	tooLong.TokenCount = 101
	assert.Error(t, ValidateChunk(&tooLong, 100))
}

func TestIngestStats_Add(t *testing.T) {
	var stats IngestStats
	stats.Add(FileStat{Filename: "a.md", Chunks: 3, Status: FileStatusSuccess})
	stats.Add(FileStat{Filename: "b.md", Chunks: 2, Status: FileStatusSuccess})
	stats.Add(FileStat{Filename: "a.md", Status: FileStatusSkipped})
	stats.Add(FileStat{Filename: "c.zip", Status: FileStatusFailed, Error: "unsupported"})

	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 5, stats.TotalChunks)
	assert.Equal(t, []string{"a.md"}, stats.SkippedFiles)
	assert.Equal(t, []string{"c.zip"}, stats.FailedFiles)
	assert.Len(t, stats.PerFile, 4)
}
