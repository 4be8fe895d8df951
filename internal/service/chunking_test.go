package service

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
)

func testDocument(sections ...domain.Section) *domain.Document {
	return &domain.Document{
		ID:       "doc-1",
		Filename: "guide.md",
		Title:    "guide",
		Sections: sections,
	}
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 2, CountTokens("hello world"))
	assert.Equal(t, 12001, CountTokens(strings.Repeat("a ", 12000)))
	assert.Equal(t, 24000, CountTokens(strings.Repeat("1 2 3 4 5 6 7 8 9 0 ", 1200)))
	assert.NotPanics(t, func() { assert.Positive(t, CountTokens("<|endoftext|>")) })
}

func TestChunker_StaysUnderEmbeddingInputLimit(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: config.EmbeddingInputLimit})

	tests := []struct {
		name string
		text string
	}{
		{"spaced letters", strings.Repeat("a ", 12000)},
		{"spaced digits", strings.Repeat("1 2 3 4 5 6 7 8 9 0 ", 1200)},
		{"dense code", strings.Repeat("x=1;", 6000)},
		{"paragraphs", strings.Repeat("Token limits apply to the embedding input.\n\n", 1500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Greater(t, CountTokens(tt.text), config.EmbeddingInputLimit)

			chunks, err := c.Chunk(testDocument(domain.Section{Text: tt.text}))
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)

			for i, ch := range chunks {
				n := CountTokens(ch.Text)
				assert.LessOrEqual(t, n, config.EmbeddingInputLimit, "chunk %d over limit", i)
				assert.Equal(t, n, ch.TokenCount, "chunk %d token count", i)
				assert.NoError(t, domain.ValidateChunk(&ch, config.EmbeddingInputLimit))
			}
		})
	}
}

func TestChunker_OneChunkPerSection(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 200, MinTokens: 0})
	doc := testDocument(
		domain.Section{Headings: []string{"Intro"}, Text: "Hello world.", Page: 1},
		domain.Section{Headings: []string{"Intro", "Details"}, Text: "More detail here.", Page: 2},
	)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, "Hello world.", chunks[0].Text)
	assert.Equal(t, "guide.md", chunks[0].Metadata.Filename)
	assert.Equal(t, []int{1}, chunks[0].Metadata.PageNumbers)
	assert.Equal(t, "Intro", chunks[0].Metadata.Title)

	assert.Equal(t, 1, chunks[1].Position)
	assert.Equal(t, "Intro", chunks[1].Metadata.Title)
	assert.Equal(t, []string{"Intro", "Details"}, chunks[1].Metadata.Headings)
}

func TestChunker_TitleFallsBackToDocumentTitle(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())
	chunks, err := c.Chunk(testDocument(domain.Section{Text: "No headings at all."}))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "guide", chunks[0].Metadata.Title)
	assert.Empty(t, chunks[0].Metadata.PageNumbers)
}

func TestChunker_MergesSmallPeers(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 100, MinTokens: 20})
	doc := testDocument(
		domain.Section{Headings: []string{"A"}, Text: "short one", Page: 1},
		domain.Section{Headings: []string{"A"}, Text: "short two", Page: 2},
		domain.Section{Headings: []string{"B"}, Text: "different heading"},
	)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "short one\n\nshort two", chunks[0].Text)
	assert.Equal(t, []int{1, 2}, chunks[0].Metadata.PageNumbers)
	assert.Equal(t, "different heading", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestChunker_DoesNotMergePastLimit(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 20, MinTokens: 10})
	doc := testDocument(
		domain.Section{Headings: []string{"A"}, Text: strings.TrimSpace(strings.Repeat("word ", 19))},
		domain.Section{Headings: []string{"A"}, Text: "tiny"},
	)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestChunker_SplitsOversizeSection(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 50, MinTokens: 10, OverlapTokens: 10})
	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, "This paragraph talks about topic number "+strings.Repeat("x", i)+" in detail.")
	}
	doc := testDocument(domain.Section{Headings: []string{"Long"}, Text: strings.Join(paragraphs, "\n\n"), Page: 4})

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, CountTokens(ch.Text), 50, "chunk %d over limit", i)
		assert.Equal(t, ch.TokenCount, CountTokens(ch.Text))
		assert.Equal(t, i, ch.Position)
		assert.Equal(t, []int{4}, ch.Metadata.PageNumbers)
		assert.Equal(t, "Long", ch.Metadata.Title)
	}
	assert.True(t, strings.HasPrefix(chunks[0].Text, "This paragraph talks about topic number  in detail."))
}

func TestChunker_OverlapRepeatsTail(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 30, OverlapTokens: 8})
	vocab := strings.Fields("time year people way day man thing woman life child world school state family student group country problem hand part")
	words := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		words = append(words, vocab[i%len(vocab)])
	}
	doc := testDocument(domain.Section{Text: strings.Join(words, " ")})

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	shared := 0
	for k := min(len(first), len(second)) - 1; k > 0; k-- {
		if slices.Equal(first[len(first)-k:], second[:k]) {
			shared = k
			break
		}
	}
	assert.Positive(t, shared, "second chunk should start with the first chunk's tail")
	assert.Less(t, shared, len(first))
}

func TestChunker_HardCutsUnbrokenText(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 10})
	doc := testDocument(domain.Section{Text: strings.Repeat("é", 95)})

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 10)
		total += len([]rune(ch.Text))
	}
	assert.Equal(t, 95, total)
}

func TestChunker_EmptyDocument(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	_, err := c.Chunk(testDocument(domain.Section{Text: "   "}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChunking)
	assert.Contains(t, err.Error(), "guide.md")

	_, err = c.Chunk(nil)
	assert.ErrorIs(t, err, domain.ErrChunking)
}

func TestChunkConfig_Normalized(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxTokens: 100000, OverlapTokens: -1})
	assert.Equal(t, config.EmbeddingInputLimit, c.MaxTokens())

	c = NewChunker(ChunkConfig{})
	assert.Equal(t, DefaultChunkConfig().MaxTokens, c.MaxTokens())
}
