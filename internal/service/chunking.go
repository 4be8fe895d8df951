package service

import (
	"slices"
	"strings"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkConfig controls chunking for document embeddings. Sizes are in
// cl100k_base tokens, the encoding of the embedding models.
type ChunkConfig struct {
	MaxTokens     int
	MinTokens     int
	OverlapTokens int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokens:     1024,
		MinTokens:     64,
		OverlapTokens: 48,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	def := DefaultChunkConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxTokens > config.EmbeddingInputLimit {
		c.MaxTokens = config.EmbeddingInputLimit
	}
	if c.MinTokens < 0 {
		c.MinTokens = 0
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxTokens {
		c.OverlapTokens = 0
	}
	return c
}

// Chunker splits converted documents along their structure: one chunk per
// section, oversize sections split on paragraph, line and word boundaries,
// undersize neighbours under the same headings merged back together.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) *Chunker {
	return &Chunker{cfg: cfg.normalized()}
}

// MaxTokens is the per-chunk token ceiling.
func (c *Chunker) MaxTokens() int {
	return c.cfg.MaxTokens
}

type chunkDraft struct {
	headings []string
	pages    []int
	text     string
	tokens   int
	split    bool
}

// Chunk returns the chunks of doc in document order. A document without
// chunkable text yields a chunking error.
func (c *Chunker) Chunk(doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil || !doc.HasContent() {
		name := ""
		if doc != nil {
			name = doc.Filename
		}
		return nil, domain.NewChunkingError(name)
	}

	var drafts []chunkDraft
	for _, section := range doc.Sections {
		text := strings.TrimSpace(section.Text)
		if text == "" {
			continue
		}
		var pages []int
		if section.Page > 0 {
			pages = []int{section.Page}
		}

		if tokens := CountTokens(text); tokens <= c.cfg.MaxTokens {
			drafts = append(drafts, chunkDraft{headings: section.Headings, pages: pages, text: text, tokens: tokens})
			continue
		}
		for _, piece := range c.splitText(text) {
			drafts = append(drafts, chunkDraft{
				headings: section.Headings,
				pages:    pages,
				text:     piece,
				tokens:   CountTokens(piece),
				split:    true,
			})
		}
	}

	drafts = c.mergePeers(drafts)
	if len(drafts) == 0 {
		return nil, domain.NewChunkingError(doc.Filename)
	}

	chunks := make([]domain.Chunk, 0, len(drafts))
	for i, d := range drafts {
		title := doc.Title
		if len(d.headings) > 0 {
			title = d.headings[0]
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Position:   i,
			Text:       d.text,
			TokenCount: d.tokens,
			Metadata: domain.ChunkMetadata{
				Filename:    doc.Filename,
				PageNumbers: d.pages,
				Title:       title,
				Headings:    d.headings,
			},
		})
	}
	return chunks, nil
}

// mergePeers joins adjacent drafts that share a heading path when either is
// below MinTokens and the union fits.
func (c *Chunker) mergePeers(drafts []chunkDraft) []chunkDraft {
	if c.cfg.MinTokens == 0 || len(drafts) < 2 {
		return drafts
	}
	merged := make([]chunkDraft, 0, len(drafts))
	for _, d := range drafts {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			small := prev.tokens < c.cfg.MinTokens || d.tokens < c.cfg.MinTokens
			if small && !prev.split && !d.split && slices.Equal(prev.headings, d.headings) {
				text := prev.text + "\n\n" + d.text
				if tokens := CountTokens(text); tokens <= c.cfg.MaxTokens {
					prev.text = text
					prev.tokens = tokens
					prev.pages = mergePages(prev.pages, d.pages)
					continue
				}
			}
		}
		merged = append(merged, d)
	}
	return merged
}

func mergePages(a, b []int) []int {
	out := append(append([]int(nil), a...), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

type atom struct {
	sep    string
	text   string
	tokens int
}

var splitSeparators = []string{"\n\n", "\n", " "}

// splitText packs atoms greedily into pieces of at most MaxTokens, seeding
// each new piece with the trailing OverlapTokens of the previous one.
func (c *Chunker) splitText(text string) []string {
	atoms := atomize(text, "", 0, c.cfg.MaxTokens)

	var (
		pieces []string
		cur    []atom
		budget int
	)
	emit := func() {
		var sb strings.Builder
		for i, a := range cur {
			if i > 0 {
				sb.WriteString(a.sep)
			}
			sb.WriteString(a.text)
		}
		piece := strings.TrimSpace(sb.String())
		if piece == "" {
			return
		}
		// merges across atom boundaries can cost more than the per-atom sums
		if CountTokens(piece) > c.cfg.MaxTokens {
			for _, a := range hardCut(piece, "", c.cfg.MaxTokens) {
				if t := strings.TrimSpace(a.text); t != "" {
					pieces = append(pieces, t)
				}
			}
			return
		}
		pieces = append(pieces, piece)
	}

	for _, a := range atoms {
		// a separator costs at most one token
		cost := a.tokens + 1
		if len(cur) > 0 && budget+cost > c.cfg.MaxTokens {
			emit()
			cur, budget = c.overlapTail(cur), 0
			for _, o := range cur {
				budget += o.tokens + 1
			}
			if budget+cost > c.cfg.MaxTokens {
				cur, budget = nil, 0
			}
		}
		cur = append(cur, a)
		budget += cost
	}
	if len(cur) > 0 {
		emit()
	}
	return pieces
}

func (c *Chunker) overlapTail(cur []atom) []atom {
	if c.cfg.OverlapTokens == 0 {
		return nil
	}
	total := 0
	start := len(cur)
	for i := len(cur) - 1; i > 0; i-- {
		total += cur[i].tokens + 1
		if total > c.cfg.OverlapTokens {
			break
		}
		start = i
	}
	return append([]atom(nil), cur[start:]...)
}

// atomize breaks text into atoms that each fit limit, trying coarser
// separators first and cutting runes as a last resort.
func atomize(text, sep string, level, limit int) []atom {
	if tokens := CountTokens(text); tokens < limit {
		return []atom{{sep: sep, text: text, tokens: tokens}}
	}
	if level >= len(splitSeparators) {
		return hardCut(text, sep, limit)
	}

	var out []atom
	next := splitSeparators[level]
	for i, part := range strings.Split(text, next) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		partSep := next
		if i == 0 || len(out) == 0 {
			partSep = sep
		}
		out = append(out, atomize(part, partSep, level+1, limit)...)
	}
	return out
}

// hardCut cuts text into the longest rune runs that stay under limit tokens.
func hardCut(text, sep string, limit int) []atom {
	runes := []rune(text)
	var out []atom
	for start := 0; start < len(runes); {
		lo, hi := start+1, len(runes)
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if CountTokens(string(runes[start:mid])) < limit {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		piece := string(runes[start:lo])
		s := ""
		if start == 0 {
			s = sep
		}
		out = append(out, atom{sep: s, text: piece, tokens: CountTokens(piece)})
		start = lo
	}
	return out
}
