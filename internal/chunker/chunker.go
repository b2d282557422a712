// Package chunker splits page text into bounded, sentence-aware chunks.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"planbid/internal/domain"
)

const (
	// DefaultMaxChars is the hard upper bound on chunk length.
	DefaultMaxChars = 900
	// DefaultMinChars is the length below which a chunk is folded into its predecessor.
	DefaultMinChars = 250
)

// Chunker splits normalized page text into chunks.
type Chunker struct {
	maxChars int
	minChars int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChars sets the maximum chunk length in characters.
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithMinChars sets the target minimum chunk length in characters.
func WithMinChars(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minChars = n
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{maxChars: DefaultMaxChars, minChars: DefaultMinChars}
	for _, opt := range opts {
		opt(c)
	}
	if c.minChars >= c.maxChars {
		c.minChars = c.maxChars / 4
	}
	return c
}

// MaxChars returns the configured maximum chunk length.
func (c *Chunker) MaxChars() int { return c.maxChars }

// PageContext locates a page within its plan set.
type PageContext struct {
	PageNumber int
	PageIndex  int
	TotalPages int
	Sheet      *domain.SheetMetadata
}

// PageChunk is a chunk of one page with its metadata.
type PageChunk struct {
	Text     string
	Metadata domain.ChunkMetadata
}

// NormalizeText strips NUL bytes, collapses whitespace, and trims.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.Join(strings.Fields(s), " ")
}

// ChunkPage splits one page of text. A blank page yields no chunks.
func (c *Chunker) ChunkPage(text string, pc PageContext) []PageChunk {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}

	var segments []string
	for _, s := range SplitSentences(normalized) {
		segments = append(segments, hardSplit(s, c.maxChars)...)
	}

	texts := c.accumulate(segments)

	out := make([]PageChunk, 0, len(texts))
	for i, t := range texts {
		meta := domain.ChunkMetadata{
			ChunkPageIndex: pc.PageIndex,
			TotalPages:     pc.TotalPages,
			ChunkIndex:     i,
			CharacterCount: utf8.RuneCountInString(t),
		}
		applySheet(&meta, pc.Sheet)
		out = append(out, PageChunk{Text: t, Metadata: meta})
	}
	return out
}

// accumulate packs segments greedily up to maxChars. A buffer still under
// minChars when the next segment does not fit is topped up with that
// segment's leading words instead of being closed short, so only the final
// chunk of a page may fall under the minimum.
func (c *Chunker) accumulate(segments []string) []string {
	var chunks []string
	var buf string

	for _, seg := range segments {
		if buf == "" {
			buf = seg
			continue
		}
		if candidate := buf + " " + seg; runeLen(candidate) <= c.maxChars {
			buf = candidate
			continue
		}
		if runeLen(buf) < c.minChars {
			filled, rest := fill(buf, seg, c.maxChars)
			chunks = append(chunks, filled)
			buf = rest
			continue
		}
		chunks = append(chunks, buf)
		buf = seg
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// fill appends whole words of seg to buf while it stays within max. It
// returns the filled buffer and the unused remainder of seg.
func fill(buf, seg string, max int) (filled, rest string) {
	words := strings.Fields(seg)
	var b strings.Builder
	b.WriteString(buf)
	n := runeLen(buf)
	i := 0
	for ; i < len(words); i++ {
		w := runeLen(words[i])
		if n+1+w > max {
			break
		}
		b.WriteByte(' ')
		b.WriteString(words[i])
		n += 1 + w
	}
	return b.String(), strings.Join(words[i:], " ")
}

func applySheet(meta *domain.ChunkMetadata, sheet *domain.SheetMetadata) {
	if sheet == nil {
		return
	}
	meta.SheetID = deref(sheet.SheetID)
	meta.SheetTitle = deref(sheet.Title)
	meta.SheetDiscipline = deref(sheet.Discipline)
	meta.SheetType = deref(sheet.SheetType)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SplitSentences cuts text after terminal punctuation (. ! ?) that is
// followed by whitespace or the end of the string.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// hardSplit breaks a segment longer than max on whitespace. A single word
// longer than max is cut at max characters.
func hardSplit(segment string, max int) []string {
	if runeLen(segment) <= max {
		return []string{segment}
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(segment) {
		wr := []rune(word)
		for len(wr) > max {
			flush()
			out = append(out, string(wr[:max]))
			wr = wr[max:]
		}
		if len(wr) == 0 {
			continue
		}
		need := len(wr)
		if curLen > 0 {
			need++
		}
		if curLen+need > max {
			flush()
			need = len(wr)
		}
		if curLen > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(string(wr))
		curLen += need
	}
	flush()
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
