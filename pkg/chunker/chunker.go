// Package chunker splits text into overlapping chunks for embedding.
//
// Text is split recursively on the coarsest separator it contains, falling
// back to finer separators for pieces that are still too long. Pieces are
// then merged greedily into chunks of at most the configured size, carrying
// trailing pieces of one chunk into the start of the next as overlap. Sizes
// are counted in runes.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the default maximum number of characters per chunk.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the default number of characters shared by
	// consecutive chunks.
	DefaultChunkOverlap = 150
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ".", " "}

// Splitter splits text into chunks. It is safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Span is a chunk together with its byte offsets in the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list, coarsest first.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		clean := make([]string, 0, len(seps))
		for _, sep := range seps {
			if sep != "" {
				clean = append(clean, sep)
			}
		}
		if len(clean) > 0 {
			s.separators = clean
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }

func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of text in order. Empty text yields no chunks.
func (s *Splitter) Split(text string) []string {
	spans := s.Spans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

// Spans is Split with source offsets. Consecutive spans are contiguous or
// overlap: spans[i+1].Start <= spans[i].End.
func (s *Splitter) Spans(text string) []Span {
	if text == "" {
		return []Span{}
	}
	pieces := s.atoms(text, s.separators, nil)
	return s.merge(text, pieces)
}

// atoms breaks text into pieces no longer than the chunk size where a
// separator allows it. Pieces concatenate back to text.
func (s *Splitter) atoms(text string, seps []string, out []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return append(out, text)
	}

	idx := -1
	for i, sep := range seps {
		if strings.Contains(text, sep) {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Nothing left to split on; emit the unit whole.
		return append(out, text)
	}

	sep := seps[idx]
	finer := seps[idx+1:]
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= s.chunkSize {
			out = append(out, part)
			continue
		}

		body, hadSep := strings.CutSuffix(part, sep)
		if body != "" {
			out = s.atoms(body, finer, out)
		}
		if hadSep {
			out = append(out, sep)
		}
	}
	return out
}

type piece struct {
	start, end int
	runes      int
}

func (s *Splitter) merge(text string, parts []string) []Span {
	pieces := make([]piece, 0, len(parts))
	off := 0
	for _, p := range parts {
		pieces = append(pieces, piece{start: off, end: off + len(p), runes: utf8.RuneCountInString(p)})
		off += len(p)
	}

	var (
		spans  []Span
		window []piece
		total  int
	)
	emit := func() {
		start, end := window[0].start, window[len(window)-1].end
		spans = append(spans, Span{Text: text[start:end], Start: start, End: end})
	}

	for _, p := range pieces {
		if len(window) > 0 && total+p.runes > s.chunkSize {
			emit()
			for len(window) > 0 && (total > s.overlap || total+p.runes > s.chunkSize) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 {
		emit()
	}
	return spans
}
