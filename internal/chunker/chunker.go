// Package chunker splits document text into overlapping, sentence-aware
// pieces sized for embedding. Offsets are rune-based so multi-byte text maps
// cleanly back to its source.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
)

// Default window parameters, tuned for embedding models with a few thousand
// tokens of context.
const (
	DefaultSize    = 1000
	DefaultOverlap = 100
)

// Config holds the chunking window parameters, both measured in runes.
type Config struct {
	// Size is the maximum chunk length.
	Size int

	// Overlap is the approximate number of runes consecutive chunks share.
	// Must be smaller than Size.
	Overlap int
}

// Piece is one chunk of a source text. Start and End are rune offsets into
// the original text, so Text == string([]rune(src)[Start:End]).
type Piece struct {
	Text  string
	Start int
	End   int
}

// Chunker splits text according to a fixed Config. It is stateless and safe
// for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New validates cfg and returns a Chunker. Zero values take the defaults.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.Size < 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", cfg.Overlap)
	}
	if cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d", cfg.Overlap, cfg.Size)
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// span is a half-open rune range into the source text.
type span struct {
	start, end int
}

// Split cuts text into pieces of at most Size runes, preferring sentence
// boundaries and overlapping consecutive pieces by roughly Overlap runes.
// Sentences longer than one window are force-split, cutting at a word
// boundary near the window edge when one exists. Every piece of source text
// with visible content lands in at least one chunk; whitespace-only input
// yields nothing.
func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	sentences := splitSentences(runes)

	var out []Piece
	emit := func(start, end int) {
		if hasText(runes[start:end]) {
			out = append(out, Piece{Text: string(runes[start:end]), Start: start, End: end})
		}
	}

	chunkStart := -1
	// hasNew tracks whether the open chunk contains anything beyond the
	// overlap tail carried over from the previous chunk.
	hasNew := false

	for _, sent := range sentences {
		if sent.end-sent.start > c.size {
			// A single sentence that overflows the window gets force-split
			// into windows of its own.
			if chunkStart >= 0 && hasNew {
				emit(chunkStart, sent.start)
			}
			pieces := c.forceSplit(runes, sent)
			for _, p := range pieces {
				emit(p.start, p.end)
			}
			tail := c.overlapStart(runes, pieces[len(pieces)-1].start, sent.end)
			if tail < sent.end {
				chunkStart, hasNew = tail, false
			} else {
				chunkStart, hasNew = -1, false
			}
			continue
		}

		if chunkStart < 0 {
			chunkStart, hasNew = sent.start, false
		}
		if sent.end-chunkStart > c.size {
			emit(chunkStart, sent.start)
			next := c.overlapStart(runes, chunkStart, sent.start)
			if sent.end-next > c.size {
				// Overlap would overflow the window; give it up for this boundary.
				next = sent.start
			}
			chunkStart, hasNew = next, false
		}
		if hasText(runes[sent.start:sent.end]) {
			hasNew = true
		}
	}

	if chunkStart >= 0 && hasNew && chunkStart < len(runes) {
		emit(chunkStart, len(runes))
	}

	return out
}

// forceSplit cuts an oversized sentence into windows of at most size runes,
// overlapping like regular chunks. The cut point backs up to the nearest word
// boundary within the last tenth of the window; with no boundary there it
// cuts hard.
func (c *Chunker) forceSplit(runes []rune, s span) []span {
	lookback := c.size / 10
	if lookback < 1 {
		lookback = 1
	}

	var out []span
	start := s.start
	for s.end-start > c.size {
		cut := start + c.size
		for k := cut; k > cut-lookback && k > start; k-- {
			if unicode.IsSpace(runes[k-1]) {
				cut = k
				break
			}
		}
		out = append(out, span{start, cut})

		next := c.overlapStart(runes, start, cut)
		if next <= start {
			next = cut
		}
		start = next
	}
	out = append(out, span{start, s.end})
	return out
}

// overlapStart returns where the chunk following one that ended at end should
// begin. It backs up by the configured overlap, then moves forward to the
// next word start so chunks do not open mid-word; unbroken text keeps the raw
// overlap position. Returns end (no overlap) when backing up would reach into
// the previous chunk's start.
func (c *Chunker) overlapStart(runes []rune, prevStart, end int) int {
	if c.overlap <= 0 {
		return end
	}
	ns := end - c.overlap
	if ns <= prevStart {
		return end
	}
	for k := ns; k < end; k++ {
		if unicode.IsSpace(runes[k-1]) {
			return k
		}
	}
	return ns
}

// splitSentences cuts the text into contiguous sentence spans covering the
// whole input. A sentence ends after a terminator (. ! ?) followed by
// whitespace, or at a paragraph break (blank line). Text without any
// boundary is a single span.
func splitSentences(runes []rune) []span {
	var spans []span
	start := 0
	i := 0
	for i < len(runes) {
		switch r := runes[i]; {
		case r == '.' || r == '!' || r == '?':
			j := i + 1
			for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
				j++
			}
			if j < len(runes) && !unicode.IsSpace(runes[j]) {
				// Terminator inside a token (version numbers, hostnames).
				i = j
				continue
			}
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			spans = append(spans, span{start, j})
			start, i = j, j
		case r == '\n':
			j := i
			newlines := 0
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				if runes[j] == '\n' {
					newlines++
				}
				j++
			}
			if newlines >= 2 && start < i {
				spans = append(spans, span{start, j})
				start = j
			}
			i = j
		default:
			i++
		}
	}
	if start < len(runes) {
		spans = append(spans, span{start, len(runes)})
	}
	return spans
}

// hasText reports whether the runes contain any non-whitespace character.
func hasText(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
