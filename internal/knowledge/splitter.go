package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, tuned for embedding quality: large enough to
// keep a full answer together, small enough to stay well under embedding
// model input limits.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// separators is the boundary preference for chunk cuts, most semantic first.
// The empty string marks the character-level fallback.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits documents into overlapping chunks bounded by ChunkSize.
// Cuts land on the most semantic boundary available inside each window
// (paragraph, line, sentence, word) and fall back to a hard character cut
// only when no boundary fits. Adjacent chunks of the same document share
// ChunkOverlap characters of context.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewSplitter creates a Splitter, applying defaults for non-positive values.
// Overlap is clamped below the chunk size so every cut makes progress.
func NewSplitter(chunkSize, chunkOverlap int) Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split splits each document into chunks. Chunks carry a copy of the parent
// document's metadata and are independent entities after the split.
func (s Splitter) Split(docs []Document) []Document {
	var chunks []Document
	for _, doc := range docs {
		for _, piece := range s.SplitText(doc.Content) {
			chunks = append(chunks, Document{
				Content:  piece,
				Metadata: cloneMetadata(doc.Metadata),
			})
		}
	}
	return chunks
}

// SplitText splits text into pieces of at most ChunkSize bytes. Text that
// already fits is returned unchanged as a single piece. Each subsequent piece
// restarts ChunkOverlap bytes before the previous cut.
func (s Splitter) SplitText(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + s.ChunkSize
		if end >= len(text) {
			pieces = append(pieces, text[start:])
			break
		}

		end = alignRune(text, start+s.cut(text[start:end]))
		if end <= start {
			// A single rune wider than the chunk size; take it whole.
			_, size := utf8.DecodeRuneInString(text[start:])
			end = start + size
		}
		pieces = append(pieces, text[start:end])

		next := alignRune(text, end-s.ChunkOverlap)
		if next <= start {
			// Rune alignment ate the piece's advance; restart at the cut
			// instead of overlapping, or the loop would never terminate.
			next = end
		}
		start = next
	}
	return pieces
}

// cut returns the offset inside window at which to end the current chunk.
// It prefers the last occurrence of the highest-priority separator, but only
// accepts cuts beyond the overlap region, otherwise the next chunk would not
// advance. With no usable separator the full window is taken; the caller
// pulls the character cut back to a rune boundary.
func (s Splitter) cut(window string) int {
	for _, sep := range separators {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		if end := idx + len(sep); end > s.ChunkOverlap {
			return end
		}
	}
	return len(window)
}

// alignRune moves i back to the nearest UTF-8 rune boundary in text.
func alignRune(text string, i int) int {
	if i < 0 {
		return 0
	}
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
