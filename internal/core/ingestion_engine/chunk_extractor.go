package ingestion_engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxChunkSize is the soft upper bound of a chunk, in characters.
	DefaultMaxChunkSize = 1000
	// DefaultOverlap is the character budget carried from one chunk into the next.
	DefaultOverlap = 200

	// charsPerWord converts the character overlap budget into a word count.
	charsPerWord = 6
	// chunksPerPage drives the estimated page and section numbers.
	chunksPerPage = 3
)

// ChunkPiece is one chunk produced by Chunk, before it is bound to a document.
//
// PageNumber and Section are estimates derived from the chunk position,
// not from the real pagination of the source file.
type ChunkPiece struct {
	Content    string `json:"content"`
	PageNumber int    `json:"pageNumber"`
	Section    string `json:"section"`
	ChunkIndex int    `json:"chunkIndex"`
}

// SplitSentences splits text on '.', '!' and '?', drops blank pieces and
// re-terminates every kept sentence with a period.
func SplitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+".")
	}
	return out
}

// Chunk greedily packs sentences into chunks of at most maxChunkSize
// characters. Each new chunk is seeded with the last overlap/6 words of the
// previous one. A sentence longer than maxChunkSize is never split and
// becomes its own oversized chunk.
func Chunk(text string, maxChunkSize, overlap int) []ChunkPiece {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	overlapWords := overlap / charsPerWord

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		pieces []ChunkPiece
		buf    string
		idx    int
	)
	for _, sentence := range sentences {
		if buf != "" && runeLen(buf)+1+runeLen(sentence) > maxChunkSize {
			pieces = append(pieces, newPiece(buf, idx))
			idx++
			buf = seedWithOverlap(buf, sentence, overlapWords, maxChunkSize)
			continue
		}
		if buf == "" {
			buf = sentence
		} else {
			buf += " " + sentence
		}
	}
	if strings.TrimSpace(buf) != "" {
		pieces = append(pieces, newPiece(buf, idx))
	}
	return pieces
}

// seedWithOverlap starts the next buffer with the tail words of prev followed
// by sentence. Leading tail words are dropped while the seed would push the
// buffer past maxChunkSize.
func seedWithOverlap(prev, sentence string, words, maxChunkSize int) string {
	if words <= 0 {
		return sentence
	}
	fields := strings.Fields(prev)
	if words > len(fields) {
		words = len(fields)
	}
	tail := fields[len(fields)-words:]
	for len(tail) > 0 && runeLen(strings.Join(tail, " "))+1+runeLen(sentence) > maxChunkSize {
		tail = tail[1:]
	}
	if len(tail) == 0 {
		return sentence
	}
	return strings.Join(tail, " ") + " " + sentence
}

func newPiece(buf string, idx int) ChunkPiece {
	page := idx/chunksPerPage + 1
	return ChunkPiece{
		Content:    strings.TrimSpace(buf),
		PageNumber: page,
		Section:    fmt.Sprintf("Section %d", page),
		ChunkIndex: idx,
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// streamChunk runs the chunker over the extracted text and emits the pieces
// downstream in order.
//
// texts:    upstream extracted text (one value per document).
// out:      receive-only channel of pieces; closed when chunking completes.
func (i *DocumentIngestor) streamChunk(
	ctx context.Context,
	g *errgroup.Group,
	texts <-chan string,
) <-chan ChunkPiece {
	out := make(chan ChunkPiece, 8)

	g.Go(func() error {
		defer close(out)

		for text := range texts {
			for _, piece := range Chunk(text, i.cfg.MaxChunkSize, i.cfg.Overlap) {
				select {
				case out <- piece:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	})

	return out
}
