package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// DefaultEmbeddingDim is the width of the lexical hash vector.
const DefaultEmbeddingDim = 384

// LexicalHashEmbedder is a deterministic bag-of-words stand-in for a learned
// embedding. Every word is hashed into one of dim buckets; earlier words
// weigh more. It captures word overlap, not meaning.
type LexicalHashEmbedder struct {
	dim int
}

var _ core.EmbeddingProvider = (*LexicalHashEmbedder)(nil)

func NewLexicalHashEmbedder(dim int) *LexicalHashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &LexicalHashEmbedder{dim: dim}
}

func (e *LexicalHashEmbedder) Dimension() int { return e.dim }

// Embed maps text to a vector of length Dimension. Case is significant.
func (e *LexicalHashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for pos, word := range strings.Fields(text) {
		vec[bucket(word, e.dim)] += float32(1.0 / float64(pos+1))
	}
	return vec
}

// EmbedTexts embeds a batch, one vector per input.
func (e *LexicalHashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.Embed(t)
	}
	return out, nil
}

// bucket folds a word into [0, dim) with a 31-multiplier rolling hash over
// UTF-16 code units. The hash wraps as a signed 32-bit integer.
func bucket(word string, dim int) int {
	var h int32
	for _, unit := range utf16.Encode([]rune(word)) {
		h = h*31 + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(dim))
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different length, or with zero magnitude, have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EmbeddingRetriever ranks chunks by cosine similarity to the embedded query.
type EmbeddingRetriever struct {
	embedder core.EmbeddingProvider
}

func NewEmbeddingRetriever(embedder core.EmbeddingProvider) *EmbeddingRetriever {
	return &EmbeddingRetriever{embedder: embedder}
}

func (r *EmbeddingRetriever) Name() string { return StrategyEmbedding }

// Rank embeds the query, fills in embeddings the chunks lack and returns the
// chunks with positive similarity, most similar first.
func (r *EmbeddingRetriever) Rank(ctx context.Context, query string, chunks []models.DocumentChunk) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" || len(chunks) == 0 {
		return nil, nil
	}
	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	qv := vecs[0]

	filled, err := r.ensureEmbeddings(ctx, chunks, len(qv))
	if err != nil {
		return nil, err
	}

	scored := FindSimilar(qv, filled, len(filled))
	out := scored[:0]
	for _, sc := range scored {
		if sc.Score > 0 {
			out = append(out, sc)
		}
	}
	return out, nil
}

// ensureEmbeddings returns chunks with a vector of width dim on each one,
// embedding the content of any chunk whose stored vector is absent or sized
// for another model. The input slice is not modified.
func (r *EmbeddingRetriever) ensureEmbeddings(ctx context.Context, chunks []models.DocumentChunk, dim int) ([]models.DocumentChunk, error) {
	out := make([]models.DocumentChunk, len(chunks))
	copy(out, chunks)

	var missing []int
	var texts []string
	for i, c := range out {
		if len(c.Embedding) != dim {
			missing = append(missing, i)
			texts = append(texts, c.Content)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vecs), len(texts))
	}
	for j, i := range missing {
		out[i].Embedding = vecs[j]
	}
	return out, nil
}

// FindSimilar scores every chunk's stored embedding against queryVec and
// returns the topK most similar. Chunks without a matching vector score 0.
func FindSimilar(queryVec []float32, chunks []models.DocumentChunk, topK int) []ScoredChunk {
	out := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = ScoredChunk{Chunk: c, Score: CosineSimilarity(queryVec, c.Embedding)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK >= 0 && topK < len(out) {
		out = out[:topK]
	}
	return out
}
