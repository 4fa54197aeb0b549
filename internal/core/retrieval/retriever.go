// Package retrieval ranks indexed chunks against a natural-language query.
//
// Two strategies share the Ranker interface: KeywordRetriever, the primary
// explainable substring scorer, and EmbeddingRetriever, cosine similarity over
// vectors from any core.EmbeddingProvider (the lexical hash embedder by default).
package retrieval

import (
	"context"
	"fmt"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// Strategy names accepted by NewRanker.
const (
	StrategyKeyword   = "keyword"
	StrategyEmbedding = "embedding"
)

// DefaultLimit caps how many chunks a search returns.
const DefaultLimit = 5

// ScoredChunk pairs a chunk with the score its ranker gave it.
type ScoredChunk struct {
	Chunk models.DocumentChunk
	Score float64
}

// Ranker orders chunks by relevance to a query, most relevant first.
// Chunks judged irrelevant are left out.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, query string, chunks []models.DocumentChunk) ([]ScoredChunk, error)
}

// ChunkSource is the read side of the chunk index.
type ChunkSource interface {
	GetAllChunks() []models.DocumentChunk
}

// NewRanker builds the ranker for a configured strategy. emb is only used by
// the embedding strategy and may be nil otherwise.
func NewRanker(strategy string, vocab *Vocabulary, emb core.EmbeddingProvider) (Ranker, error) {
	switch strategy {
	case StrategyKeyword, "":
		return NewKeywordRetriever(vocab), nil
	case StrategyEmbedding:
		if emb == nil {
			emb = NewLexicalHashEmbedder(DefaultEmbeddingDim)
		}
		return NewEmbeddingRetriever(emb), nil
	default:
		return nil, fmt.Errorf("%w: unknown retrieval strategy %q", models.ErrInvalidInput, strategy)
	}
}

// Searcher runs a Ranker over a snapshot of the chunk index.
type Searcher struct {
	source ChunkSource
	ranker Ranker
	limit  int
}

func NewSearcher(source ChunkSource, ranker Ranker, limit int) *Searcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Searcher{source: source, ranker: ranker, limit: limit}
}

// Strategy names the ranker in use.
func (s *Searcher) Strategy() string { return s.ranker.Name() }

// Search returns up to the configured limit of chunks, most relevant first.
func (s *Searcher) Search(ctx context.Context, query string) ([]models.DocumentChunk, error) {
	scored, err := s.SearchScored(ctx, query, s.limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentChunk, len(scored))
	for i, sc := range scored {
		out[i] = sc.Chunk
	}
	return out, nil
}

// SearchScored is Search with scores attached. limit may only lower the
// configured cap.
func (s *Searcher) SearchScored(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	chunks := s.source.GetAllChunks()
	if len(chunks) == 0 {
		return nil, nil
	}
	ranked, err := s.ranker.Rank(ctx, query, chunks)
	if err != nil {
		return nil, fmt.Errorf("%s ranking: %w", s.ranker.Name(), err)
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
