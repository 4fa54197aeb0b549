package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// Keyword scoring weights.
const (
	phraseBonus    = 10
	keywordWeight  = 2
	variantWeight  = 1
	importantBonus = 2

	minKeywordLen = 3
)

// KeywordRetriever scores chunks by substring matches of the query, its
// keywords and their expansions. The vocabulary can be swapped at runtime.
type KeywordRetriever struct {
	vocab atomic.Pointer[Vocabulary]
}

// NewKeywordRetriever uses vocab, or the default vocabulary when nil.
func NewKeywordRetriever(vocab *Vocabulary) *KeywordRetriever {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	r := &KeywordRetriever{}
	r.vocab.Store(vocab)
	return r
}

func (r *KeywordRetriever) Name() string { return StrategyKeyword }

// SetVocabulary replaces the expansion table for subsequent queries.
func (r *KeywordRetriever) SetVocabulary(v *Vocabulary) {
	if v != nil {
		r.vocab.Store(v)
	}
}

// Vocabulary returns the table currently in use.
func (r *KeywordRetriever) Vocabulary() *Vocabulary {
	return r.vocab.Load()
}

// queryTerms is a query prepared for scoring.
type queryTerms struct {
	phrase   string
	keywords []string
	expanded []string
}

// Keywords returns the lower-cased whitespace tokens of query longer than two characters.
func Keywords(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) >= minKeywordLen {
			out = append(out, tok)
		}
	}
	return out
}

// Expand returns the de-duplicated keywords plus their plural/singular
// toggles and vocabulary synonyms, in first-seen order.
func (r *KeywordRetriever) Expand(keywords []string) []string {
	vocab := r.vocab.Load()
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, kw := range keywords {
		add(kw)
		add(togglePlural(kw))
		for _, syn := range vocab.SynonymsOf(kw) {
			add(syn)
		}
	}
	return out
}

// togglePlural strips a trailing "s" from words longer than three characters
// and appends one otherwise.
func togglePlural(word string) string {
	if strings.HasSuffix(word, "s") && utf8.RuneCountInString(word) > 3 {
		return strings.TrimSuffix(word, "s")
	}
	return word + "s"
}

func (r *KeywordRetriever) prepare(query string) queryTerms {
	keywords := Keywords(query)
	return queryTerms{
		phrase:   strings.TrimSpace(strings.ToLower(query)),
		keywords: keywords,
		expanded: r.Expand(keywords),
	}
}

func (r *KeywordRetriever) score(q queryTerms, content string) int {
	vocab := r.vocab.Load()
	lower := strings.ToLower(content)

	score := 0
	if q.phrase != "" && strings.Contains(lower, q.phrase) {
		score += phraseBonus
	}
	for _, kw := range q.keywords {
		if strings.Contains(lower, kw) {
			score += keywordWeight
		}
	}
	for _, term := range q.expanded {
		if !strings.Contains(lower, term) {
			continue
		}
		score += variantWeight
		if vocab.IsImportant(term) {
			score += importantBonus
		}
	}
	return score
}

// Score computes the relevance of content to query. A blank query scores 0.
func (r *KeywordRetriever) Score(query, content string) int {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	return r.score(r.prepare(query), content)
}

// Rank scores every chunk, drops zero scores and sorts by descending score.
// Ties keep index order.
func (r *KeywordRetriever) Rank(_ context.Context, query string, chunks []models.DocumentChunk) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" || len(chunks) == 0 {
		return nil, nil
	}
	q := r.prepare(query)

	var out []ScoredChunk
	for _, c := range chunks {
		if s := r.score(q, c.Content); s > 0 {
			out = append(out, ScoredChunk{Chunk: c, Score: float64(s)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
