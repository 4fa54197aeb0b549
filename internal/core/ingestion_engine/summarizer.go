package ingestion_engine

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
)

const defaultSummarySentences = 3

// Summary is the short description stored with a document.
type Summary struct {
	Text       string
	KeyClauses []string
}

// Summarizer ranks sentences by normalized word frequency (stopwords
// filtered) and labels key clauses from the domain vocabulary.
type Summarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxSentences int
	vocab        atomic.Pointer[retrieval.Vocabulary]
}

func NewSummarizer(vocab *retrieval.Vocabulary, maxSentences int) *Summarizer {
	if maxSentences <= 0 {
		maxSentences = defaultSummarySentences
	}
	if vocab == nil {
		vocab = retrieval.DefaultVocabulary()
	}
	s := &Summarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		maxSentences: maxSentences,
	}
	s.vocab.Store(vocab)
	return s
}

// SetVocabulary swaps the clause table used for later documents.
func (s *Summarizer) SetVocabulary(v *retrieval.Vocabulary) {
	if v != nil {
		s.vocab.Store(v)
	}
}

// Summarize picks the highest scoring sentences, kept in document order, and
// the clause labels whose trigger terms occur anywhere in text.
func (s *Summarizer) Summarize(text string) Summary {
	return Summary{
		Text:       s.summaryText(text),
		KeyClauses: s.vocab.Load().MatchClauses(text),
	}
}

func (s *Summarizer) summaryText(text string) string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}

	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok]
		}
		// long sentences would otherwise always win
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(s.maxSentences, len(scores))
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (s *Summarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "should", "now", "any", "all", "may", "shall",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
