package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/models"
)

// Decisions returned to callers.
const (
	DecisionApproved       = "Approved"
	DecisionRejected       = "Rejected"
	DecisionRequiresReview = "Requires Review"
	DecisionNotFound       = "Information Not Found"
)

const (
	contextSeparator = "\n\n---\n\n"
	excerptLen       = 200
	defaultLLMWait   = 30 * time.Second
)

const systemPrompt = `You are an insurance policy analyst. Answer only from the provided document excerpts.
Respond with a single JSON object and nothing else:
{"decision": "Approved" | "Rejected" | "Requires Review" | "Information Not Found",
 "amount": "<amount payable with currency, or empty>",
 "justification": "<short explanation citing document name and page>",
 "confidence": <number between 0 and 1>}
If the excerpts do not answer the question, use "Information Not Found".`

var (
	exclusionCues = []string{"not covered", "excluded", "exclusion", "exclude", "not eligible", "not payable", "rejected"}
	coverageCues  = []string{"covered", "coverage", "eligible", "included", "payable", "reimburs", "benefit"}

	amountPattern = regexp.MustCompile(`(?i)(?:₹|\$|€|£|\b(?:rs\.?|inr|usd|eur|gbp)\s?)\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:lakhs?|crore|k|m)\b)?`)
)

type QueryService struct {
	searcher *retrieval.Searcher
	index    *store.DocumentStore
	llm      core.LLMProvider
	audit    core.AuditLog
	timeout  time.Duration
}

// NewQueryService wires answering. llm and audit may be nil: answers then
// come from the rule-based fallback and are not recorded.
func NewQueryService(searcher *retrieval.Searcher, index *store.DocumentStore, llm core.LLMProvider, audit core.AuditLog, timeout time.Duration) *QueryService {
	if timeout <= 0 {
		timeout = defaultLLMWait
	}
	return &QueryService{searcher: searcher, index: index, llm: llm, audit: audit, timeout: timeout}
}

// QueryOptions tunes one answer. MinScore drops retrieved chunks scoring
// below it on the active ranker's scale.
type QueryOptions struct {
	Limit             int
	MinScore          float64
	IncludeReferences bool
}

// Answer retrieves the most relevant chunks for query and turns them into a
// decision, through the LLM when one is configured and by rules otherwise.
func (s *QueryService) Answer(ctx context.Context, userID, query string, opts QueryOptions) (*models.QueryDecision, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", models.ErrInvalidInput)
	}

	scored, err := s.searcher.SearchScored(ctx, query, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if opts.MinScore > 0 {
		kept := scored[:0]
		for _, sc := range scored {
			if sc.Score >= opts.MinScore {
				kept = append(kept, sc)
			}
		}
		scored = kept
	}
	chunks := make([]models.DocumentChunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}

	var decision *models.QueryDecision
	if len(chunks) > 0 && s.llm != nil {
		decision, err = s.askLLM(ctx, query, chunks)
		if err != nil {
			log.Printf("QueryService: %v, using rule-based fallback", err)
		}
	}
	if decision == nil {
		decision = RuleBasedDecision(query, chunks)
	}

	decision.Query = query
	decision.ReferencedDocuments = s.index.GetReferencedFilenames()
	if opts.IncludeReferences {
		decision.References = references(scored)
	}
	decision.ProcessingTimeMs = time.Since(start).Milliseconds()

	s.record(ctx, userID, decision, chunks)
	return decision, nil
}

func (s *QueryService) askLLM(ctx context.Context, query string, chunks []models.DocumentChunk) (*models.QueryDecision, error) {
	llmCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Document excerpts:\n\n%s\n\nQuestion: %s", BuildContext(chunks), query)
	raw, err := s.llm.Generate(llmCtx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.llm.Name(), err)
	}
	decision, err := ParseLLMDecision(raw)
	if err != nil {
		return nil, fmt.Errorf("%s returned unusable output: %w", s.llm.Name(), err)
	}
	return decision, nil
}

func (s *QueryService) record(ctx context.Context, userID string, d *models.QueryDecision, chunks []models.DocumentChunk) {
	if s.audit == nil {
		return
	}
	seen := map[string]bool{}
	docs := []string{}
	for _, c := range chunks {
		if !seen[c.FileName] {
			seen[c.FileName] = true
			docs = append(docs, c.FileName)
		}
	}
	// the answer is already computed; a slow or cancelled client must not lose the entry
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := s.audit.Record(actx, models.AuditEntry{
		UserID:          userID,
		Query:           d.Query,
		Decision:        d.Decision,
		ConfidenceScore: d.ConfidenceScore,
		Source:          d.Source,
		ChunkCount:      len(chunks),
		Documents:       docs,
		DurationMs:      d.ProcessingTimeMs,
	})
	if err != nil {
		log.Printf("QueryService: audit record failed: %v", err)
	}
}

// BuildContext renders retrieved chunks as the excerpt block sent to the LLM.
func BuildContext(chunks []models.DocumentChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("Document: %s, Page %d:\n%s", c.FileName, c.PageNumber, c.Content)
	}
	return strings.Join(blocks, contextSeparator)
}

type llmAnswer struct {
	Decision      string `json:"decision"`
	Amount        any    `json:"amount"`
	Justification string `json:"justification"`
	Confidence    any    `json:"confidence"`
}

// ParseLLMDecision reads the JSON answer, tolerating markdown fences and
// prose around the object.
func ParseLLMDecision(raw string) (*models.QueryDecision, error) {
	body := strings.TrimSpace(raw)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}

	var ans llmAnswer
	if err := json.Unmarshal([]byte(body[start:end+1]), &ans); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	decision := normalizeDecision(ans.Decision)
	if decision == "" {
		return nil, fmt.Errorf("unknown decision %q", ans.Decision)
	}

	return &models.QueryDecision{
		Decision:        decision,
		Amount:          stringify(ans.Amount),
		Justification:   strings.TrimSpace(ans.Justification),
		ConfidenceScore: confidence(ans.Confidence),
		Source:          models.DecisionSourceLLM,
	}, nil
}

func normalizeDecision(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "approved", "approve", "covered":
		return DecisionApproved
	case "rejected", "reject", "denied", "not covered":
		return DecisionRejected
	case "requires review", "review", "needs review", "partial":
		return DecisionRequiresReview
	case "information not found", "not found", "unknown":
		return DecisionNotFound
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// confidence accepts 0..1, a percentage, or either as a string.
func confidence(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if f > 1 {
		f /= 100
	}
	return math.Max(0, math.Min(1, f))
}

// RuleBasedDecision decides from the retrieved chunks alone. Cues are read
// from the sentence of the top chunk that shares the most keywords with
// query; the first currency amount found becomes the amount.
func RuleBasedDecision(query string, chunks []models.DocumentChunk) *models.QueryDecision {
	d := &models.QueryDecision{Source: models.DecisionSourceRuleBased}
	if len(chunks) == 0 {
		d.Decision = DecisionNotFound
		d.Justification = "No relevant information was found in the uploaded documents."
		return d
	}

	top := chunks[0]
	focus := focusSentence(query, top.Content)
	lower := strings.ToLower(focus)
	cite := fmt.Sprintf("%s, page %d", top.FileName, top.PageNumber)
	switch {
	case containsAny(lower, exclusionCues):
		d.Decision = DecisionRejected
		d.ConfidenceScore = 0.6
		d.Justification = fmt.Sprintf("The most relevant clause (%s) indicates an exclusion: %q", cite, excerpt(focus))
	case containsAny(lower, coverageCues):
		d.Decision = DecisionApproved
		d.ConfidenceScore = 0.6
		d.Justification = fmt.Sprintf("The most relevant clause (%s) indicates coverage: %q", cite, excerpt(focus))
	default:
		d.Decision = DecisionRequiresReview
		d.ConfidenceScore = 0.3
		d.Justification = fmt.Sprintf("Related clauses were found (%s) but none states coverage or exclusion explicitly.", cite)
	}

	d.Amount = amountPattern.FindString(focus)
	for _, c := range chunks {
		if d.Amount != "" {
			break
		}
		d.Amount = amountPattern.FindString(c.Content)
	}
	d.Amount = strings.TrimSpace(d.Amount)
	return d
}

// focusSentence picks the sentence of content containing the most query
// keywords, earliest on ties. Without any hit the whole content is used.
func focusSentence(query, content string) string {
	keywords := retrieval.Keywords(query)
	best, bestHits := content, 0
	for _, sent := range ingestion_engine.SplitSentences(content) {
		lower := strings.ToLower(sent)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sent, hits
		}
	}
	return best
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func references(scored []retrieval.ScoredChunk) []models.ChunkReference {
	out := make([]models.ChunkReference, len(scored))
	for i, sc := range scored {
		c := sc.Chunk
		out[i] = models.ChunkReference{
			DocumentID: c.DocumentID,
			FileName:   c.FileName,
			PageNumber: c.PageNumber,
			Section:    c.Section,
			ChunkIndex: c.ChunkIndex,
			Excerpt:    excerpt(c.Content),
			Score:      sc.Score,
		}
	}
	return out
}

// excerpt cuts content to excerptLen runes on a word boundary.
func excerpt(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= excerptLen {
		return content
	}
	r := []rune(content)[:excerptLen]
	cut := string(r)
	// LastIndex is a byte offset, so compare it with the byte length
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
