package retrieval

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// ClauseRule labels a document as containing a key clause when any of its
// terms occurs in the text.
type ClauseRule struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

// Vocabulary is the declarative domain table behind keyword expansion.
type Vocabulary struct {
	Synonyms       map[string][]string `yaml:"synonyms"`
	ImportantTerms []string            `yaml:"important_terms"`
	Clauses        []ClauseRule        `yaml:"clauses"`

	important map[string]struct{}
}

// DefaultVocabulary returns the built-in policy vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("retrieval: embedded vocabulary is invalid: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. An empty path yields the default
// vocabulary; sections missing from the file fall back to the defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	def := DefaultVocabulary()
	if v.Synonyms == nil {
		v.Synonyms = def.Synonyms
	}
	if v.ImportantTerms == nil {
		v.ImportantTerms = def.ImportantTerms
	}
	if v.Clauses == nil {
		v.Clauses = def.Clauses
	}
	v.index()
	return v, nil
}

// ParseVocabulary decodes a YAML vocabulary and normalizes terms to lower case.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v.Synonyms != nil {
		norm := make(map[string][]string, len(v.Synonyms))
		for term, variants := range v.Synonyms {
			key := strings.ToLower(strings.TrimSpace(term))
			for _, variant := range variants {
				variant = strings.ToLower(strings.TrimSpace(variant))
				if variant != "" {
					norm[key] = append(norm[key], variant)
				}
			}
		}
		v.Synonyms = norm
	}
	for i, t := range v.ImportantTerms {
		v.ImportantTerms[i] = strings.ToLower(strings.TrimSpace(t))
	}
	for i := range v.Clauses {
		for j, t := range v.Clauses[i].Terms {
			v.Clauses[i].Terms[j] = strings.ToLower(strings.TrimSpace(t))
		}
	}
	v.index()
	return &v, nil
}

func (v *Vocabulary) index() {
	v.important = make(map[string]struct{}, len(v.ImportantTerms))
	for _, t := range v.ImportantTerms {
		v.important[t] = struct{}{}
	}
}

// IsImportant reports whether term is on the important-terms allow-list.
func (v *Vocabulary) IsImportant(term string) bool {
	_, ok := v.important[term]
	return ok
}

// SynonymsOf returns the configured variants of a lower-cased term.
func (v *Vocabulary) SynonymsOf(term string) []string {
	return v.Synonyms[term]
}

// MatchClauses returns the labels of every clause rule triggered by text,
// in table order.
func (v *Vocabulary) MatchClauses(text string) []string {
	lower := strings.ToLower(text)
	var labels []string
	for _, rule := range v.Clauses {
		for _, term := range rule.Terms {
			if term != "" && strings.Contains(lower, term) {
				labels = append(labels, rule.Label)
				break
			}
		}
	}
	return labels
}
