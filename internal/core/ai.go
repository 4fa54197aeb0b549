package core

import "context"

// EmbeddingProvider turns texts into vectors, one per input and in order.
// The lexical hash embedder and GeminiEmbedder both satisfy it.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider produces a completion for a system and user prompt pair.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
