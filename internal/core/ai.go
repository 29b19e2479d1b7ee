package core

import "context"

// EmbeddingProvider maps texts to fixed-dimension vectors, one per input and
// in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
