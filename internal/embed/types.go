// Package embed defines the embedding provider contract and the factory
// that selects a concrete provider. Provider SDKs are deliberately not
// used; HTTP providers speak the vendors' REST APIs directly through
// net/http, and the local provider is fully self-contained.
package embed

import (
	"context"
	"math"
	"strings"
)

// Provider generates vector embeddings for text. Implementations must be
// deterministic within a run for a given input text.
type Provider interface {
	// Init prepares the provider (credential checks, model warmup).
	Init(ctx context.Context) error

	// Embed generates the embedding for a single text. The returned
	// slice always has exactly Dimensions() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// Name returns the provider identifier stored alongside vectors.
	Name() string

	// MaxChars is the truncation budget applied before embedding.
	// Part of the compatibility contract with pre-existing indexes.
	MaxChars() int
}

// Truncate applies a provider's character budget.
func Truncate(text string, p Provider) string {
	max := p.MaxChars()
	if max <= 0 || len(text) <= max {
		return text
	}
	return text[:max]
}

// normalizeVector scales a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// BuildDocument assembles the canonical embedding input for a chunk:
// doc comments, a blank line, the code, then optional metadata trailers.
// The exact layout is part of the index compatibility contract.
func BuildDocument(docComments, code, intent, description string, tags, variables []string) string {
	var sb strings.Builder
	if docComments != "" {
		sb.WriteString(docComments)
		sb.WriteString("\n\n")
	}
	sb.WriteString(code)
	if intent != "" {
		sb.WriteString("\n// Intent: ")
		sb.WriteString(intent)
	}
	if description != "" {
		sb.WriteString("\n// Description: ")
		sb.WriteString(description)
	}
	if len(tags) > 0 {
		sb.WriteString("\n// Tags: ")
		sb.WriteString(strings.Join(tags, ", "))
	}
	if len(variables) > 0 {
		sb.WriteString("\n// Uses variables: ")
		sb.WriteString(strings.Join(variables, ", "))
	}
	return sb.String()
}
