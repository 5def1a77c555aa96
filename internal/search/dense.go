package search

import (
	"math"
	"strings"

	"github.com/pampa-ai/pampa/internal/store"
)

// Metadata boost weights applied on top of cosine similarity.
const (
	intentBoost = 0.2
	tagBoost    = 0.1
)

// Cosine computes cosine similarity between two vectors of equal length.
// Mismatched lengths score zero; vectors are compared, never mixed.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DenseScore computes the dense relevance of a chunk for a query:
// cosine similarity plus a bump when the query contains the chunk's
// declared intent, plus a smaller bump per tag found in the query.
// The combined score is capped at 1.0; the pure cosine is also returned.
func DenseScore(queryLower string, queryEmb []float32, row *store.ChunkRow) (score, vectorScore float64) {
	vectorScore = Cosine(queryEmb, row.Embedding)
	score = vectorScore

	if row.Intent != "" && strings.Contains(queryLower, strings.ToLower(row.Intent)) {
		score += intentBoost
	}
	for _, tag := range row.Tags {
		if tag != "" && strings.Contains(queryLower, strings.ToLower(tag)) {
			score += tagBoost
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, vectorScore
}
