// Package bench provides the IR regression harness: standard ranking
// metrics plus a fixture-driven comparison of the retrieval
// configurations (vector-only, hybrid, hybrid + cross-encoder).
package bench

import "math"

// PrecisionAtK is the fraction of the top k results that are relevant.
func PrecisionAtK(ranked []string, relevant map[string]bool, k int) float64 {
	if k <= 0 || len(ranked) == 0 {
		return 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for _, id := range ranked[:k] {
		if relevant[id] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// MRRAtK is the reciprocal rank of the first relevant result within the
// top k, or 0 when none appears.
func MRRAtK(ranked []string, relevant map[string]bool, k int) float64 {
	if k > len(ranked) {
		k = len(ranked)
	}
	for i := 0; i < k; i++ {
		if relevant[ranked[i]] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK is the normalized discounted cumulative gain with binary
// relevance over the top k.
func NDCGAtK(ranked []string, relevant map[string]bool, k int) float64 {
	if k > len(ranked) {
		k = len(ranked)
	}

	var dcg float64
	for i := 0; i < k; i++ {
		if relevant[ranked[i]] {
			dcg += 1.0 / math.Log2(float64(i+2))
		}
	}

	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Metrics aggregates the scores for one system over a fixture set.
type Metrics struct {
	P1    float64 `json:"p@1"`
	P5    float64 `json:"p@5"`
	MRR5  float64 `json:"mrr@5"`
	NDCG5 float64 `json:"ndcg@5"`
}

// averageMetrics computes mean metrics over per-query rankings.
func averageMetrics(rankings [][]string, relevants []map[string]bool) Metrics {
	if len(rankings) == 0 {
		return Metrics{}
	}
	var m Metrics
	for i, ranked := range rankings {
		rel := relevants[i]
		m.P1 += PrecisionAtK(ranked, rel, 1)
		m.P5 += PrecisionAtK(ranked, rel, 5)
		m.MRR5 += MRRAtK(ranked, rel, 5)
		m.NDCG5 += NDCGAtK(ranked, rel, 5)
	}
	n := float64(len(rankings))
	m.P1 /= n
	m.P5 /= n
	m.MRR5 /= n
	m.NDCG5 /= n
	return m
}
