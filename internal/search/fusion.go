package search

import "sort"

// rrfConstant is the RRF smoothing constant k.
const rrfConstant = 60

// FuseRRF combines a vector-ranked and a BM25-ranked candidate list with
// Reciprocal-Rank Fusion: rrf(id) = Σ_source 1/(k + rank + 1) with
// 0-indexed ranks. Ties break toward the better vector rank, then the
// better BM25 rank. Returns the fused id order and per-id RRF scores.
func FuseRRF(vectorIDs, bm25IDs []string) ([]string, map[string]float64) {
	const missing = 1 << 30

	type fused struct {
		id         string
		score      float64
		vectorRank int
		bm25Rank   int
	}

	byID := make(map[string]*fused, len(vectorIDs)+len(bm25IDs))

	add := func(id string, rank int, isVector bool) {
		f, ok := byID[id]
		if !ok {
			f = &fused{id: id, vectorRank: missing, bm25Rank: missing}
			byID[id] = f
		}
		f.score += 1.0 / float64(rrfConstant+rank+1)
		if isVector {
			f.vectorRank = rank
		} else {
			f.bm25Rank = rank
		}
	}

	for rank, id := range vectorIDs {
		add(id, rank, true)
	}
	for rank, id := range bm25IDs {
		add(id, rank, false)
	}

	out := make([]*fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].vectorRank != out[j].vectorRank {
			return out[i].vectorRank < out[j].vectorRank
		}
		return out[i].bm25Rank < out[j].bm25Rank
	})

	ids := make([]string, len(out))
	scores := make(map[string]float64, len(out))
	for i, f := range out {
		ids[i] = f.id
		scores[f.id] = f.score
	}
	return ids, scores
}
