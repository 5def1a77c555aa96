// Package search implements the hybrid retrieval engine: dense cosine
// scoring, lazily built BM25 indexes, Reciprocal-Rank Fusion, symbol
// boosting, optional cross-encoder reranking, and the intention cache
// learning loop.
package search

import "strings"

// Search type labels attached to results.
const (
	SearchTypeVector    = "vector"
	SearchTypeHybrid    = "hybrid"
	SearchTypeIntention = "intention"
)

// Reranker modes.
const (
	RerankerOff          = "off"
	RerankerTransformers = "transformers"
)

// Scope filters and retrieval toggles for one search. The zero value
// means "no filters, hybrid retrieval with BM25 and symbol boost enabled";
// cross-encoder reranking stays off unless Reranker is "transformers".
type Scope struct {
	PathGlob    string   `json:"path_glob,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Lang        []string `json:"lang,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Reranker    string   `json:"reranker,omitempty"`
	Hybrid      *bool    `json:"hybrid,omitempty"`
	BM25        *bool    `json:"bm25,omitempty"`
	SymbolBoost *bool    `json:"symbol_boost,omitempty"`
}

// HybridEnabled resolves the hybrid toggle (default on).
func (s *Scope) HybridEnabled() bool { return s.Hybrid == nil || *s.Hybrid }

// BM25Enabled resolves the bm25 toggle (default on).
func (s *Scope) BM25Enabled() bool { return s.BM25 == nil || *s.BM25 }

// SymbolBoostEnabled resolves the symbol boost toggle (default on).
func (s *Scope) SymbolBoostEnabled() bool { return s.SymbolBoost == nil || *s.SymbolBoost }

// RerankerEnabled reports whether cross-encoder reranking is requested.
func (s *Scope) RerankerEnabled() bool {
	return strings.EqualFold(s.Reranker, RerankerTransformers)
}

// Result is one scored search hit.
type Result struct {
	ChunkID   string  `json:"chunk_id"`
	Sha       string  `json:"sha"`
	FilePath  string  `json:"file_path"`
	Symbol    string  `json:"symbol"`
	Lang      string  `json:"lang"`
	ChunkType string  `json:"chunk_type"`
	Score     float64 `json:"score"`
	// ScoreRaw keeps the uncapped score when it exceeded 1.0.
	ScoreRaw      float64 `json:"score_raw,omitempty"`
	VectorScore   float64 `json:"vector_score,omitempty"`
	HybridScore   float64 `json:"hybrid_score,omitempty"`
	BM25Score     float64 `json:"bm25_score,omitempty"`
	RerankerScore float64 `json:"reranker_score,omitempty"`
	SymbolBoost   float64 `json:"symbol_boost,omitempty"`
	SearchType    string  `json:"search_type"`
}

// HybridInfo reports what the hybrid stage did for one search.
type HybridInfo struct {
	Enabled        bool `json:"enabled"`
	BM25Enabled    bool `json:"bm25Enabled"`
	Fused          int  `json:"fused"`
	BM25Candidates int  `json:"bm25Candidates"`
}

// BoostInfo reports what symbol boosting did for one search.
type BoostInfo struct {
	Enabled bool `json:"enabled"`
	Boosted int  `json:"boosted"`
}

// Response is the structured result of a search operation. Failures are
// expressed as Success=false with a stable Error code, never as a Go
// error, so callers can render actionable guidance.
type Response struct {
	Success          bool       `json:"success"`
	Query            string     `json:"query,omitempty"`
	SearchType       string     `json:"searchType,omitempty"`
	IntentionResults int        `json:"intentionResults"`
	VectorResults    int        `json:"vectorResults"`
	Provider         string     `json:"provider,omitempty"`
	Scope            *Scope     `json:"scope,omitempty"`
	Hybrid           HybridInfo `json:"hybrid"`
	Reranker         string     `json:"reranker,omitempty"`
	SymbolBoost      BoostInfo  `json:"symbolBoost"`
	Results          []Result   `json:"results"`

	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
