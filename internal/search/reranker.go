package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pampa-ai/pampa/internal/store"
)

// defaultRerankerTimeout bounds one cross-encoder round trip.
const defaultRerankerTimeout = 10 * time.Second

// Reranker limits.
const (
	// maxRerankCandidates bounds the cross-encoder input size.
	maxRerankCandidates = 50

	// rerankDocumentHead is how much chunk code the reranker sees.
	rerankDocumentHead = 1200

	// RerankerURLEnv points at a cross-encoder scoring service.
	RerankerURLEnv = "PAMPA_RERANKER_URL"

	defaultRerankerURL = "http://localhost:8765/rerank"
)

// Reranker jointly scores (query, document) pairs. Implementations must
// return exactly one score per document; anything else is treated as a
// failure and the caller keeps its previous order.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// BuildRerankerDocument assembles the candidate text a cross-encoder
// scores against the query.
func BuildRerankerDocument(row *store.ChunkRow, code string) string {
	var sb strings.Builder
	sb.WriteString(row.Symbol)
	if row.Description != "" {
		sb.WriteString(" — ")
		sb.WriteString(row.Description)
	}
	sb.WriteString("\n")
	sb.WriteString(row.FilePath)
	sb.WriteString("\n")
	if len(code) > rerankDocumentHead {
		code = code[:rerankDocumentHead]
	}
	sb.WriteString(code)
	return sb.String()
}

// HTTPReranker calls a transformers cross-encoder served over HTTP.
type HTTPReranker struct {
	client   *http.Client
	endpoint string
}

// NewHTTPReranker builds the reranker from PAMPA_RERANKER_URL.
func NewHTTPReranker() *HTTPReranker {
	endpoint := os.Getenv(RerankerURLEnv)
	if endpoint == "" {
		endpoint = defaultRerankerURL
	}
	return &HTTPReranker{
		client:   &http.Client{Timeout: defaultRerankerTimeout},
		endpoint: endpoint,
	}
}

var _ Reranker = (*HTTPReranker)(nil)

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank posts the pairs and returns the model scores.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	var resp rerankResponse
	err := postRerankJSON(ctx, r.client, r.endpoint,
		rerankRequest{Query: query, Documents: documents}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// ApplyReranker reorders the top candidates by cross-encoder score.
// Any failure, including a wrong-length response, leaves the input order
// untouched: reranking must never break a search.
func ApplyReranker(ctx context.Context, rr Reranker, query string, results []Result, docs []string) []Result {
	if rr == nil || len(results) < 2 {
		return results
	}

	n := len(results)
	if n > maxRerankCandidates {
		n = maxRerankCandidates
	}

	scores, err := rr.Rerank(ctx, query, docs[:n])
	if err != nil || len(scores) != n {
		return results
	}

	head := make([]Result, n)
	copy(head, results[:n])
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sortByScoreDesc(order, scores)

	out := make([]Result, 0, len(results))
	for _, idx := range order {
		r := head[idx]
		r.RerankerScore = scores[idx]
		out = append(out, r)
	}
	return append(out, results[n:]...)
}

func postRerankJSON(ctx context.Context, client *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reranker: status %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

func sortByScoreDesc(order []int, scores []float64) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && scores[order[j]] > scores[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
}
