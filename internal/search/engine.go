package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pampa-ai/pampa/internal/embed"
	perrors "github.com/pampa-ai/pampa/internal/errors"
	"github.com/pampa-ai/pampa/internal/store"
)

const (
	// minSelectionBudget is the floor on candidates carried into fusion,
	// regardless of how few results the caller asked for.
	minSelectionBudget = 60

	// intentionThreshold is the top-score bar for learning a new
	// query→chunk intention mapping.
	intentionThreshold = 0.8
)

// Engine executes hybrid searches against one repository. It is stateless
// across searches except for the shared BM25 cache, which synchronizes
// internally; concurrent searches are safe.
type Engine struct {
	repoPath string
	provider embed.Provider
	chunks   *store.ChunkStore
	bm25     *BM25Cache
	reranker Reranker
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBM25Cache shares a BM25 cache across engines (and the indexer's
// invalidation path).
func WithBM25Cache(c *BM25Cache) EngineOption {
	return func(e *Engine) { e.bm25 = c }
}

// WithReranker sets the cross-encoder used when a scope requests it.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine for a repository.
func NewEngine(repoPath string, provider embed.Provider, chunks *store.ChunkStore, opts ...EngineOption) *Engine {
	e := &Engine{
		repoPath: repoPath,
		provider: provider,
		chunks:   chunks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bm25 == nil {
		e.bm25 = NewBM25Cache()
	}
	if e.reranker == nil {
		e.reranker = NewHTTPReranker()
	}
	return e
}

type candidate struct {
	row         *store.ChunkRow
	score       float64
	vectorScore float64
	symbolBoost float64
	hybridScore float64
	bm25Score   float64
}

// Search runs the full retrieval pipeline for a query.
func (e *Engine) Search(ctx context.Context, query string, limit int, scope *Scope) *Response {
	if limit <= 0 {
		limit = 10
	}
	if scope == nil {
		scope = &Scope{}
	}

	resp := &Response{
		Query:      query,
		Provider:   e.provider.Name(),
		Scope:      scope,
		Reranker:   RerankerOff,
		SearchType: SearchTypeVector,
		Results:    []Result{},
	}
	if scope.RerankerEnabled() {
		resp.Reranker = RerankerTransformers
	}

	db, err := store.OpenExistingDB(e.repoPath)
	if err != nil {
		return failure(resp, err, perrors.CodeDatabaseNotFound)
	}
	defer db.Close()

	normalized := NormalizeQuery(query)

	// Intention cache: a direct hit leads the result list.
	var intentionSha string
	if hit, err := db.LookupIntention(ctx, normalized); err == nil && hit != nil {
		intentionSha = hit.TargetSha
		resp.Results = append(resp.Results, Result{
			ChunkID:    store.ChunkID(hit.FilePath, hit.Symbol, hit.TargetSha),
			Sha:        hit.TargetSha,
			FilePath:   hit.FilePath,
			Symbol:     hit.Symbol,
			Lang:       hit.Lang,
			ChunkType:  hit.ChunkType,
			Score:      hit.Confidence,
			SearchType: SearchTypeIntention,
		})
		resp.IntentionResults = 1
		resp.SearchType = SearchTypeIntention
	}

	rows, err := db.ChunksForProvider(ctx, e.provider.Name(), e.provider.Dimensions())
	if err != nil {
		return failure(resp, err, perrors.CodeSearchError)
	}
	if len(rows) == 0 {
		return failureCode(resp, perrors.CodeNoChunksFound,
			"no indexed chunks for provider "+e.provider.Name(),
			"run indexing on directory "+e.repoPath+" with this provider")
	}

	scoped, err := FilterChunks(rows, scope)
	if err != nil {
		return failure(resp, err, perrors.CodeSearchError)
	}

	remaining := limit - len(resp.Results)
	if remaining > 0 && len(scoped) > 0 {
		results, hybrid, boosted, err := e.rank(ctx, query, rows, scoped, scope, remaining, intentionSha)
		if err != nil {
			return failure(resp, err, perrors.CodeSearchError)
		}
		resp.Results = append(resp.Results, results...)
		resp.VectorResults = len(results)
		resp.Hybrid = hybrid
		resp.SymbolBoost = boosted
		if hybrid.Fused > 0 && resp.SearchType == SearchTypeVector {
			resp.SearchType = SearchTypeHybrid
		}
	}

	if len(resp.Results) == 0 {
		return failureCode(resp, perrors.CodeNoRelevantMatches,
			"no chunks matched the query in the given scope",
			"broaden the scope filters or reindex the project")
	}

	resp.Success = true
	e.learn(ctx, db, query, normalized, resp)
	return resp
}

// rank executes the dense + boost + fusion + rerank stages. allRows feeds
// the BM25 index (cached per provider key); scoped rows are the ranking
// universe. The dense/boost pass and the BM25 leg run in parallel: both
// depend only on the query and the row sets, and fusion joins them.
func (e *Engine) rank(ctx context.Context, query string,
	allRows, scoped []*store.ChunkRow, scope *Scope, remaining int, excludeSha string,
) ([]Result, HybridInfo, BoostInfo, error) {
	queryLower := strings.ToLower(query)
	hybrid := HybridInfo{Enabled: scope.HybridEnabled(), BM25Enabled: scope.BM25Enabled()}
	boost := BoostInfo{Enabled: scope.SymbolBoostEnabled()}

	budget := remaining
	if budget < minSelectionBudget {
		budget = minSelectionBudget
	}

	var (
		candidates []*candidate
		byID       map[string]*candidate
		bm25Hits   []BM25Result
	)

	g, gctx := errgroup.WithContext(ctx)

	if hybrid.Enabled && hybrid.BM25Enabled {
		// Keyword leg. BM25 degrades gracefully: any failure here just
		// leaves the vector-only order, so errors never fail the group.
		g.Go(func() error {
			idx, err := e.bm25.Get(e.repoPath, e.provider.Name(), e.provider.Dimensions(),
				allRows, e.chunks.Read)
			if err != nil {
				e.logger.Debug("bm25_unavailable", slog.String("error", err.Error()))
				return nil
			}
			hits, err := idx.Search(gctx, query, budget)
			if err != nil {
				e.logger.Debug("bm25_search_failed", slog.String("error", err.Error()))
				return nil
			}
			bm25Hits = hits
			return nil
		})
	}

	// Dense leg: embed the query, then score and boost every scoped row.
	g.Go(func() error {
		queryEmb, err := e.provider.Embed(gctx, embed.Truncate(query, e.provider))
		if err != nil {
			return err
		}

		var codemap store.Codemap
		if boost.Enabled {
			codemap, err = store.LoadCodemap(e.repoPath)
			if err != nil {
				// Boosting is optional; fall back to dense-only ranking.
				e.logger.Debug("codemap_unavailable", slog.String("error", err.Error()))
				codemap = store.Codemap{}
			}
		}

		candidates = make([]*candidate, 0, len(scoped))
		byID = make(map[string]*candidate, len(scoped))
		for _, row := range scoped {
			if row.Sha == excludeSha {
				continue
			}
			c := &candidate{row: row}
			c.score, c.vectorScore = DenseScore(queryLower, queryEmb, row)
			if boost.Enabled {
				if _, rec := codemap.BySha(row.Sha); rec != nil {
					c.symbolBoost = SymbolBoost(queryLower, rec, codemap)
				}
				if c.symbolBoost > 0 {
					c.score += c.symbolBoost
					boost.Boosted++
				}
			}
			candidates = append(candidates, c)
			byID[row.ID] = c
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, hybrid, boost, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > budget {
		candidates = candidates[:budget]
	}

	ordered := candidates
	if hybrid.Enabled && hybrid.BM25Enabled {
		ordered, hybrid = fuseWithBM25(candidates, byID, bm25Hits, hybrid)
	}

	if boost.Boosted > 0 {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].score != ordered[j].score {
				return ordered[i].score > ordered[j].score
			}
			if ordered[i].symbolBoost != ordered[j].symbolBoost {
				return ordered[i].symbolBoost > ordered[j].symbolBoost
			}
			return ordered[i].hybridScore > ordered[j].hybridScore
		})
	}

	if len(ordered) > remaining {
		ordered = ordered[:remaining]
	}

	searchType := SearchTypeVector
	if hybrid.Fused > 0 {
		searchType = SearchTypeHybrid
	}

	results := make([]Result, 0, len(ordered))
	docs := make([]string, 0, len(ordered))
	for _, c := range ordered {
		r := Result{
			ChunkID:     c.row.ID,
			Sha:         c.row.Sha,
			FilePath:    c.row.FilePath,
			Symbol:      c.row.Symbol,
			Lang:        c.row.Lang,
			ChunkType:   c.row.ChunkType,
			Score:       c.score,
			VectorScore: c.vectorScore,
			HybridScore: c.hybridScore,
			BM25Score:   c.bm25Score,
			SymbolBoost: c.symbolBoost,
			SearchType:  searchType,
		}
		if r.Score > 1.0 {
			r.ScoreRaw = r.Score
			r.Score = 1.0
		}
		results = append(results, r)

		code, err := e.chunks.Read(c.row.Sha)
		if err != nil {
			code = ""
		}
		docs = append(docs, BuildRerankerDocument(c.row, code))
	}

	if scope.RerankerEnabled() && len(results) > 1 {
		results = ApplyReranker(ctx, e.reranker, query, results, docs)
	}

	return results, hybrid, boost, nil
}

// fuseWithBM25 joins the keyword hits with the vector ranking via RRF.
// Hits outside the scoped candidate set are dropped; an empty keyword leg
// leaves the vector-only order.
func fuseWithBM25(candidates []*candidate, byID map[string]*candidate,
	hits []BM25Result, hybrid HybridInfo,
) ([]*candidate, HybridInfo) {
	bm25IDs := make([]string, 0, len(hits))
	for _, hit := range hits {
		c, ok := byID[hit.ID]
		if !ok {
			continue
		}
		c.bm25Score = hit.Score
		bm25IDs = append(bm25IDs, hit.ID)
	}
	hybrid.BM25Candidates = len(bm25IDs)
	if len(bm25IDs) == 0 {
		return candidates, hybrid
	}

	vectorIDs := make([]string, len(candidates))
	for i, c := range candidates {
		vectorIDs[i] = c.row.ID
	}

	fusedIDs, fusedScores := FuseRRF(vectorIDs, bm25IDs)
	ordered := make([]*candidate, 0, len(fusedIDs))
	for _, id := range fusedIDs {
		if c, ok := byID[id]; ok {
			c.hybridScore = fusedScores[id]
			ordered = append(ordered, c)
		}
	}
	hybrid.Fused = len(ordered)
	return ordered, hybrid
}

// learn runs the post-search feedback loop: the query pattern is always
// recorded, and a high-confidence top result becomes an intention mapping.
// Failures here never fail the search.
func (e *Engine) learn(ctx context.Context, db *store.DB, query, normalized string, resp *Response) {
	if err := db.RecordPattern(ctx, MaskPattern(normalized)); err != nil {
		e.logger.Debug("pattern_record_failed", slog.String("error", err.Error()))
	}

	if len(resp.Results) == 0 {
		return
	}
	top := resp.Results[0]
	if top.SearchType == SearchTypeIntention || top.Score <= intentionThreshold {
		return
	}
	if err := db.UpsertIntention(ctx, normalized, query, top.Sha, top.Score); err != nil {
		e.logger.Debug("intention_record_failed", slog.String("error", err.Error()))
	}
}

func failure(resp *Response, err error, fallbackCode string) *Response {
	code := perrors.GetCode(err)
	if code == "" {
		code = fallbackCode
	}
	resp.Success = false
	resp.Error = code
	resp.Message = err.Error()
	resp.Suggestion = perrors.GetSuggestion(err)
	resp.Results = nil
	return resp
}

func failureCode(resp *Response, code, message, suggestion string) *Response {
	resp.Success = false
	resp.Error = code
	resp.Message = message
	resp.Suggestion = suggestion
	resp.Results = nil
	return resp
}
