// Package pampa is the public core API: indexing, hybrid search, chunk
// retrieval, intention recording, context packs, and watching. The CLI
// and the MCP server are thin wrappers over this package.
package pampa

import (
	"context"
	"log/slog"
	"time"

	"github.com/pampa-ai/pampa/internal/config"
	"github.com/pampa-ai/pampa/internal/contextpack"
	"github.com/pampa-ai/pampa/internal/embed"
	perrors "github.com/pampa-ai/pampa/internal/errors"
	"github.com/pampa-ai/pampa/internal/index"
	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/internal/store"
	"github.com/pampa-ai/pampa/internal/watcher"
)

// Client binds the core operations to one repository and one embedding
// provider. Create one per project; searches may run concurrently.
type Client struct {
	repoPath string
	cfg      *config.Config
	provider embed.Provider
	bm25     *search.BM25Cache
	packs    *contextpack.Manager
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithProvider overrides the provider chosen by configuration.
func WithProvider(p embed.Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the repository at repoPath. providerName may
// be empty to use the repo configuration (default "auto").
func New(repoPath, providerName string, opts ...Option) (*Client, error) {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		repoPath: repoPath,
		cfg:      cfg,
		bm25:     search.NewBM25Cache(),
		packs:    contextpack.NewManager(repoPath),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		name := providerName
		if name == "" {
			name = cfg.Provider
		}
		provider, err := embed.NewProvider(name)
		if err != nil {
			return nil, err
		}
		c.provider = embed.NewCachedProvider(provider, embed.DefaultCacheSize)
	}
	return c, nil
}

// Provider returns the active embedding provider.
func (c *Client) Provider() embed.Provider { return c.provider }

// RepoPath returns the repository root.
func (c *Client) RepoPath() string { return c.repoPath }

// ContextPacks returns the pack manager for this repository.
func (c *Client) ContextPacks() *contextpack.Manager { return c.packs }

// IndexOptions parameterizes an indexing run.
type IndexOptions struct {
	// ChangedFiles/DeletedFiles make the run partial (watcher mode).
	ChangedFiles []string
	DeletedFiles []string

	// Encrypt is "on", "off" or empty (follow configuration).
	Encrypt string

	OnProgress func(processed, total int)
}

func (c *Client) encryptMode(override string) store.EncryptMode {
	mode := override
	if mode == "" {
		mode = c.cfg.Encrypt
	}
	switch mode {
	case "on":
		return store.EncryptOn
	case "off":
		return store.EncryptOff
	default:
		return store.EncryptAuto
	}
}

// IndexProject runs an indexing pass over the repository.
func (c *Client) IndexProject(ctx context.Context, opts IndexOptions) (*index.Result, error) {
	if err := c.provider.Init(ctx); err != nil {
		return nil, err
	}
	return index.IndexProject(ctx, index.Options{
		RepoPath:     c.repoPath,
		Provider:     c.provider,
		ChangedFiles: opts.ChangedFiles,
		DeletedFiles: opts.DeletedFiles,
		EncryptMode:  c.encryptMode(opts.Encrypt),
		OnProgress:   opts.OnProgress,
		BM25Cache:    c.bm25,
		Logger:       c.logger,
	})
}

// SearchCode runs a hybrid search. The effective scope merges the active
// context pack with the caller's overrides.
func (c *Client) SearchCode(ctx context.Context, query string, limit int, overrides *search.Scope) *search.Response {
	scope := c.packs.ResolveScope(overrides)

	chunks, err := store.NewChunkStore(c.repoPath, store.EncryptAuto)
	if err != nil {
		return &search.Response{
			Success: false,
			Error:   perrors.GetCode(err),
			Message: err.Error(),
		}
	}

	provider := c.provider
	if scope.Provider != "" && scope.Provider != provider.Name() {
		p, err := embed.NewProvider(scope.Provider)
		if err == nil {
			provider = p
		}
	}
	if err := provider.Init(ctx); err != nil {
		return &search.Response{
			Success: false,
			Error:   perrors.CodeSearchError,
			Message: err.Error(),
		}
	}

	engine := search.NewEngine(c.repoPath, provider, chunks,
		search.WithBM25Cache(c.bm25),
		search.WithLogger(c.logger))
	return engine.Search(ctx, query, limit, scope)
}

// ChunkResult is the outcome of GetChunk.
type ChunkResult struct {
	Success    bool   `json:"success"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// GetChunk returns the stored code text for a chunk sha.
func (c *Client) GetChunk(sha string) ChunkResult {
	chunks, err := store.NewChunkStore(c.repoPath, store.EncryptAuto)
	if err == nil {
		var code string
		code, err = chunks.Read(sha)
		if err == nil {
			return ChunkResult{Success: true, Code: code}
		}
	}
	return ChunkResult{
		Success:    false,
		Error:      perrors.GetCode(err),
		Message:    err.Error(),
		Suggestion: perrors.GetSuggestion(err),
	}
}

// OverviewEntry is one recently indexed chunk.
type OverviewEntry struct {
	ChunkID   string `json:"chunk_id"`
	Sha       string `json:"sha"`
	FilePath  string `json:"file_path"`
	Symbol    string `json:"symbol"`
	Lang      string `json:"lang"`
	ChunkType string `json:"chunk_type"`
}

// OverviewResult is the outcome of GetOverview.
type OverviewResult struct {
	Success    bool            `json:"success"`
	Chunks     []OverviewEntry `json:"chunks,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

// GetOverview returns the most recently updated chunks.
func (c *Client) GetOverview(ctx context.Context, limit int) OverviewResult {
	if limit <= 0 {
		limit = 20
	}
	db, err := store.OpenExistingDB(c.repoPath)
	if err != nil {
		return OverviewResult{
			Success:    false,
			Error:      perrors.GetCode(err),
			Message:    err.Error(),
			Suggestion: perrors.GetSuggestion(err),
		}
	}
	defer db.Close()

	rows, err := db.RecentChunks(ctx, limit)
	if err != nil {
		return OverviewResult{
			Success: false,
			Error:   perrors.CodeOverviewError,
			Message: err.Error(),
		}
	}

	entries := make([]OverviewEntry, len(rows))
	for i, row := range rows {
		entries[i] = OverviewEntry{
			ChunkID:   row.ID,
			Sha:       row.Sha,
			FilePath:  row.FilePath,
			Symbol:    row.Symbol,
			Lang:      row.Lang,
			ChunkType: row.ChunkType,
		}
	}
	return OverviewResult{Success: true, Chunks: entries}
}

// RecordIntention stores a query→chunk mapping with a confidence.
func (c *Client) RecordIntention(ctx context.Context, query, targetSha string, confidence float64) error {
	db, err := store.OpenExistingDB(c.repoPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.UpsertIntention(ctx, search.NormalizeQuery(query), query, targetSha, confidence)
}

// IntentionResult is the outcome of SearchByIntention.
type IntentionResult struct {
	Success     bool    `json:"success"`
	DirectMatch bool    `json:"directMatch"`
	Sha         string  `json:"sha,omitempty"`
	FilePath    string  `json:"file_path,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// SearchByIntention checks the intention cache for a direct answer.
func (c *Client) SearchByIntention(ctx context.Context, query string) IntentionResult {
	db, err := store.OpenExistingDB(c.repoPath)
	if err != nil {
		return IntentionResult{Success: false, Error: perrors.GetCode(err)}
	}
	defer db.Close()

	hit, err := db.LookupIntention(ctx, search.NormalizeQuery(query))
	if err != nil {
		return IntentionResult{Success: false, Error: perrors.CodeIntentionCacheMissing}
	}
	if hit == nil {
		return IntentionResult{Success: true, DirectMatch: false}
	}
	return IntentionResult{
		Success:     true,
		DirectMatch: true,
		Sha:         hit.TargetSha,
		FilePath:    hit.FilePath,
		Symbol:      hit.Symbol,
		Confidence:  hit.Confidence,
	}
}

// RecordQueryPattern records the masked pattern of a query.
func (c *Client) RecordQueryPattern(ctx context.Context, query string) error {
	db, err := store.OpenExistingDB(c.repoPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.RecordPattern(ctx, search.MaskPattern(search.NormalizeQuery(query)))
}

// Analytics summarizes learned query behavior.
type Analytics struct {
	Success           bool                `json:"success"`
	IntentionCount    int                 `json:"intentionCount"`
	AvgConfidence     float64             `json:"avgConfidence"`
	FrequentPatterns  []*store.PatternRow `json:"frequentPatterns,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// GetQueryAnalytics returns intention-cache and pattern statistics.
func (c *Client) GetQueryAnalytics(ctx context.Context) Analytics {
	db, err := store.OpenExistingDB(c.repoPath)
	if err != nil {
		return Analytics{Success: false, Error: perrors.GetCode(err)}
	}
	defer db.Close()

	count, avg, err := db.IntentionStats(ctx)
	if err != nil {
		return Analytics{Success: false, Error: perrors.CodeOverviewError}
	}
	patterns, err := db.TopPatterns(ctx, 10)
	if err != nil {
		return Analytics{Success: false, Error: perrors.CodeOverviewError}
	}
	return Analytics{
		Success:          true,
		IntentionCount:   count,
		AvgConfidence:    avg,
		FrequentPatterns: patterns,
	}
}

// WatchOptions parameterizes StartWatch.
type WatchOptions struct {
	Debounce time.Duration
	Encrypt  string
	OnBatch  watcher.OnBatch
}

// StartWatch begins watching the repository, driving partial index runs.
// The returned watcher exposes Flush and Close.
func (c *Client) StartWatch(opts WatchOptions) (*watcher.Watcher, error) {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = c.cfg.Debounce()
	}
	return watcher.Start(watcher.Options{
		RepoPath:     c.repoPath,
		Debounce:     debounce,
		EncryptMode:  c.encryptMode(opts.Encrypt),
		OnBatch:      opts.OnBatch,
		ExtraIgnores: c.cfg.Watch.Ignore,
		BM25Cache:    c.bm25,
		Logger:       c.logger,
		ProviderFactory: func() (embed.Provider, error) {
			if err := c.provider.Init(context.Background()); err != nil {
				return nil, err
			}
			return c.provider, nil
		},
	})
}
