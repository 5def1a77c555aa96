// Package mcp is the thin agent-protocol wrapper: each tool forwards to
// one core operation in pkg/pampa and formats the structured result. No
// retrieval logic lives here.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/pkg/pampa"
	"github.com/pampa-ai/pampa/pkg/version"
)

// Server bridges AI clients with the PAMPA core.
type Server struct {
	mcp    *mcp.Server
	client *pampa.Client
	logger *slog.Logger
}

// NewServer creates the MCP server for one project client.
func NewServer(client *pampa.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		client: client,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "PAMPA",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Semantic code search over the project memory. Finds existing functions, methods and classes by meaning before you write new code. Supports path glob, tag and language filters.",
	}, s.searchCodeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_code_chunk",
		Description: "Fetch the full code of a chunk returned by search_code, by its sha.",
	}, s.getChunkHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_project",
		Description: "Index or re-index the project. Incremental: unchanged files are skipped.",
	}, s.indexProjectHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_project_stats",
		Description: "Overview of recently indexed chunks and learned query analytics.",
	}, s.statsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "use_context_pack",
		Description: "Activate a context pack (a saved scope preset) for this session. Pass \"clear\" to deactivate.",
	}, s.useContextPackHandler)

	s.logger.Info("mcp_tools_registered", slog.Int("count", 5))
}

// SearchCodeInput is the input schema for search_code.
type SearchCodeInput struct {
	Query       string   `json:"query" jsonschema:"the natural-language code search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	PathGlob    string   `json:"path_glob,omitempty" jsonschema:"glob filter on file paths, e.g. src/payments/**"`
	Tags        []string `json:"tags,omitempty" jsonschema:"filter to chunks carrying any of these tags"`
	Lang        []string `json:"lang,omitempty" jsonschema:"filter by language (php, python, javascript, typescript, tsx, go, java)"`
	Reranker    string   `json:"reranker,omitempty" jsonschema:"cross-encoder reranking: off or transformers"`
}

func (s *Server) searchCodeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (
	*mcp.CallToolResult,
	*search.Response,
	error,
) {
	if input.Query == "" {
		return nil, nil, invalidParams("query parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	scope := &search.Scope{
		PathGlob: input.PathGlob,
		Tags:     input.Tags,
		Lang:     input.Lang,
		Reranker: input.Reranker,
	}
	resp := s.client.SearchCode(ctx, input.Query, limit, scope)
	return nil, resp, nil
}

// GetChunkInput is the input schema for get_code_chunk.
type GetChunkInput struct {
	Sha string `json:"sha" jsonschema:"the chunk sha from a search result"`
}

func (s *Server) getChunkHandler(_ context.Context, _ *mcp.CallToolRequest, input GetChunkInput) (
	*mcp.CallToolResult,
	pampa.ChunkResult,
	error,
) {
	if input.Sha == "" {
		return nil, pampa.ChunkResult{}, invalidParams("sha parameter is required")
	}
	return nil, s.client.GetChunk(input.Sha), nil
}

// IndexProjectInput is the input schema for index_project.
type IndexProjectInput struct {
	Encrypt string `json:"encrypt,omitempty" jsonschema:"encryption mode: on, off, or empty for auto"`
}

// IndexProjectOutput is the structured result of index_project.
type IndexProjectOutput struct {
	Success         bool   `json:"success"`
	ProcessedChunks int    `json:"processedChunks"`
	TotalChunks     int    `json:"totalChunks"`
	Provider        string `json:"provider"`
	ErrorCount      int    `json:"errorCount"`
}

func (s *Server) indexProjectHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexProjectInput) (
	*mcp.CallToolResult,
	IndexProjectOutput,
	error,
) {
	res, err := s.client.IndexProject(ctx, pampa.IndexOptions{Encrypt: input.Encrypt})
	if err != nil {
		return nil, IndexProjectOutput{}, err
	}
	return nil, IndexProjectOutput{
		Success:         res.Success,
		ProcessedChunks: res.ProcessedChunks,
		TotalChunks:     res.TotalChunks,
		Provider:        res.Provider,
		ErrorCount:      len(res.Errors),
	}, nil
}

// StatsInput is the input schema for get_project_stats.
type StatsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of recent chunks, default 20"`
}

// StatsOutput combines the overview with query analytics.
type StatsOutput struct {
	Overview  pampa.OverviewResult `json:"overview"`
	Analytics pampa.Analytics      `json:"analytics"`
}

func (s *Server) statsHandler(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	return nil, StatsOutput{
		Overview:  s.client.GetOverview(ctx, input.Limit),
		Analytics: s.client.GetQueryAnalytics(ctx),
	}, nil
}

// UseContextPackInput is the input schema for use_context_pack.
type UseContextPackInput struct {
	Pack string `json:"pack" jsonschema:"context pack key, or clear/none/default to deactivate"`
}

// UseContextPackOutput reports the session pack state.
type UseContextPackOutput struct {
	Active bool   `json:"active"`
	Pack   string `json:"pack,omitempty"`
}

func (s *Server) useContextPackHandler(_ context.Context, _ *mcp.CallToolRequest, input UseContextPackInput) (
	*mcp.CallToolResult,
	UseContextPackOutput,
	error,
) {
	if input.Pack == "" {
		return nil, UseContextPackOutput{}, invalidParams("pack parameter is required")
	}
	active, err := s.client.ContextPacks().UseSession(input.Pack)
	if err != nil {
		return nil, UseContextPackOutput{}, err
	}
	out := UseContextPackOutput{Active: active}
	if active {
		out.Pack = input.Pack
	}
	return nil, out, nil
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
