package embed

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Ollama provider constants.
const (
	ollamaName       = "ollama"
	ollamaModel      = "nomic-embed-text"
	ollamaDimensions = 768
	ollamaMaxChars   = 2048

	defaultOllamaHost = "http://localhost:11434"

	// OllamaHostEnv overrides the Ollama endpoint.
	OllamaHostEnv = "OLLAMA_HOST"
)

// OllamaProvider embeds with nomic-embed-text through a local Ollama.
type OllamaProvider struct {
	client *http.Client
	host   string
}

// NewOllamaProvider creates the provider, honoring OLLAMA_HOST.
func NewOllamaProvider() *OllamaProvider {
	host := os.Getenv(OllamaHostEnv)
	if host == "" {
		host = defaultOllamaHost
	}
	return &OllamaProvider{
		client: &http.Client{Timeout: defaultHTTPTimeout},
		host:   strings.TrimRight(host, "/"),
	}
}

var _ Provider = (*OllamaProvider)(nil)

func (p *OllamaProvider) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", p.host, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (p *OllamaProvider) Dimensions() int { return ollamaDimensions }
func (p *OllamaProvider) Name() string    { return ollamaName }
func (p *OllamaProvider) MaxChars() int   { return ollamaMaxChars }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaResponse
	err := postJSON(ctx, p.client, p.host+"/api/embeddings", nil,
		ollamaRequest{Model: ollamaModel, Prompt: Truncate(text, p)}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if err := checkDimensions(ollamaName, len(resp.Embedding), ollamaDimensions); err != nil {
		return nil, err
	}
	return toFloat32(resp.Embedding), nil
}
