package embed

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

// OpenAI provider constants.
const (
	openAIName       = "openai"
	openAIModel      = "text-embedding-3-large"
	openAIDimensions = 3072
	openAIMaxChars   = 8192
	openAIEndpoint   = "https://api.openai.com/v1/embeddings"

	// OpenAIKeyEnv holds the API key.
	OpenAIKeyEnv = "OPENAI_API_KEY"
)

// OpenAIProvider embeds with text-embedding-3-large over the REST API.
type OpenAIProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewOpenAIProvider creates the provider; the key is read from the
// environment at Init time.
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		endpoint: openAIEndpoint,
	}
}

var _ Provider = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) Init(_ context.Context) error {
	p.apiKey = os.Getenv(OpenAIKeyEnv)
	if p.apiKey == "" {
		return fmt.Errorf("%s is not set", OpenAIKeyEnv)
	}
	return nil
}

func (p *OpenAIProvider) Dimensions() int { return openAIDimensions }
func (p *OpenAIProvider) Name() string    { return openAIName }
func (p *OpenAIProvider) MaxChars() int   { return openAIMaxChars }

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openAIResponse
	err := postJSON(ctx, p.client, p.endpoint,
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		openAIRequest{Model: openAIModel, Input: []string{Truncate(text, p)}},
		&resp)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("openai embed: got %d results, want 1", len(resp.Data))
	}
	if err := checkDimensions(openAIName, len(resp.Data[0].Embedding), openAIDimensions); err != nil {
		return nil, err
	}
	return toFloat32(resp.Data[0].Embedding), nil
}
