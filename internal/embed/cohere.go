package embed

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

// Cohere provider constants.
const (
	cohereName       = "cohere"
	cohereModel      = "embed-english-v3.0"
	cohereDimensions = 1024
	cohereMaxChars   = 4096
	cohereEndpoint   = "https://api.cohere.ai/v1/embed"

	// CohereKeyEnv holds the API key.
	CohereKeyEnv = "COHERE_API_KEY"
)

// CohereProvider embeds with embed-english-v3.0 over the REST API.
type CohereProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewCohereProvider creates the provider; the key is read at Init time.
func NewCohereProvider() *CohereProvider {
	return &CohereProvider{
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		endpoint: cohereEndpoint,
	}
}

var _ Provider = (*CohereProvider)(nil)

func (p *CohereProvider) Init(_ context.Context) error {
	p.apiKey = os.Getenv(CohereKeyEnv)
	if p.apiKey == "" {
		return fmt.Errorf("%s is not set", CohereKeyEnv)
	}
	return nil
}

func (p *CohereProvider) Dimensions() int { return cohereDimensions }
func (p *CohereProvider) Name() string    { return cohereName }
func (p *CohereProvider) MaxChars() int   { return cohereMaxChars }

type cohereRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *CohereProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp cohereResponse
	err := postJSON(ctx, p.client, p.endpoint,
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		cohereRequest{
			Model:     cohereModel,
			Texts:     []string{Truncate(text, p)},
			InputType: "search_document",
		}, &resp)
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if len(resp.Embeddings) != 1 {
		return nil, fmt.Errorf("cohere embed: got %d results, want 1", len(resp.Embeddings))
	}
	if err := checkDimensions(cohereName, len(resp.Embeddings[0]), cohereDimensions); err != nil {
		return nil, err
	}
	return toFloat32(resp.Embeddings[0]), nil
}
