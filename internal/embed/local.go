package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// Local provider constants mirroring the MiniLM-L6-v2 contract.
const (
	localDimensions = 384
	localMaxChars   = 512
	localName       = "transformers"
)

// Hash-projection weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var localTokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// programmingStopWords are keywords that carry no retrieval signal.
var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// LocalProvider is a deterministic hash-projection embedder that stands in
// for the local transformer model: no network, no model download, stable
// vectors for a given text. Retrieval quality is reduced accordingly, but
// the (provider, dimensions) contract matches MiniLM-L6-v2.
type LocalProvider struct{}

// NewLocalProvider creates the local embedder.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

var _ Provider = (*LocalProvider)(nil)

func (e *LocalProvider) Init(_ context.Context) error { return nil }
func (e *LocalProvider) Dimensions() int              { return localDimensions }
func (e *LocalProvider) Name() string                 { return localName }
func (e *LocalProvider) MaxChars() int                { return localMaxChars }

// Embed generates a normalized hash-projection vector.
func (e *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, localDimensions), nil
	}

	vector := make([]float32, localDimensions)

	for _, token := range tokenizeCode(trimmed) {
		vector[hashToIndex(token, localDimensions)] += tokenWeight
	}
	for _, ngram := range extractNgrams(strings.ToLower(trimmed), ngramSize) {
		vector[hashToIndex(ngram, localDimensions)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// tokenizeCode splits text into lowercase code-aware tokens, breaking
// camelCase and snake_case and dropping keyword noise.
func tokenizeCode(text string) []string {
	var tokens []string
	for _, word := range localTokenRe.FindAllString(text, -1) {
		for _, sub := range splitCodeToken(word) {
			lower := strings.ToLower(sub)
			if lower != "" && !programmingStopWords[lower] {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		return strings.Split(token, "_")
	}

	var parts []string
	start := 0
	for i := 1; i < len(token); i++ {
		if token[i] >= 'A' && token[i] <= 'Z' && token[i-1] >= 'a' && token[i-1] <= 'z' {
			parts = append(parts, token[start:i])
			start = i
		}
	}
	parts = append(parts, token[start:])
	return parts
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i+n <= len(text); i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
