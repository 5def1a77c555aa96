package search

import (
	"regexp"
	"strings"

	"github.com/pampa-ai/pampa/internal/store"
)

// Symbol boost weights. The additive boost is capped so lexical symbol
// matches sharpen, but never dominate, the dense ranking.
const (
	signatureBoostWeight = 0.3
	neighborBoostWeight  = 0.15
	maxSymbolBoost       = 0.45

	symbolInQueryWeight    = 4.0
	signatureInQueryWeight = 3.5
	paramTokenWeight       = 0.35
)

// SymbolMatchStrength scores how strongly a query names a symbol:
// whole-symbol and whole-signature containment, per-token symbol hits,
// and parameter-name hits, normalized into [0, 1].
func SymbolMatchStrength(queryLower, symbol, signature string, parameters []string) float64 {
	if symbol == "" {
		return 0
	}

	var weight float64
	if strings.Contains(queryLower, strings.ToLower(symbol)) {
		weight += symbolInQueryWeight
	}
	if signature != "" && strings.Contains(queryLower, strings.ToLower(signature)) {
		weight += signatureInQueryWeight
	}

	hits := 0
	for _, token := range identifierTokens(symbol) {
		if len(token) < 3 {
			continue
		}
		if tokenInQuery(queryLower, token) {
			hits++
		}
	}
	if hits > 0 {
		weight += 1 + 0.5*float64(hits-1)
	}

	for _, param := range parameters {
		for _, token := range identifierTokens(param) {
			if len(token) >= 3 && tokenInQuery(queryLower, token) {
				weight += paramTokenWeight
				break
			}
		}
	}

	strength := weight / 4
	if strength > 1 {
		strength = 1
	}
	return strength
}

var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// identifierTokens splits an identifier on camelCase and separator
// boundaries into lowercase tokens.
func identifierTokens(identifier string) []string {
	spaced := camelBoundaryRe.ReplaceAllString(identifier, "$1 $2")
	return Tokenize(spaced)
}

// tokenInQuery matches the token as a word prefix (`\btoken\w*\b`).
func tokenInQuery(queryLower, token string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(token)) + `\w*\b`)
	if err != nil {
		return false
	}
	return re.MatchString(queryLower)
}

// SymbolBoost computes the additive boost for a chunk: its own signature
// match strength plus the best match among its graph neighbors, capped.
func SymbolBoost(queryLower string, rec *store.ChunkRecord, codemap store.Codemap) float64 {
	if rec == nil {
		return 0
	}

	own := SymbolMatchStrength(queryLower, rec.Symbol, rec.SymbolSignature, rec.SymbolParameters)
	boost := own * signatureBoostWeight

	var bestNeighbor float64
	for _, sha := range rec.SymbolNeighbors {
		_, neighbor := codemap.BySha(sha)
		if neighbor == nil {
			continue
		}
		s := SymbolMatchStrength(queryLower, neighbor.Symbol, neighbor.SymbolSignature, neighbor.SymbolParameters)
		if s > bestNeighbor {
			bestNeighbor = s
		}
	}
	boost += bestNeighbor * neighborBoostWeight

	if boost > maxSymbolBoost {
		boost = maxSymbolBoost
	}
	return boost
}
