package search

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/pampa-ai/pampa/internal/store"
)

// FilterChunks applies the scope's path/tag/lang filters. Path globs are
// case-sensitive and dot-aware ('*' does not cross '/'); tag and lang
// matching is case-insensitive.
func FilterChunks(rows []*store.ChunkRow, scope *Scope) ([]*store.ChunkRow, error) {
	if scope == nil {
		return rows, nil
	}

	var matcher glob.Glob
	if scope.PathGlob != "" {
		g, err := glob.Compile(scope.PathGlob, '/')
		if err != nil {
			return nil, err
		}
		matcher = g
	}

	wantTags := lowerSet(scope.Tags)
	wantLangs := lowerSet(scope.Lang)

	out := rows[:0:0]
	for _, row := range rows {
		if matcher != nil && !matcher.Match(row.FilePath) {
			continue
		}
		if len(wantLangs) > 0 && !wantLangs[strings.ToLower(row.Lang)] {
			continue
		}
		if len(wantTags) > 0 && !intersectsLower(row.Tags, wantTags) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func lowerSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			set[strings.ToLower(v)] = true
		}
	}
	return set
}

func intersectsLower(values []string, set map[string]bool) bool {
	for _, v := range values {
		if set[strings.ToLower(v)] {
			return true
		}
	}
	return false
}

// MergeScopes layers overrides onto a base scope (pack defaults first,
// caller overrides last). Nil fields in the override leave the base value.
func MergeScopes(base, override *Scope) *Scope {
	merged := &Scope{}
	if base != nil {
		*merged = *base
	}
	if override == nil {
		return merged
	}

	if override.PathGlob != "" {
		merged.PathGlob = override.PathGlob
	}
	if len(override.Tags) > 0 {
		merged.Tags = override.Tags
	}
	if len(override.Lang) > 0 {
		merged.Lang = override.Lang
	}
	if override.Provider != "" {
		merged.Provider = override.Provider
	}
	if override.Reranker != "" {
		merged.Reranker = override.Reranker
	}
	if override.Hybrid != nil {
		merged.Hybrid = override.Hybrid
	}
	if override.BM25 != nil {
		merged.BM25 = override.BM25
	}
	if override.SymbolBoost != nil {
		merged.SymbolBoost = override.SymbolBoost
	}
	return merged
}
