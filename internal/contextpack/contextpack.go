// Package contextpack manages reusable search-scope presets stored under
// .pampa/contextpacks/. A pack bundles path/tag/language filters and
// retrieval toggles; activating one makes it the default scope for every
// search until deactivated or overridden.
package contextpack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/internal/store"
)

const (
	// DirName is the pack directory under .pampa.
	DirName = "contextpacks"

	// ActiveFileName records the persisted active pack.
	ActiveFileName = "active-pack.json"

	packCacheSize = 32
)

// deactivationKeys clear the session pack instead of naming one.
var deactivationKeys = map[string]bool{
	"clear": true, "none": true, "default": true,
}

// Pack is one named scope preset.
type Pack struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`

	PathGlob    string   `json:"path_glob,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Lang        []string `json:"lang,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Reranker    string   `json:"reranker,omitempty"`
	Hybrid      *bool    `json:"hybrid,omitempty"`
	BM25        *bool    `json:"bm25,omitempty"`
	SymbolBoost *bool    `json:"symbol_boost,omitempty"`

	// Err carries the validation error for invalid placeholder packs
	// returned by List.
	Err string `json:"error,omitempty"`
}

// Scope converts the pack to a search scope.
func (p *Pack) Scope() *search.Scope {
	return &search.Scope{
		PathGlob:    p.PathGlob,
		Tags:        p.Tags,
		Lang:        p.Lang,
		Provider:    p.Provider,
		Reranker:    p.Reranker,
		Hybrid:      p.Hybrid,
		BM25:        p.BM25,
		SymbolBoost: p.SymbolBoost,
	}
}

// Validate checks pack fields against the schema.
func (p *Pack) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("pack is missing key")
	}
	switch strings.ToLower(p.Reranker) {
	case "", search.RerankerOff, search.RerankerTransformers:
	default:
		return fmt.Errorf("pack %s: reranker must be %q or %q",
			p.Key, search.RerankerOff, search.RerankerTransformers)
	}
	return nil
}

// ActivePack is the persisted activation record.
type ActivePack struct {
	Key       string `json:"key"`
	AppliedAt string `json:"appliedAt"`
}

type cacheEntry struct {
	pack    *Pack
	modTime time.Time
}

// Manager loads, validates, activates and resolves context packs for one
// repository. Safe for concurrent use.
type Manager struct {
	repoPath string

	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]

	// sessionPack overrides the persisted active pack for this process.
	sessionMu   sync.RWMutex
	sessionPack string
	sessionSet  bool
}

// NewManager creates a pack manager for a repository.
func NewManager(repoPath string) *Manager {
	cache, _ := lru.New[string, cacheEntry](packCacheSize)
	return &Manager{repoPath: repoPath, cache: cache}
}

func (m *Manager) dir() string {
	return filepath.Join(store.PampaDir(m.repoPath), DirName)
}

func (m *Manager) packPath(key string) string {
	return filepath.Join(m.dir(), key+".json")
}

// List enumerates all packs. Invalid files are returned as placeholder
// packs with the validation error embedded rather than dropped.
func (m *Manager) List() ([]*Pack, error) {
	entries, err := os.ReadDir(m.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var packs []*Pack
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == ActiveFileName {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		pack, err := m.Load(key)
		if err != nil {
			packs = append(packs, &Pack{Key: key, Err: err.Error()})
			continue
		}
		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].Key < packs[j].Key })
	return packs, nil
}

// Load parses and validates one pack, cached by (path, mtime).
func (m *Manager) Load(key string) (*Pack, error) {
	path := m.packPath(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("context pack %s: %w", key, err)
	}

	m.mu.Lock()
	if entry, ok := m.cache.Get(path); ok && entry.modTime.Equal(info.ModTime()) {
		m.mu.Unlock()
		return entry.pack, nil
	}
	m.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("context pack %s: %w", key, err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("context pack %s: invalid JSON: %w", key, err)
	}
	if pack.Key == "" {
		pack.Key = key
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache.Add(path, cacheEntry{pack: &pack, modTime: info.ModTime()})
	m.mu.Unlock()
	return &pack, nil
}

// Save writes a pack file.
func (m *Manager) Save(pack *Pack) error {
	if err := pack.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.packPath(pack.Key), append(data, '\n'), 0o644)
}

// SetActive persists the active pack with a timestamp. The pack must
// exist and validate.
func (m *Manager) SetActive(key string) error {
	if _, err := m.Load(key); err != nil {
		return err
	}
	if err := os.MkdirAll(m.dir(), 0o755); err != nil {
		return err
	}
	record := ActivePack{Key: key, AppliedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir(), ActiveFileName), append(data, '\n'), 0o644)
}

// Active returns the persisted active pack key, or empty.
func (m *Manager) Active() string {
	data, err := os.ReadFile(filepath.Join(m.dir(), ActiveFileName))
	if err != nil {
		return ""
	}
	var record ActivePack
	if err := json.Unmarshal(data, &record); err != nil {
		return ""
	}
	return record.Key
}

// UseSession sets (or clears, for "clear"/"none"/"default") the
// session-level pack override. Returns whether a pack is now active for
// the session.
func (m *Manager) UseSession(key string) (bool, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if deactivationKeys[strings.ToLower(strings.TrimSpace(key))] {
		m.sessionPack = ""
		m.sessionSet = true
		return false, nil
	}
	if _, err := m.Load(key); err != nil {
		return false, err
	}
	m.sessionPack = key
	m.sessionSet = true
	return true, nil
}

// ResolveScope merges the effective pack defaults with caller overrides:
// session pack (when set) beats the persisted active pack, and explicit
// caller fields beat both.
func (m *Manager) ResolveScope(overrides *search.Scope) *search.Scope {
	key := m.Active()
	m.sessionMu.RLock()
	if m.sessionSet {
		key = m.sessionPack
	}
	m.sessionMu.RUnlock()

	var base *search.Scope
	if key != "" {
		if pack, err := m.Load(key); err == nil {
			base = pack.Scope()
		}
	}
	return search.MergeScopes(base, overrides)
}
