// Package merkle tracks per-file and per-chunk fast hashes so unchanged
// files can be skipped on re-index. Hashes are xxhash64 (non-cryptographic);
// content identity is still the chunk SHA, this map only gates work.
package merkle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FileName is the on-disk name under the .pampa directory.
const FileName = "merkle.json"

// FileEntry records the hashes observed for one indexed file.
type FileEntry struct {
	ShaFile   string   `json:"shaFile"`
	ChunkShas []string `json:"chunkShas"`
}

// Map is the persisted change-detection state, keyed by repo-relative path.
type Map struct {
	entries map[string]*FileEntry
	dirty   bool
}

// Hash returns the decimal rendering of xxhash64 over the bytes.
func Hash(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 10)
}

// HashString hashes a string without copying.
func HashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 10)
}

// Load reads the merkle map from the .pampa directory. A missing or
// unreadable file yields an empty map; change detection then simply
// re-processes everything.
func Load(pampaDir string) *Map {
	m := &Map{entries: make(map[string]*FileEntry)}

	data, err := os.ReadFile(filepath.Join(pampaDir, FileName))
	if err != nil {
		return m
	}
	var raw map[string]*FileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return m
	}
	for k, v := range raw {
		if v != nil {
			m.entries[k] = v
		}
	}
	return m
}

// Save writes the map atomically next to the other .pampa artifacts.
func (m *Map) Save(pampaDir string) error {
	if err := os.MkdirAll(pampaDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(pampaDir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	m.dirty = false
	return nil
}

// Unchanged reports whether the file content hash matches the stored one.
// Callers must additionally verify the codemap still holds every chunk
// before skipping the file.
func (m *Map) Unchanged(relPath string, content []byte) bool {
	e, ok := m.entries[relPath]
	return ok && e.ShaFile == Hash(content)
}

// ChunkShas returns the stored chunk hashes for a file.
func (m *Map) ChunkShas(relPath string) []string {
	if e, ok := m.entries[relPath]; ok {
		return e.ChunkShas
	}
	return nil
}

// Update records the current hashes for a file.
func (m *Map) Update(relPath string, content []byte, chunkTexts []string) {
	shas := make([]string, len(chunkTexts))
	for i, t := range chunkTexts {
		shas[i] = HashString(t)
	}
	m.entries[relPath] = &FileEntry{ShaFile: Hash(content), ChunkShas: shas}
	m.dirty = true
}

// Remove drops a file from the map.
func (m *Map) Remove(relPath string) {
	if _, ok := m.entries[relPath]; ok {
		delete(m.entries, relPath)
		m.dirty = true
	}
}

// Files returns all tracked file paths.
func (m *Map) Files() []string {
	files := make([]string, 0, len(m.entries))
	for k := range m.entries {
		files = append(files, k)
	}
	return files
}

// Has reports whether the file is tracked.
func (m *Map) Has(relPath string) bool {
	_, ok := m.entries[relPath]
	return ok
}
