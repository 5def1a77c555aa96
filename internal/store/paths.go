// Package store is the persistence layer: content-addressed chunk
// artifacts (optionally encrypted), the version-controllable codemap, and
// the SQLite embedding store.
package store

import "path/filepath"

// Well-known on-disk names. These are compatibility-critical: other PAMPA
// implementations read and write the same layout.
const (
	PampaDirName  = ".pampa"
	ChunksDirName = "chunks"
	DBFileName    = "pampa.db"
	CodemapName   = "pampa.codemap.json"
)

// PampaDir returns the .pampa directory for a repo root.
func PampaDir(repoPath string) string {
	return filepath.Join(repoPath, PampaDirName)
}

// ChunksDir returns the chunk artifact directory.
func ChunksDir(repoPath string) string {
	return filepath.Join(PampaDir(repoPath), ChunksDirName)
}

// DBPath returns the SQLite database path.
func DBPath(repoPath string) string {
	return filepath.Join(PampaDir(repoPath), DBFileName)
}

// CodemapPath returns the codemap path at the repo root.
func CodemapPath(repoPath string) string {
	return filepath.Join(repoPath, CodemapName)
}
