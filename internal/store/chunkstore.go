package store

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	perrors "github.com/pampa-ai/pampa/internal/errors"
)

// ChunkStore is the content-addressed artifact store under
// .pampa/chunks/. Exactly one of {sha}.gz / {sha}.gz.enc exists per sha.
type ChunkStore struct {
	dir     string
	key     []byte
	encrypt bool
	warned  bool
}

// NewChunkStore resolves the encryption preference and returns a store.
//   - EncryptOff never encrypts.
//   - EncryptOn requires a valid key and fails fast.
//   - EncryptAuto encrypts iff a valid key is configured; an invalid key
//     logs one warning and disables encryption.
func NewChunkStore(repoPath string, mode EncryptMode) (*ChunkStore, error) {
	cs := &ChunkStore{dir: ChunksDir(repoPath)}

	key, err := MasterKey()
	switch mode {
	case EncryptOff:
		// Key is still kept for reads of pre-existing encrypted chunks.
		if err == nil {
			cs.key = key
		}
	case EncryptOn:
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, perrors.New(perrors.CodeEncryptionKeyRequired,
				"encryption requested but "+EncryptionKeyEnv+" is not set", nil).
				WithSuggestion("export " + EncryptionKeyEnv + " with a 32-byte base64 or hex key")
		}
		cs.key = key
		cs.encrypt = true
	case EncryptAuto:
		if err != nil {
			if !cs.warned {
				slog.Warn("encryption_key_invalid", slog.String("reason", err.Error()))
				cs.warned = true
			}
		} else if key != nil {
			cs.key = key
			cs.encrypt = true
		}
	}

	return cs, nil
}

// Encrypting reports whether writes will be encrypted.
func (cs *ChunkStore) Encrypting() bool {
	return cs.encrypt
}

func (cs *ChunkStore) plainPath(sha string) string {
	return filepath.Join(cs.dir, sha+".gz")
}

func (cs *ChunkStore) encPath(sha string) string {
	return filepath.Join(cs.dir, sha+".gz.enc")
}

// Write stores the code text under its sha, replacing the other variant
// if present. Writes are atomic (temp file + rename).
func (cs *ChunkStore) Write(sha, code string) error {
	if err := os.MkdirAll(cs.dir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(code)); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	payload := buf.Bytes()
	target := cs.plainPath(sha)
	stale := cs.encPath(sha)
	if cs.encrypt {
		sealed, err := sealChunk(cs.key, payload)
		if err != nil {
			return err
		}
		payload = sealed
		target, stale = cs.encPath(sha), cs.plainPath(sha)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = os.Remove(stale)
	return nil
}

// Read returns the code text for a sha. Encrypted artifacts are preferred
// when both somehow exist. Missing sha yields chunk_not_found.
func (cs *ChunkStore) Read(sha string) (string, error) {
	if payload, err := os.ReadFile(cs.encPath(sha)); err == nil {
		return cs.readEncrypted(payload)
	}

	payload, err := os.ReadFile(cs.plainPath(sha))
	if err != nil {
		return "", perrors.New(perrors.CodeChunkNotFound,
			"chunk "+sha+" not found", err).
			WithSuggestion("run indexing on this project to rebuild chunk artifacts")
	}
	return gunzip(payload)
}

func (cs *ChunkStore) readEncrypted(payload []byte) (string, error) {
	if cs.key == nil {
		return "", perrors.New(perrors.CodeEncryptionKeyRequired,
			"chunk is encrypted and "+EncryptionKeyEnv+" is not set", nil).
			WithSuggestion("export " + EncryptionKeyEnv + " used at index time")
	}
	plain, err := openChunk(cs.key, payload)
	if err != nil {
		return "", err
	}
	return gunzip(plain)
}

func gunzip(payload []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Exists reports whether an artifact exists for the sha, and whether the
// stored variant is encrypted.
func (cs *ChunkStore) Exists(sha string) (exists, encrypted bool) {
	if _, err := os.Stat(cs.encPath(sha)); err == nil {
		return true, true
	}
	if _, err := os.Stat(cs.plainPath(sha)); err == nil {
		return true, false
	}
	return false, false
}

// Remove deletes both artifact variants for a sha.
func (cs *ChunkStore) Remove(sha string) {
	_ = os.Remove(cs.plainPath(sha))
	_ = os.Remove(cs.encPath(sha))
}
