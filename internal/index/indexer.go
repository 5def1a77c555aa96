// Package index orchestrates indexing runs: file discovery, Merkle-gated
// change detection, chunk extraction, embedding, artifact and database
// persistence, and the final codemap rewrite.
package index

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/pampa-ai/pampa/internal/chunk"
	"github.com/pampa-ai/pampa/internal/embed"
	perrors "github.com/pampa-ai/pampa/internal/errors"
	"github.com/pampa-ai/pampa/internal/merkle"
	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/internal/store"
)

// lockFileName serializes indexers per repository.
const lockFileName = "index.lock"

// ignoredDirs are never walked.
var ignoredDirs = map[string]bool{
	"node_modules": true, ".git": true, ".pampa": true, "dist": true,
	"build": true, "tmp": true, ".tmp": true, "vendor": true,
}

// ErrorEntry is one recovered per-file or per-chunk failure.
type ErrorEntry struct {
	Code    string `json:"code"`
	File    string `json:"file"`
	Message string `json:"message"`
}

// Result summarizes an indexing run.
type Result struct {
	Success         bool         `json:"success"`
	ProcessedChunks int          `json:"processedChunks"`
	TotalChunks     int          `json:"totalChunks"`
	Provider        string       `json:"provider"`
	Errors          []ErrorEntry `json:"errors"`
}

// Options configures one indexing run.
type Options struct {
	RepoPath string
	Provider embed.Provider

	// ChangedFiles/DeletedFiles switch the run to partial mode (used by
	// the watcher). Paths are repo-relative.
	ChangedFiles []string
	DeletedFiles []string

	EncryptMode store.EncryptMode

	// OnProgress is called after each processed file.
	OnProgress func(processed, total int)

	// BM25Cache, when set, is invalidated on any index mutation.
	BM25Cache *search.BM25Cache

	Logger *slog.Logger
}

// Sha1Hex is the chunk content hash: SHA-1 of the UTF-8 code text,
// lowercase hex.
func Sha1Hex(code string) string {
	sum := sha1.Sum([]byte(code))
	return hex.EncodeToString(sum[:])
}

// IndexProject runs one indexing pass. Per-file and per-chunk failures
// are accumulated and returned; the run itself still succeeds.
func IndexProject(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{Provider: opts.Provider.Name(), Errors: []ErrorEntry{}}

	pampaDir := store.PampaDir(opts.RepoPath)
	if err := os.MkdirAll(pampaDir, 0o755); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(pampaDir, lockFileName))
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	chunks, err := store.NewChunkStore(opts.RepoPath, opts.EncryptMode)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenDB(opts.RepoPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	codemap, err := store.LoadCodemap(opts.RepoPath)
	if err != nil {
		return nil, err
	}
	merkleMap := merkle.Load(pampaDir)

	extractor := chunk.NewExtractor()
	defer extractor.Close()

	partial := len(opts.ChangedFiles) > 0 || len(opts.DeletedFiles) > 0
	files, err := resolveFiles(opts.RepoPath, opts.ChangedFiles, partial)
	if err != nil {
		return nil, err
	}

	run := &indexRun{
		opts:      opts,
		logger:    logger,
		chunks:    chunks,
		db:        db,
		codemap:   codemap,
		merkle:    merkleMap,
		extractor: extractor,
		result:    res,
	}

	mutated := false
	for i, rel := range files {
		changed, err := run.processFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		mutated = mutated || changed
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(files))
		}
	}

	// Purge removed files: everything tracked but gone on full runs,
	// only the explicit deletions on partial runs.
	var purge []string
	if partial {
		purge = opts.DeletedFiles
	} else {
		onDisk := make(map[string]bool, len(files))
		for _, rel := range files {
			onDisk[rel] = true
		}
		for _, rel := range merkleMap.Files() {
			if !onDisk[rel] {
				purge = append(purge, rel)
			}
		}
	}
	for _, rel := range purge {
		if run.purgeFile(ctx, rel) {
			mutated = true
		}
	}

	if !partial {
		// Codemap is authoritative: drop DB rows it no longer names.
		keep := make(map[string]bool, len(codemap))
		for id := range codemap {
			keep[id] = true
		}
		if err := db.DeleteChunksNotIn(ctx, keep); err != nil {
			return nil, err
		}
	}

	res.TotalChunks = len(codemap)

	if mutated {
		if opts.BM25Cache != nil {
			opts.BM25Cache.Invalidate(opts.RepoPath)
		}
		codemap.AttachSymbolGraph()
	}

	// Write order is part of the crash-safety contract: Merkle after all
	// chunk and DB updates, the codemap exactly once, last.
	if err := merkleMap.Save(pampaDir); err != nil {
		return nil, err
	}
	if err := codemap.Save(opts.RepoPath); err != nil {
		return nil, err
	}

	res.Success = true
	return res, nil
}

type indexRun struct {
	opts      Options
	logger    *slog.Logger
	chunks    *store.ChunkStore
	db        *store.DB
	codemap   store.Codemap
	merkle    *merkle.Map
	extractor *chunk.Extractor
	result    *Result
}

// processFile indexes one file. Returns whether the index mutated.
func (r *indexRun) processFile(ctx context.Context, rel string) (bool, error) {
	abs := filepath.Join(r.opts.RepoPath, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		r.addError(perrors.CodeProcessingError, rel, err.Error())
		return false, nil
	}

	// Merkle gate: identical bytes and a complete codemap mean the file
	// can be skipped outright.
	if r.merkle.Unchanged(rel, content) &&
		len(r.codemap.IDsForFile(rel)) == len(r.merkle.ChunkShas(rel)) &&
		len(r.merkle.ChunkShas(rel)) > 0 {
		return false, nil
	}

	extracted, supported := r.extractor.Extract(ctx, rel, content)
	if !supported {
		return false, nil
	}
	if len(extracted) == 1 && extracted[0].Type == chunk.TypeFile {
		r.addError(perrors.CodeProcessingError, rel,
			"parse failed, indexed as whole-file fallback chunk")
	}

	seen := make(map[string]bool, len(extracted))
	chunkTexts := make([]string, 0, len(extracted))
	stored := 0
	mutated := false

	for _, c := range extracted {
		sha := Sha1Hex(c.Code)
		id := store.ChunkID(rel, c.Symbol, sha)
		if seen[id] {
			continue
		}
		seen[id] = true
		chunkTexts = append(chunkTexts, c.Code)

		if existing, ok := r.codemap[id]; ok && existing.Sha == sha &&
			existing.Provider == r.opts.Provider.Name() {
			if exists, _ := r.chunks.Exists(sha); exists {
				stored++
				continue
			}
		}

		if err := r.storeChunk(ctx, rel, c, sha, id); err != nil {
			code := perrors.CodeIndexingError
			if c.Type == chunk.TypeFile {
				// Even the whole-file fallback failed; skip the file.
				code = perrors.CodeFallbackError
			}
			r.addError(code, rel, err.Error())
			continue
		}
		stored++
		mutated = true
		r.result.ProcessedChunks++
	}

	// Chunks from earlier runs that no longer exist in the file.
	for _, id := range r.codemap.IDsForFile(rel) {
		if seen[id] {
			continue
		}
		r.removeChunk(ctx, id)
		mutated = true
	}

	if stored > 0 {
		r.merkle.Update(rel, content, chunkTexts)
	}
	return mutated, nil
}

// storeChunk embeds and persists one chunk. On any failure both the
// artifact and the DB row end up absent.
func (r *indexRun) storeChunk(ctx context.Context, rel string, c *chunk.Chunk, sha, id string) error {
	varNames := make([]string, len(c.Variables))
	for i, v := range c.Variables {
		varNames[i] = v.Name
	}

	doc := embed.BuildDocument(c.DocComment, c.Code, c.Intent, c.Description, c.Tags, varNames)
	vector, err := r.opts.Provider.Embed(ctx, embed.Truncate(doc, r.opts.Provider))
	if err != nil {
		return err
	}

	variablesJSON, err := json.Marshal(c.Variables)
	if err != nil {
		return err
	}

	if err := r.chunks.Write(sha, c.Code); err != nil {
		return err
	}

	row := &store.ChunkRow{
		ID:          id,
		FilePath:    rel,
		Symbol:      c.Symbol,
		Sha:         sha,
		Lang:        c.Lang,
		ChunkType:   string(c.Type),
		Embedding:   vector,
		Provider:    r.opts.Provider.Name(),
		Dimensions:  r.opts.Provider.Dimensions(),
		Tags:        c.Tags,
		Intent:      c.Intent,
		Description: c.Description,
		DocComments: c.DocComment,
		Variables:   variablesJSON,
	}
	if err := r.db.UpsertChunk(ctx, row); err != nil {
		r.chunks.Remove(sha)
		return err
	}

	rec := &store.ChunkRecord{
		File:             rel,
		Symbol:           c.Symbol,
		Sha:              sha,
		Lang:             c.Lang,
		ChunkType:        string(c.Type),
		Provider:         r.opts.Provider.Name(),
		Dimensions:       r.opts.Provider.Dimensions(),
		HasPampaTags:     c.PampaTagged,
		HasIntent:        c.Intent != "",
		HasDocumentation: c.DocComment != "",
		VariableCount:    len(c.Variables),
		Encrypted:        r.chunks.Encrypting(),
		SymbolSignature:  c.Signature.Raw,
		SymbolParameters: c.Signature.Parameters,
		SymbolReturn:     c.Signature.Return,
		SymbolCalls:      c.Calls,
	}
	rec.Normalize()
	r.codemap[id] = rec
	return nil
}

// removeChunk deletes a stale chunk everywhere. The artifact survives if
// another codemap entry still references the same sha.
func (r *indexRun) removeChunk(ctx context.Context, id string) {
	rec, ok := r.codemap[id]
	if !ok {
		return
	}
	delete(r.codemap, id)

	shared := false
	for _, other := range r.codemap {
		if other.Sha == rec.Sha {
			shared = true
			break
		}
	}
	if !shared {
		r.chunks.Remove(rec.Sha)
	}
	if err := r.db.DeleteChunk(ctx, id); err != nil {
		r.logger.Warn("chunk_row_delete_failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}
}

// purgeFile removes every chunk of a deleted file.
func (r *indexRun) purgeFile(ctx context.Context, rel string) bool {
	ids := r.codemap.IDsForFile(rel)
	for _, id := range ids {
		r.removeChunk(ctx, id)
	}
	had := r.merkle.Has(rel)
	r.merkle.Remove(rel)
	return len(ids) > 0 || had
}

func (r *indexRun) addError(code, file, message string) {
	r.result.Errors = append(r.result.Errors, ErrorEntry{Code: code, File: file, Message: message})
}

// resolveFiles lists the files for this run: the explicit changed set in
// partial mode, or a full walk of supported files otherwise.
func resolveFiles(repoPath string, changed []string, partial bool) ([]string, error) {
	if partial {
		out := make([]string, 0, len(changed))
		for _, rel := range changed {
			rel = filepath.ToSlash(rel)
			if chunk.RuleForPath(rel) == nil {
				continue
			}
			if _, err := os.Stat(filepath.Join(repoPath, filepath.FromSlash(rel))); err == nil {
				out = append(out, rel)
			}
		}
		return out, nil
	}

	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] && path != repoPath {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, ".") {
			return nil
		}
		if chunk.RuleForPath(rel) != nil {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
