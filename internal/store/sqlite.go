package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	perrors "github.com/pampa-ai/pampa/internal/errors"
)

// ChunkRow is one code_chunks row.
type ChunkRow struct {
	ID          string
	FilePath    string
	Symbol      string
	Sha         string
	Lang        string
	ChunkType   string
	Embedding   []float32
	Provider    string
	Dimensions  int
	Tags        []string
	Intent      string
	Description string
	DocComments string
	Variables   json.RawMessage
	ContextInfo json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IntentionRow is one intention_cache row joined with its chunk.
type IntentionRow struct {
	QueryNormalized string
	OriginalQuery   string
	TargetSha       string
	Confidence      float64
	UsageCount      int
	FilePath        string
	Symbol          string
	Lang            string
	ChunkType       string
}

// PatternRow is one query_patterns row.
type PatternRow struct {
	Pattern   string
	Frequency int
	UpdatedAt time.Time
}

// DB is a short-lived handle on the embedding store. Open one per
// operation and close it when done; SQLite in WAL mode handles the rest.
type DB struct {
	db *sql.DB
}

// OpenDB opens (or creates) the embedding store and ensures the schema.
func OpenDB(repoPath string) (*DB, error) {
	path := DBPath(repoPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return openAt(path)
}

// OpenExistingDB opens the store only if it already exists, returning the
// stable database_not_found error otherwise.
func OpenExistingDB(repoPath string) (*DB, error) {
	path := DBPath(repoPath)
	if _, err := os.Stat(path); err != nil {
		return nil, perrors.New(perrors.CodeDatabaseNotFound,
			"no PAMPA database found at "+path, err).
			WithSuggestion("run indexing on directory " + repoPath + " first")
	}
	return openAt(path)
}

func openAt(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer prevents lock contention; short-lived handles make
	// the pool effectively one connection anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return d, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS code_chunks (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		symbol TEXT NOT NULL,
		sha TEXT NOT NULL,
		lang TEXT NOT NULL,
		chunk_type TEXT NOT NULL,
		embedding BLOB,
		embedding_provider TEXT,
		embedding_dimensions INTEGER,
		pampa_tags TEXT,
		pampa_intent TEXT,
		pampa_description TEXT,
		doc_comments TEXT,
		variables_used TEXT,
		context_info TEXT,
		created_at TEXT,
		updated_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON code_chunks(file_path);
	CREATE INDEX IF NOT EXISTS idx_chunks_symbol ON code_chunks(symbol);
	CREATE INDEX IF NOT EXISTS idx_chunks_lang ON code_chunks(lang);
	CREATE INDEX IF NOT EXISTS idx_chunks_provider ON code_chunks(embedding_provider);
	CREATE INDEX IF NOT EXISTS idx_chunks_type ON code_chunks(chunk_type);
	CREATE INDEX IF NOT EXISTS idx_chunks_tags ON code_chunks(pampa_tags);
	CREATE INDEX IF NOT EXISTS idx_chunks_intent ON code_chunks(pampa_intent);
	CREATE INDEX IF NOT EXISTS idx_chunks_lang_provider_dims
		ON code_chunks(lang, embedding_provider, embedding_dimensions);

	CREATE TABLE IF NOT EXISTS intention_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_normalized TEXT NOT NULL,
		original_query TEXT,
		target_sha TEXT NOT NULL,
		confidence REAL DEFAULT 1.0,
		usage_count INTEGER DEFAULT 1,
		created_at TEXT,
		last_used TEXT,
		UNIQUE(query_normalized, target_sha)
	);
	CREATE INDEX IF NOT EXISTS idx_intention_query ON intention_cache(query_normalized);

	CREATE TABLE IF NOT EXISTS query_patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern TEXT UNIQUE NOT NULL,
		frequency INTEGER DEFAULT 1,
		typical_results TEXT,
		created_at TEXT,
		updated_at TEXT
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// encodeEmbedding serializes a vector as little-endian float32 bytes.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding reverses encodeEmbedding.
func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// UpsertChunk inserts or replaces a chunk row by primary key.
func (d *DB) UpsertChunk(ctx context.Context, row *ChunkRow) error {
	if len(row.Embedding) != row.Dimensions {
		return fmt.Errorf("embedding length %d != dimensions %d for %s",
			len(row.Embedding), row.Dimensions, row.ID)
	}

	tags, err := json.Marshal(row.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	created := now
	if !row.CreatedAt.IsZero() {
		created = row.CreatedAt.UTC().Format(time.RFC3339)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO code_chunks (
			id, file_path, symbol, sha, lang, chunk_type,
			embedding, embedding_provider, embedding_dimensions,
			pampa_tags, pampa_intent, pampa_description, doc_comments,
			variables_used, context_info, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.FilePath, row.Symbol, row.Sha, row.Lang, row.ChunkType,
		encodeEmbedding(row.Embedding), row.Provider, row.Dimensions,
		string(tags), row.Intent, row.Description, row.DocComments,
		nullableJSON(row.Variables), nullableJSON(row.ContextInfo),
		created, now)
	return err
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// DeleteChunk removes a chunk row by id.
func (d *DB) DeleteChunk(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM code_chunks WHERE id = ?`, id)
	return err
}

// DeleteChunksNotIn removes every row whose id is absent from keep.
// Used by codemap reconciliation after a full index run.
func (d *DB) DeleteChunksNotIn(ctx context.Context, keep map[string]bool) error {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM code_chunks`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, id := range stale {
		if err := d.DeleteChunk(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ChunksForProvider loads all rows matching (provider, dimensions),
// embeddings included.
func (d *DB) ChunksForProvider(ctx context.Context, provider string, dimensions int) ([]*ChunkRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, file_path, symbol, sha, lang, chunk_type, embedding,
		       embedding_provider, embedding_dimensions, pampa_tags,
		       pampa_intent, pampa_description, doc_comments
		FROM code_chunks
		WHERE embedding_provider = ? AND embedding_dimensions = ?`,
		provider, dimensions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

// RecentChunks returns the most recently updated rows.
func (d *DB) RecentChunks(ctx context.Context, limit int) ([]*ChunkRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, file_path, symbol, sha, lang, chunk_type, embedding,
		       embedding_provider, embedding_dimensions, pampa_tags,
		       pampa_intent, pampa_description, doc_comments
		FROM code_chunks
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

func scanChunkRows(rows *sql.Rows) ([]*ChunkRow, error) {
	var out []*ChunkRow
	for rows.Next() {
		var (
			r        ChunkRow
			emb      []byte
			tags     sql.NullString
			intent   sql.NullString
			desc     sql.NullString
			doc      sql.NullString
			provider sql.NullString
			dims     sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.FilePath, &r.Symbol, &r.Sha, &r.Lang,
			&r.ChunkType, &emb, &provider, &dims, &tags, &intent, &desc, &doc); err != nil {
			return nil, err
		}
		r.Embedding = decodeEmbedding(emb)
		r.Provider = provider.String
		r.Dimensions = int(dims.Int64)
		r.Intent = intent.String
		r.Description = desc.String
		r.DocComments = doc.String
		if tags.Valid && tags.String != "" {
			_ = json.Unmarshal([]byte(tags.String), &r.Tags)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountChunks returns the total row count, plus the count matching
// (provider, dimensions) when provider is non-empty.
func (d *DB) CountChunks(ctx context.Context, provider string, dimensions int) (total, matching int, err error) {
	if err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM code_chunks`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if provider == "" {
		return total, total, nil
	}
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM code_chunks
		WHERE embedding_provider = ? AND embedding_dimensions = ?`,
		provider, dimensions).Scan(&matching)
	return total, matching, err
}

// LookupIntention returns the best cached mapping for a normalized query,
// joined with its chunk row, or nil when absent.
func (d *DB) LookupIntention(ctx context.Context, queryNormalized string) (*IntentionRow, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT i.query_normalized, i.original_query, i.target_sha,
		       i.confidence, i.usage_count,
		       c.file_path, c.symbol, c.lang, c.chunk_type
		FROM intention_cache i
		JOIN code_chunks c ON c.sha = i.target_sha
		WHERE i.query_normalized = ?
		ORDER BY i.confidence DESC, i.usage_count DESC
		LIMIT 1`, queryNormalized)

	var r IntentionRow
	var original sql.NullString
	err := row.Scan(&r.QueryNormalized, &original, &r.TargetSha,
		&r.Confidence, &r.UsageCount, &r.FilePath, &r.Symbol, &r.Lang, &r.ChunkType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.OriginalQuery = original.String
	return &r, nil
}

// UpsertIntention records or reinforces a query→sha mapping.
func (d *DB) UpsertIntention(ctx context.Context, queryNormalized, originalQuery, targetSha string, confidence float64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO intention_cache
			(query_normalized, original_query, target_sha, confidence, usage_count, created_at, last_used)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(query_normalized, target_sha) DO UPDATE SET
			confidence = excluded.confidence,
			usage_count = intention_cache.usage_count + 1,
			last_used = excluded.last_used`,
		queryNormalized, originalQuery, targetSha, confidence, now, now)
	return err
}

// RecordPattern bumps the frequency of a masked query pattern.
// typical_results is reserved and intentionally never written.
func (d *DB) RecordPattern(ctx context.Context, pattern string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO query_patterns (pattern, frequency, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			frequency = query_patterns.frequency + 1,
			updated_at = excluded.updated_at`,
		pattern, now, now)
	return err
}

// TopPatterns returns the most frequent patterns.
func (d *DB) TopPatterns(ctx context.Context, limit int) ([]*PatternRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT pattern, frequency, updated_at FROM query_patterns
		ORDER BY frequency DESC, updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PatternRow
	for rows.Next() {
		var r PatternRow
		var updated string
		if err := rows.Scan(&r.Pattern, &r.Frequency, &updated); err != nil {
			return nil, err
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// IntentionStats summarizes the intention cache for analytics.
func (d *DB) IntentionStats(ctx context.Context) (count int, avgConfidence float64, err error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM intention_cache`)
	err = row.Scan(&count, &avgConfidence)
	return count, avgConfidence, err
}
