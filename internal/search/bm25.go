package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pampa-ai/pampa/internal/store"
)

const (
	// bm25AnalyzerName is the custom code analyzer registered with bleve.
	bm25AnalyzerName = "pampa_code"

	// bm25CacheSize bounds how many per-(root,provider,dims) indexes stay
	// resident. Each index is in-memory only and rebuilt lazily.
	bm25CacheSize = 8
)

// Tokenize implements the BM25 tokenizer contract: lowercase, replace
// any rune that is not a letter or digit with a space, split, drop empties.
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(mapped)
}

// BM25Result is one keyword hit.
type BM25Result struct {
	ID    string
	Score float64
}

// bm25Index wraps one in-memory bleve index.
type bm25Index struct {
	mu  sync.RWMutex
	idx bleve.Index
}

type bm25Document struct {
	Content string `json:"content"`
}

func newBM25Index(docs map[string]string) (*bm25Index, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(bm25AnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     bleveunicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("bm25 analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = bm25AnalyzerName

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("bm25 index: %w", err)
	}

	batch := idx.NewBatch()
	for id, content := range docs {
		// Pre-tokenizing keeps bleve's analysis aligned with the
		// Tokenize contract (underscores, camelCase punctuation).
		if err := batch.Index(id, bm25Document{Content: strings.Join(Tokenize(content), " ")}); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, err
	}

	return &bm25Index{idx: idx}, nil
}

// Search returns the top-k keyword candidates.
func (b *bm25Index) Search(ctx context.Context, query string, limit int) ([]BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	terms := strings.Join(Tokenize(query), " ")
	if terms == "" {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(terms)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]BM25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, BM25Result{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

func (b *bm25Index) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx != nil {
		_ = b.idx.Close()
		b.idx = nil
	}
}

// CodeLoader fetches chunk code text by sha for document assembly.
type CodeLoader func(sha string) (string, error)

// BM25Cache holds lazily built in-memory indexes keyed by
// (repo_root, provider, dimensions). Any index mutation must call
// Invalidate for the repo so the next search rebuilds.
type BM25Cache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *bm25Index]
}

// NewBM25Cache creates the cache.
func NewBM25Cache() *BM25Cache {
	cache, _ := lru.NewWithEvict[string, *bm25Index](bm25CacheSize,
		func(_ string, idx *bm25Index) { idx.Close() })
	return &BM25Cache{cache: cache}
}

func bm25Key(root, provider string, dimensions int) string {
	return root + "\x00" + provider + "\x00" + strconv.Itoa(dimensions)
}

// Get returns the index for the key, building it from the chunk rows on
// first use. The document per chunk concatenates symbol, path,
// description, intent and the code text (loaded on demand).
func (c *BM25Cache) Get(root, provider string, dimensions int, rows []*store.ChunkRow, loadCode CodeLoader) (*bm25Index, error) {
	key := bm25Key(root, provider, dimensions)

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.cache.Get(key); ok {
		return idx, nil
	}

	docs := make(map[string]string, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		sb.WriteString(row.Symbol)
		sb.WriteByte(' ')
		sb.WriteString(row.FilePath)
		sb.WriteByte(' ')
		sb.WriteString(row.Description)
		sb.WriteByte(' ')
		sb.WriteString(row.Intent)
		if loadCode != nil {
			if code, err := loadCode(row.Sha); err == nil {
				sb.WriteByte(' ')
				sb.WriteString(code)
			}
		}
		docs[row.ID] = sb.String()
	}

	idx, err := newBM25Index(docs)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, idx)
	return idx, nil
}

// Invalidate drops every cached index for a repo root.
func (c *BM25Cache) Invalidate(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := root + "\x00"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}
