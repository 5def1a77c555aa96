package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pampa-ai/pampa/internal/store"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"create", "stripe", "checkout", "session"},
		Tokenize("Create Stripe: checkout/session!"))
	assert.Equal(t, []string{"createcheckoutsession"}, Tokenize("createCheckoutSession"))
	assert.Equal(t, []string{"sesión", "año"}, Tokenize("sesión año"))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How to create stripe session?", "how to crear stripe sesion"},
		{"  cmo   crear   algo  ", "como crear algo"},
		{"CREATE Session", "crear sesion"},
		{"createSession", "createsession"}, // word-bounded subs only
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), tt.in)
	}
}

func TestMaskPattern(t *testing.T) {
	assert.Equal(t, "como crear [SESSION] de [PAYMENT_PROVIDER]",
		MaskPattern("como crear sesion de stripe"))
	assert.Equal(t, "validar [SERVICE]", MaskPattern("validar paymentservice"))
	assert.Equal(t, "arreglar [CONTROLLER]", MaskPattern("arreglar authcontroller"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Mismatched dimensions never mix.
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestDenseScore_Boosts(t *testing.T) {
	row := &store.ChunkRow{
		Embedding: []float32{1, 0},
		Intent:    "create checkout",
		Tags:      []string{"stripe", "payment"},
	}

	score, vector := DenseScore("how to create checkout with stripe", []float32{1, 0}, row)
	assert.InDelta(t, 1.0, vector, 1e-9)
	// cosine 1.0 + 0.2 intent + 0.1 tag, capped at 1.0
	assert.Equal(t, 1.0, score)

	row2 := &store.ChunkRow{Embedding: []float32{0.5, 0.5}, Tags: []string{"email"}}
	score2, vector2 := DenseScore("send email", []float32{1, 0}, row2)
	assert.Greater(t, score2, vector2)
	assert.InDelta(t, vector2+0.1, score2, 1e-9)
}

func TestFilterChunks_Scope(t *testing.T) {
	rows := []*store.ChunkRow{
		{ID: "1", FilePath: "src/payments/stripe.php", Lang: "php", Tags: []string{"Stripe"}},
		{ID: "2", FilePath: "src/auth/login.ts", Lang: "typescript", Tags: []string{"auth"}},
		{ID: "3", FilePath: "lib/util.go", Lang: "go", Tags: []string{"util"}},
	}

	got, err := FilterChunks(rows, &Scope{PathGlob: "src/**"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = FilterChunks(rows, &Scope{Tags: []string{"stripe"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got, err = FilterChunks(rows, &Scope{Lang: []string{"GO", "PHP"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = FilterChunks(rows, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Path globs are case-sensitive.
	got, err = FilterChunks(rows, &Scope{PathGlob: "SRC/**"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMergeScopes_OverrideWins(t *testing.T) {
	off := false
	base := &Scope{Reranker: RerankerTransformers, PathGlob: "src/**", Hybrid: &off}
	override := &Scope{Reranker: RerankerOff, Tags: []string{"auth"}}

	merged := MergeScopes(base, override)
	assert.Equal(t, RerankerOff, merged.Reranker)
	assert.False(t, merged.RerankerEnabled())
	assert.Equal(t, "src/**", merged.PathGlob)
	assert.Equal(t, []string{"auth"}, merged.Tags)
	assert.False(t, merged.HybridEnabled())
}

func TestFuseRRF_Monotonicity(t *testing.T) {
	// "a" outranks "b" in both sources, so it must fuse no worse.
	vector := []string{"a", "b", "c"}
	bm25 := []string{"a", "c", "b"}

	ids, scores := FuseRRF(vector, bm25)
	require.Len(t, ids, 3)
	assert.Equal(t, "a", ids[0])
	assert.Greater(t, scores["a"], scores["b"])
	assert.Greater(t, scores["a"], scores["c"])
}

func TestFuseRRF_SingleSourceMembers(t *testing.T) {
	ids, scores := FuseRRF([]string{"v1", "v2"}, []string{"k1"})
	assert.Len(t, ids, 3)
	assert.InDelta(t, 1.0/61, scores["v1"], 1e-12)
	assert.InDelta(t, 1.0/61, scores["k1"], 1e-12)
}

func TestFuseRRF_TieBreakByVectorRank(t *testing.T) {
	// "x" has vector rank 0 / bm25 rank 1; "y" the mirror image: equal
	// RRF scores, so the better vector rank must win.
	ids, _ := FuseRRF([]string{"x", "y"}, []string{"y", "x"})
	require.Len(t, ids, 2)
	assert.Equal(t, "x", ids[0])
}

func TestSymbolMatchStrength(t *testing.T) {
	q := "how to create checkout session with amount"

	full := SymbolMatchStrength("call createcheckoutsession now", "createCheckoutSession",
		"createCheckoutSession($amount)", []string{"$amount"})
	assert.Equal(t, 1.0, full) // whole-symbol hit alone saturates

	partial := SymbolMatchStrength(q, "createCheckoutSession", "", nil)
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)

	none := SymbolMatchStrength("unrelated words", "sendEmail", "", nil)
	assert.Zero(t, none)
}

func TestSymbolBoost_Capped(t *testing.T) {
	rec := &store.ChunkRecord{
		Symbol:           "createCheckoutSession",
		SymbolSignature:  "createcheckoutsession($amount)",
		SymbolParameters: []string{"$amount"},
	}
	boost := SymbolBoost("createcheckoutsession($amount) amount", rec, store.Codemap{})
	assert.LessOrEqual(t, boost, maxSymbolBoost)
	assert.Greater(t, boost, 0.0)

	assert.Zero(t, SymbolBoost("anything", nil, store.Codemap{}))
}

func TestSymbolBoost_NeighborContribution(t *testing.T) {
	neighbor := &store.ChunkRecord{Sha: "n1", Symbol: "chargeCustomer"}
	rec := &store.ChunkRecord{
		Symbol:          "logRequest",
		SymbolNeighbors: []string{"n1"},
	}
	cm := store.Codemap{"f:chargeCustomer:n1": neighbor}

	withNeighbor := SymbolBoost("chargecustomer flow", rec, cm)
	assert.Greater(t, withNeighbor, 0.0)
	assert.LessOrEqual(t, withNeighbor, neighborBoostWeight)
}

type failingReranker struct{ err error }

func (f *failingReranker) Rerank(context.Context, string, []string) ([]float64, error) {
	return nil, f.err
}

type fixedReranker struct{ scores []float64 }

func (f *fixedReranker) Rerank(context.Context, string, []string) ([]float64, error) {
	return f.scores, nil
}

func TestApplyReranker_FailSoft(t *testing.T) {
	results := []Result{{Sha: "a", Score: 0.9}, {Sha: "b", Score: 0.8}}
	docs := []string{"doc a", "doc b"}

	// Error: order unchanged.
	got := ApplyReranker(context.Background(),
		&failingReranker{err: errors.New("boom")}, "q", results, docs)
	assert.Equal(t, "a", got[0].Sha)
	assert.Equal(t, "b", got[1].Sha)

	// Wrong-length response: order unchanged.
	got = ApplyReranker(context.Background(),
		&fixedReranker{scores: []float64{0.1}}, "q", results, docs)
	assert.Equal(t, "a", got[0].Sha)
	assert.Zero(t, got[0].RerankerScore)
}

func TestApplyReranker_Reorders(t *testing.T) {
	results := []Result{{Sha: "a", Score: 0.9}, {Sha: "b", Score: 0.8}}
	docs := []string{"doc a", "doc b"}

	got := ApplyReranker(context.Background(),
		&fixedReranker{scores: []float64{0.2, 0.95}}, "q", results, docs)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Sha)
	assert.InDelta(t, 0.95, got[0].RerankerScore, 1e-9)
	assert.Equal(t, "a", got[1].Sha)
}

func TestApplyReranker_SingleResultUntouched(t *testing.T) {
	results := []Result{{Sha: "only"}}
	got := ApplyReranker(context.Background(),
		&fixedReranker{scores: []float64{0.5}}, "q", results, []string{"d"})
	assert.Equal(t, results, got)
}

func TestBM25Cache_BuildSearchInvalidate(t *testing.T) {
	rows := []*store.ChunkRow{
		{ID: "1", Sha: "s1", Symbol: "createCheckoutSession", FilePath: "src/pay.php",
			Description: "create stripe checkout session"},
		{ID: "2", Sha: "s2", Symbol: "sendEmail", FilePath: "src/mail.php",
			Description: "send notification email"},
	}
	loader := func(sha string) (string, error) { return "", errors.New("no code") }

	cache := NewBM25Cache()
	idx, err := cache.Get("/repo", "test", 4, rows, loader)
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), "stripe checkout", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].ID)

	// Same key returns the cached index.
	again, err := cache.Get("/repo", "test", 4, nil, loader)
	require.NoError(t, err)
	assert.Same(t, idx, again)

	// Invalidation forces a rebuild.
	cache.Invalidate("/repo")
	rebuilt, err := cache.Get("/repo", "test", 4, rows, loader)
	require.NoError(t, err)
	assert.NotSame(t, idx, rebuilt)
}

func TestBM25Index_EmptyQuery(t *testing.T) {
	cache := NewBM25Cache()
	idx, err := cache.Get("/r", "p", 1, nil, nil)
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), "  !!! ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
