package pampa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pampa-ai/pampa/internal/contextpack"
	"github.com/pampa-ai/pampa/internal/embed"
	perrors "github.com/pampa-ai/pampa/internal/errors"
	"github.com/pampa-ai/pampa/internal/search"
	"github.com/pampa-ai/pampa/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	t.Setenv(store.EncryptionKeyEnv, "")

	c, err := New(t.TempDir(), "transformers",
		WithProvider(embed.NewLocalProvider()))
	require.NoError(t, err)
	return c
}

func seedFile(t *testing.T, c *Client, rel, content string) {
	t.Helper()
	path := filepath.Join(c.RepoPath(), rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const paymentSrc = `/**
 * @pampa-tags: stripe, payment
 * @pampa-intent: create stripe checkout session
 */
function createCheckoutSession(amount) {
  return stripe.checkout.sessions.create({amount: amount});
}

function sendReceiptEmail(user) {
  return mailer.send(user.email);
}
`

func TestClient_IndexAndSearch(t *testing.T) {
	c := newTestClient(t)
	seedFile(t, c, "src/payments.js", paymentSrc)
	ctx := context.Background()

	res, err := c.IndexProject(ctx, IndexOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, "transformers", res.Provider)

	resp := c.SearchCode(ctx, "create stripe checkout session", 5, nil)
	require.True(t, resp.Success, "search failed: %s %s", resp.Error, resp.Message)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "createCheckoutSession", resp.Results[0].Symbol)
}

func TestClient_SearchWithoutIndex(t *testing.T) {
	c := newTestClient(t)

	resp := c.SearchCode(context.Background(), "anything", 5, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, perrors.CodeDatabaseNotFound, resp.Error)
	assert.Contains(t, resp.Suggestion, "index")
}

func TestClient_GetChunkRoundTrip(t *testing.T) {
	c := newTestClient(t)
	seedFile(t, c, "src/payments.js", paymentSrc)
	ctx := context.Background()

	_, err := c.IndexProject(ctx, IndexOptions{})
	require.NoError(t, err)

	cm, err := store.LoadCodemap(c.RepoPath())
	require.NoError(t, err)
	require.NotEmpty(t, cm)

	for _, rec := range cm {
		got := c.GetChunk(rec.Sha)
		require.True(t, got.Success)
		assert.Contains(t, got.Code, rec.Symbol)
	}

	missing := c.GetChunk("0000000000000000000000000000000000000000")
	assert.False(t, missing.Success)
	assert.Equal(t, perrors.CodeChunkNotFound, missing.Error)
}

func TestClient_Overview(t *testing.T) {
	c := newTestClient(t)

	// Missing database surfaces the stable error.
	got := c.GetOverview(context.Background(), 10)
	assert.False(t, got.Success)
	assert.Equal(t, perrors.CodeDatabaseNotFound, got.Error)

	seedFile(t, c, "src/payments.js", paymentSrc)
	_, err := c.IndexProject(context.Background(), IndexOptions{})
	require.NoError(t, err)

	got = c.GetOverview(context.Background(), 10)
	require.True(t, got.Success)
	assert.Len(t, got.Chunks, 2)
}

func TestClient_IntentionRoundTrip(t *testing.T) {
	c := newTestClient(t)
	seedFile(t, c, "src/payments.js", paymentSrc)
	ctx := context.Background()

	_, err := c.IndexProject(ctx, IndexOptions{})
	require.NoError(t, err)

	cm, err := store.LoadCodemap(c.RepoPath())
	require.NoError(t, err)
	var sha string
	for _, rec := range cm {
		if rec.Symbol == "createCheckoutSession" {
			sha = rec.Sha
		}
	}
	require.NotEmpty(t, sha)

	require.NoError(t, c.RecordIntention(ctx, "how to create stripe session", sha, 0.95))

	// Same question, different casing and punctuation: direct match.
	got := c.SearchByIntention(ctx, "How to create stripe session?")
	require.True(t, got.Success)
	assert.True(t, got.DirectMatch)
	assert.Equal(t, sha, got.Sha)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	miss := c.SearchByIntention(ctx, "completely unrelated question")
	require.True(t, miss.Success)
	assert.False(t, miss.DirectMatch)
}

func TestClient_QueryAnalytics(t *testing.T) {
	c := newTestClient(t)
	seedFile(t, c, "src/payments.js", paymentSrc)
	ctx := context.Background()

	_, err := c.IndexProject(ctx, IndexOptions{})
	require.NoError(t, err)

	require.NoError(t, c.RecordQueryPattern(ctx, "como crear sesion de stripe"))
	require.NoError(t, c.RecordQueryPattern(ctx, "como crear sesion de paypal"))

	analytics := c.GetQueryAnalytics(ctx)
	require.True(t, analytics.Success)
	require.NotEmpty(t, analytics.FrequentPatterns)
	assert.Equal(t, 2, analytics.FrequentPatterns[0].Frequency)
	assert.Contains(t, analytics.FrequentPatterns[0].Pattern, "[PAYMENT_PROVIDER]")
}

func TestClient_ContextPackScopesSearch(t *testing.T) {
	c := newTestClient(t)
	seedFile(t, c, "src/payments.js", paymentSrc)
	seedFile(t, c, "lib/util.js", "function helperUtil() { return 1; }\n")
	ctx := context.Background()

	_, err := c.IndexProject(ctx, IndexOptions{})
	require.NoError(t, err)

	packs := c.ContextPacks()
	require.NoError(t, packs.Save(&contextpack.Pack{Key: "lib-only", PathGlob: "lib/**"}))
	require.NoError(t, packs.SetActive("lib-only"))

	resp := c.SearchCode(ctx, "helper util function", 5, nil)
	require.True(t, resp.Success, "search failed: %s", resp.Error)
	for _, r := range resp.Results {
		assert.Equal(t, "lib/util.js", r.FilePath)
	}

	// Caller overrides beat the pack.
	resp = c.SearchCode(ctx, "create stripe checkout session", 5,
		&search.Scope{PathGlob: "src/**"})
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "src/payments.js", resp.Results[0].FilePath)
}
