package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pampa-ai/pampa/internal/embed"
	"github.com/pampa-ai/pampa/internal/store"
)

func writeFile(t *testing.T, repo, rel, content string) {
	t.Helper()
	path := filepath.Join(repo, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func runIndex(t *testing.T, repo string) *Result {
	t.Helper()
	res, err := IndexProject(context.Background(), Options{
		RepoPath: repo,
		Provider: embed.NewLocalProvider(),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

const checkoutSrc = `/**
 * @pampa-tags: stripe, payment
 */
function createCheckoutSession() {
  return stripe.checkout.sessions.create({});
}
`

func TestIndexProject_SeedScenario(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "src/checkout.js", checkoutSrc)

	res := runIndex(t, repo)
	assert.Equal(t, 1, res.ProcessedChunks)
	assert.Equal(t, 1, res.TotalChunks)
	assert.Empty(t, res.Errors)

	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)
	require.Len(t, cm, 1)

	for _, rec := range cm {
		assert.Equal(t, "createCheckoutSession", rec.Symbol)
		assert.Equal(t, "src/checkout.js", rec.File)
		assert.True(t, rec.HasPampaTags)
		assert.Len(t, rec.Sha, 40) // lowercase SHA-1 hex
	}

	// The DB row and artifact exist for the recorded sha.
	db, err := store.OpenExistingDB(repo)
	require.NoError(t, err)
	defer db.Close()
	total, matching, err := db.CountChunks(context.Background(), "transformers", 384)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, matching)

	cs, err := store.NewChunkStore(repo, store.EncryptOff)
	require.NoError(t, err)
	for _, rec := range cm {
		code, err := cs.Read(rec.Sha)
		require.NoError(t, err)
		assert.Contains(t, code, "createCheckoutSession")
	}
}

func TestIndexProject_Idempotent(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "src/checkout.js", checkoutSrc)

	runIndex(t, repo)
	first, err := os.ReadFile(store.CodemapPath(repo))
	require.NoError(t, err)

	res := runIndex(t, repo)
	// Unchanged tree: nothing re-embedded.
	assert.Zero(t, res.ProcessedChunks)
	assert.Equal(t, 1, res.TotalChunks)

	second, err := os.ReadFile(store.CodemapPath(repo))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestIndexProject_IncrementalModification(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "src/checkout.js", checkoutSrc)
	writeFile(t, repo, "src/other.js", "function untouched() { return 1; }\n")

	runIndex(t, repo)
	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)
	require.Len(t, cm, 2)

	var oldSha string
	for _, rec := range cm {
		if rec.File == "src/checkout.js" {
			oldSha = rec.Sha
		}
	}
	require.NotEmpty(t, oldSha)

	// Modify one function body.
	writeFile(t, repo, "src/checkout.js", `/**
 * @pampa-tags: stripe, payment
 */
function createCheckoutSession() {
  return stripe.checkout.sessions.create({mode: "payment"});
}
`)
	res := runIndex(t, repo)
	assert.Equal(t, 1, res.ProcessedChunks)

	cm, err = store.LoadCodemap(repo)
	require.NoError(t, err)
	require.Len(t, cm, 2)

	var newSha string
	for _, rec := range cm {
		if rec.File == "src/checkout.js" {
			newSha = rec.Sha
		}
	}
	require.NotEmpty(t, newSha)
	assert.NotEqual(t, oldSha, newSha)

	// The stale artifact is gone, the new one exists.
	cs, err := store.NewChunkStore(repo, store.EncryptOff)
	require.NoError(t, err)
	exists, _ := cs.Exists(oldSha)
	assert.False(t, exists)
	exists, _ = cs.Exists(newSha)
	assert.True(t, exists)
}

func TestIndexProject_DeletedFilePurged(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "src/gone.js", "function temp() { return 1; }\n")
	writeFile(t, repo, "src/stay.js", "function stay() { return 2; }\n")

	runIndex(t, repo)
	require.NoError(t, os.Remove(filepath.Join(repo, "src/gone.js")))

	res := runIndex(t, repo)
	assert.Equal(t, 1, res.TotalChunks)

	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)
	assert.Empty(t, cm.IDsForFile("src/gone.js"))
	assert.Len(t, cm.IDsForFile("src/stay.js"), 1)

	db, err := store.OpenExistingDB(repo)
	require.NoError(t, err)
	defer db.Close()
	total, _, err := db.CountChunks(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIndexProject_PartialRunOnlyTouchesChangedSet(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "a.js", "function aa() { return 1; }\n")
	writeFile(t, repo, "b.js", "function bb() { return 2; }\n")

	runIndex(t, repo)

	// Delete b.js on disk but run a partial update that only names a.js:
	// b's chunks must survive (no full-tree reconciliation).
	require.NoError(t, os.Remove(filepath.Join(repo, "b.js")))
	writeFile(t, repo, "a.js", "function aa() { return 42; }\n")

	res, err := IndexProject(context.Background(), Options{
		RepoPath:     repo,
		Provider:     embed.NewLocalProvider(),
		ChangedFiles: []string{"a.js"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)
	assert.Len(t, cm.IDsForFile("b.js"), 1)

	// An explicit deletion purges it.
	res, err = IndexProject(context.Background(), Options{
		RepoPath:     repo,
		Provider:     embed.NewLocalProvider(),
		DeletedFiles: []string{"b.js"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	cm, err = store.LoadCodemap(repo)
	require.NoError(t, err)
	assert.Empty(t, cm.IDsForFile("b.js"))
}

func TestIndexProject_ParseFailureFallsBackToFileChunk(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	// Unparseable on purpose; the file must still be indexed whole.
	writeFile(t, repo, "broken.js", ")))) }}}} ((((")

	res := runIndex(t, repo)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "processing_error", res.Errors[0].Code)

	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)

	ids := cm.IDsForFile("broken.js")
	if assert.Len(t, ids, 1) {
		assert.Equal(t, "file", cm[ids[0]].ChunkType)
		assert.Equal(t, "broken.js", cm[ids[0]].Symbol)
	}
}

func TestIndexProject_IgnoredDirectoriesSkipped(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "")
	repo := t.TempDir()
	writeFile(t, repo, "src/app.js", "function app() { return 1; }\n")
	writeFile(t, repo, "node_modules/dep/index.js", "function dep() {}\n")
	writeFile(t, repo, "vendor/lib.php", "<?php function lib() {}\n")

	res := runIndex(t, repo)
	assert.Equal(t, 1, res.TotalChunks)
}

func TestIndexProject_EncryptedRun(t *testing.T) {
	t.Setenv(store.EncryptionKeyEnv, "Wn1n9A8S0Yl2mW5h7d4T6b3V8c1X0z2Q5r7u9w1y3A4=")
	repo := t.TempDir()
	writeFile(t, repo, "src/secret.js", "function secretThing() { return 'k'; }\n")

	res, err := IndexProject(context.Background(), Options{
		RepoPath:    repo,
		Provider:    embed.NewLocalProvider(),
		EncryptMode: store.EncryptOn,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	cm, err := store.LoadCodemap(repo)
	require.NoError(t, err)
	require.Len(t, cm, 1)

	for _, rec := range cm {
		assert.True(t, rec.Encrypted)
		_, err := os.Stat(filepath.Join(store.ChunksDir(repo), rec.Sha+".gz.enc"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(store.ChunksDir(repo), rec.Sha+".gz"))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestSha1Hex(t *testing.T) {
	// Known SHA-1 of "abc".
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Sha1Hex("abc"))
}
