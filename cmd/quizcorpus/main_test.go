package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// setupEnv points the process at an empty data directory with local
// providers and no external backends.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("CORPUS_DIMENSIONS", "64")
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("LLM_PROVIDER", "local")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "quizcorpus version dev\n", out)
}

func TestSeedThenVerify(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "seed")
	require.NoError(t, err)
	assert.Equal(t, "inserted 9, skipped 0\n", out)

	out, err = execute(t, "seed")
	require.NoError(t, err)
	assert.Equal(t, "inserted 0, skipped 9\n", out)

	out, err = execute(t, "verify")
	require.NoError(t, err)

	var stats corpus.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 9, stats.Documents)
	assert.Equal(t, 9, stats.Current)
	assert.Equal(t, 9, stats.Vectors)
	assert.Equal(t, 64, stats.Dimensions)
}

func TestUnknownMode(t *testing.T) {
	setupEnv(t)
	t.Setenv("RUN_MODE", "batch")

	_, err := execute(t)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown mode"), err.Error())
}

func TestNewApp_LocalBackends(t *testing.T) {
	setupEnv(t)

	cmd := newRootCmd()
	cfg, logger, err := loadConfig(cmd)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.readiness, "moderation")
	assert.Contains(t, a.readiness, "queue")
	assert.NotContains(t, a.readiness, "redis")

	caps := a.services.Capabilities()
	assert.True(t, caps.Embedding)
	assert.True(t, caps.BiasAssessor)
	assert.True(t, caps.Rewriter)

	_, err = a.seedCorpus(ctx)
	require.NoError(t, err)

	result, err := a.retrieval.Retrieve(ctx, "putting money aside in a piggy bank", 3,
		&domain.RetrievalFilters{AgeBand: "age_6_9"})
	require.NoError(t, err)
	require.Len(t, result.Documents, 3)
	for _, d := range result.Documents {
		assert.Equal(t, "age_6_9", d.Document.AgeBand)
	}
}
