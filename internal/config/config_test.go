package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
)

// inTempDir runs the test from an empty directory so no stray .env or
// config.yaml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("", "v1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 384, cfg.Corpus.Dimensions)
	assert.Equal(t, "flat", cfg.Corpus.IndexKind)
	assert.Equal(t, 30*time.Second, cfg.Corpus.RefreshInterval)
	assert.True(t, cfg.Corpus.SeedOnStart)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "local", cfg.LLM.Provider)
	assert.Equal(t, BackendSQLite, cfg.Moderation.Backend)
	assert.Equal(t, BackendMemory, cfg.Queue.Backend)
	assert.Equal(t, BackendNone, cfg.LockBackend())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Worker.DequeueTimeout)

	policy := cfg.DomainPolicy()
	assert.Equal(t, 3, policy.RatingFloor)
	assert.InDelta(t, 0.6, policy.ConfidenceThreshold, 1e-9)
	assert.Equal(t, domain.DefaultConcerningKeywords, policy.ConcerningKeywords)

	opts := cfg.RetrievalOptions()
	assert.Equal(t, domain.DefaultRetrievalOptions(), opts)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CORPUS_INDEX_KIND", "HNSW")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "sk-test")
	t.Setenv("POLICY_CONCERNING_KEYWORDS", "unfair,mean")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("ADMIN_EMAIL", "ada@example.com")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	cfg, err := Load("", "dev")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, vectorindex.KindHNSW, cfg.IndexConfig().Kind)
	assert.Equal(t, domain.AIProviderOpenAI, cfg.EmbeddingSettings().Provider)
	assert.Equal(t, "sk-test", cfg.EmbeddingSettings().APIKey)
	assert.Equal(t, 384, cfg.EmbeddingSettings().Dimensions)
	assert.Equal(t, []string{"unfair", "mean"}, cfg.DomainPolicy().ConcerningKeywords)
	assert.Equal(t, BackendRedis, cfg.LockBackend())

	require.Len(t, cfg.Auth.Accounts, 1)
	assert.Equal(t, domain.RoleAdmin, cfg.Auth.Accounts[0].Role)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "config.yaml")
	yaml := `
log_format: text
corpus:
  dimensions: 768
  metric: cosine
  index_kind: hnsw
  hnsw_m: 8
llm:
  provider: anthropic
  requests_per_minute: 10
moderation:
  backend: sqlite
auth:
  accounts:
    - email: rex@example.com
      name: Rex
      password_hash: "$2a$10$abcdefghijklmnopqrstuv"
      role: reviewer
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LLM_API_KEY", "anthropic-key")

	cfg, err := Load(path, "dev")
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 768, cfg.Corpus.Dimensions)
	assert.Equal(t, 8, cfg.IndexConfig().HNSW.M)
	assert.Equal(t, domain.AIProviderAnthropic, cfg.LLMSettings().Provider)
	assert.Equal(t, "anthropic-key", cfg.LLMSettings().APIKey)
	assert.Equal(t, 10, cfg.LLMSettings().RequestsPerMinute)
	require.Len(t, cfg.Auth.Accounts, 1)
	assert.Equal(t, domain.RoleReviewer, cfg.Auth.Accounts[0].Role)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CORPUS_DIMENSIONS=512\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CORPUS_DIMENSIONS") })

	cfg, err := Load("", "dev")
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Corpus.Dimensions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown metric", map[string]string{"CORPUS_METRIC": "manhattan"}},
		{"unknown index", map[string]string{"CORPUS_INDEX_KIND": "ivf"}},
		{"zero dimensions", map[string]string{"CORPUS_DIMENSIONS": "0"}},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "cohere"}},
		{"anthropic embeddings", map[string]string{"EMBEDDING_PROVIDER": "anthropic"}},
		{"redis queue without url", map[string]string{"QUEUE_BACKEND": "redis"}},
		{"postgres store without url", map[string]string{"MODERATION_BACKEND": "postgres"}},
		{"memory moderation store", map[string]string{"MODERATION_BACKEND": "memory"}},
		{"threshold out of range", map[string]string{"POLICY_CONFIDENCE_THRESHOLD": "1.5"}},
		{"default k above max", map[string]string{"RETRIEVE_DEFAULT_K": "200"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("", "dev")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
		})
	}
}

func TestLockBackend(t *testing.T) {
	cfg := &Config{Corpus: CorpusConfig{LockBackend: BackendAuto}}
	assert.Equal(t, BackendNone, cfg.LockBackend())

	cfg.Postgres.URL = "postgres://localhost/quiz"
	assert.Equal(t, BackendPostgres, cfg.LockBackend())

	cfg.Redis.URL = "redis://localhost:6379"
	assert.Equal(t, BackendRedis, cfg.LockBackend())

	cfg.Corpus.LockBackend = BackendNone
	assert.Equal(t, BackendNone, cfg.LockBackend())
}
