// Package config loads quizcorpus settings from config.yaml, .env and the
// process environment. Environment variables override YAML values; secrets
// are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/retry"
)

// Backend names shared by the moderation store, task queue and lock settings.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
	BackendAuto     = "auto"
)

// Config holds all configuration for quizcorpus.
type Config struct {
	Version string `yaml:"-"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Policy     PolicyConfig     `yaml:"policy"`
	Moderation ModerationConfig `yaml:"moderation"`
	Queue      QueueConfig      `yaml:"queue"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Auth       AuthConfig       `yaml:"auth"`
	Worker     WorkerConfig     `yaml:"worker"`
	Retry      RetryConfig      `yaml:"retry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string   `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port           int      `yaml:"port" env:"PORT" env-default:"8080"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// CorpusConfig configures the document corpus and its vector index.
type CorpusConfig struct {
	DataDir    string `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
	Dimensions int    `yaml:"dimensions" env:"CORPUS_DIMENSIONS" env-default:"384"`
	Metric     string `yaml:"metric" env:"CORPUS_METRIC" env-default:"l2"`

	// IndexKind is "flat" (exact) or "hnsw" (approximate).
	IndexKind     string  `yaml:"index_kind" env:"CORPUS_INDEX_KIND" env-default:"flat"`
	HNSWM         int     `yaml:"hnsw_m" env:"CORPUS_HNSW_M" env-default:"16"`
	HNSWEfSearch  int     `yaml:"hnsw_ef_search" env:"CORPUS_HNSW_EF_SEARCH" env-default:"100"`
	HNSWLevelMult float64 `yaml:"hnsw_ml" env:"CORPUS_HNSW_ML" env-default:"0.25"`

	DefaultK  int `yaml:"default_k" env:"RETRIEVE_DEFAULT_K" env-default:"5"`
	MaxK      int `yaml:"max_k" env:"RETRIEVE_MAX_K" env-default:"100"`
	OverFetch int `yaml:"over_fetch" env:"RETRIEVE_OVER_FETCH" env-default:"3"`

	RefreshInterval time.Duration `yaml:"refresh_interval" env:"CORPUS_REFRESH_INTERVAL" env-default:"30s"`

	// LockBackend serialises corpus writers across processes: auto picks redis,
	// then postgres, then none.
	LockBackend string        `yaml:"lock_backend" env:"CORPUS_LOCK_BACKEND" env-default:"auto"`
	LockTTL     time.Duration `yaml:"lock_ttl" env:"CORPUS_LOCK_TTL" env-default:"30s"`
	LockWait    time.Duration `yaml:"lock_wait" env:"CORPUS_LOCK_WAIT" env-default:"10s"`

	// SeedFile overrides the built-in starter lessons.
	SeedFile    string `yaml:"seed_file" env:"CORPUS_SEED_FILE"`
	SeedOnStart bool   `yaml:"seed_on_start" env:"CORPUS_SEED_ON_START" env-default:"true"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"EMBEDDING_PROVIDER" env-default:"local"`
	Model      string `yaml:"model" env:"EMBEDDING_MODEL"`
	BaseURL    string `yaml:"base_url" env:"EMBEDDING_BASE_URL"`
	APIVersion string `yaml:"api_version" env:"EMBEDDING_API_VERSION"`
	APIKey     string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
}

// LLMConfig selects the provider used for bias assessment and rewrites.
type LLMConfig struct {
	Provider          string `yaml:"provider" env:"LLM_PROVIDER" env-default:"local"`
	Model             string `yaml:"model" env:"LLM_MODEL"`
	BaseURL           string `yaml:"base_url" env:"LLM_BASE_URL"`
	APIVersion        string `yaml:"api_version" env:"LLM_API_VERSION"`
	APIKey            string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"LLM_REQUESTS_PER_MINUTE" env-default:"60"`
}

// PolicyConfig holds the feedback classification thresholds.
type PolicyConfig struct {
	RatingFloor         int     `yaml:"rating_floor" env:"POLICY_RATING_FLOOR" env-default:"3"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"POLICY_CONFIDENCE_THRESHOLD" env-default:"0.6"`

	// ConcerningKeywords replaces the built-in list when set.
	ConcerningKeywords []string `yaml:"concerning_keywords" env:"POLICY_CONCERNING_KEYWORDS"`
}

// ModerationConfig selects the review queue store.
type ModerationConfig struct {
	Backend string `yaml:"backend" env:"MODERATION_BACKEND" env-default:"sqlite"`
}

// QueueConfig selects the background task queue.
type QueueConfig struct {
	Backend string `yaml:"backend" env:"QUEUE_BACKEND" env-default:"memory"`
}

// RedisConfig holds the Redis connection.
type RedisConfig struct {
	URL string `yaml:"-" env:"REDIS_URL"` // May carry a password
}

// PostgresConfig holds the PostgreSQL connection.
type PostgresConfig struct {
	URL             string        `yaml:"-" env:"DATABASE_URL"` // May carry a password
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" env-default:"1m"`
}

// AuthConfig configures operator authentication.
type AuthConfig struct {
	JWTSecret string        `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`

	// A single bootstrap admin can be supplied through the environment.
	AdminEmail        string `yaml:"-" env:"ADMIN_EMAIL"`
	AdminName         string `yaml:"-" env:"ADMIN_NAME"`
	AdminPasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH"`

	Accounts []domain.Account `yaml:"accounts"`
}

// WorkerConfig configures the correction worker.
type WorkerConfig struct {
	Concurrency    int           `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"2"`
	DequeueTimeout time.Duration `yaml:"dequeue_timeout" env:"WORKER_DEQUEUE_TIMEOUT" env-default:"5s"`
}

// RetryConfig bounds retries of external provider calls.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"RETRY_INITIAL_DELAY" env-default:"200ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"5s"`
}

// Load reads configuration. A .env file in the working directory is applied
// to the environment first; path names an optional YAML file.
func Load(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}

	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Version = version
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (c *Config) normalize() {
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Moderation.Backend = strings.ToLower(strings.TrimSpace(c.Moderation.Backend))
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	c.Corpus.LockBackend = strings.ToLower(strings.TrimSpace(c.Corpus.LockBackend))
	c.Corpus.IndexKind = strings.ToLower(strings.TrimSpace(c.Corpus.IndexKind))

	if c.Auth.AdminEmail != "" {
		c.Auth.Accounts = append(c.Auth.Accounts, domain.Account{
			Email:        c.Auth.AdminEmail,
			Name:         c.Auth.AdminName,
			PasswordHash: c.Auth.AdminPasswordHash,
			Role:         domain.RoleAdmin,
		})
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if c.Corpus.Dimensions <= 0 {
		errs = append(errs, errors.New("corpus.dimensions must be positive"))
	}
	if _, err := domain.ParseDistanceMetric(c.Corpus.Metric); err != nil {
		errs = append(errs, fmt.Errorf("corpus.metric: %w", err))
	}
	switch vectorindex.Kind(c.Corpus.IndexKind) {
	case vectorindex.KindFlat, vectorindex.KindHNSW:
	default:
		errs = append(errs, fmt.Errorf("corpus.index_kind %q must be flat or hnsw", c.Corpus.IndexKind))
	}
	if c.Corpus.DefaultK <= 0 || c.Corpus.MaxK < c.Corpus.DefaultK {
		errs = append(errs, errors.New("corpus.default_k must be positive and not exceed max_k"))
	}

	for _, p := range []struct {
		name     string
		provider string
	}{{"embedding.provider", c.Embedding.Provider}, {"llm.provider", c.LLM.Provider}} {
		if !domain.AIProvider(p.provider).IsValid() {
			errs = append(errs, fmt.Errorf("%s %q is not supported", p.name, p.provider))
		}
	}
	if c.Embedding.Provider == string(domain.AIProviderAnthropic) {
		errs = append(errs, errors.New("embedding.provider anthropic does not offer embeddings"))
	}

	if err := c.checkBackend("moderation.backend", c.Moderation.Backend, BackendSQLite, BackendRedis, BackendPostgres); err != nil {
		errs = append(errs, err)
	}
	if err := c.checkBackend("queue.backend", c.Queue.Backend, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		errs = append(errs, err)
	}
	if err := c.checkBackend("corpus.lock_backend", c.Corpus.LockBackend, BackendAuto, BackendNone, BackendRedis, BackendPostgres); err != nil {
		errs = append(errs, err)
	}

	if c.Policy.ConfidenceThreshold < 0 || c.Policy.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("policy.confidence_threshold must be within [0, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func (c *Config) checkBackend(name, value string, allowed ...string) error {
	found := false
	for _, a := range allowed {
		if value == a {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s %q must be one of %s", name, value, strings.Join(allowed, ", "))
	}
	if value == BackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("%s is redis but REDIS_URL is not set", name)
	}
	if value == BackendPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("%s is postgres but DATABASE_URL is not set", name)
	}
	return nil
}

// LockBackend resolves "auto" against the configured connections.
func (c *Config) LockBackend() string {
	if c.Corpus.LockBackend != BackendAuto {
		return c.Corpus.LockBackend
	}
	switch {
	case c.Redis.URL != "":
		return BackendRedis
	case c.Postgres.URL != "":
		return BackendPostgres
	default:
		return BackendNone
	}
}

// CorpusDir is where the corpus files live.
func (c *Config) CorpusDir() string {
	return filepath.Join(c.Corpus.DataDir, "corpus")
}

// IndexConfig returns the vector index settings.
func (c *Config) IndexConfig() vectorindex.Config {
	return vectorindex.Config{
		Kind:       vectorindex.Kind(c.Corpus.IndexKind),
		Dimensions: c.Corpus.Dimensions,
		Metric:     domain.DistanceMetric(c.Corpus.Metric),
		HNSW: vectorindex.HNSWConfig{
			M:        c.Corpus.HNSWM,
			EfSearch: c.Corpus.HNSWEfSearch,
			Ml:       c.Corpus.HNSWLevelMult,
		},
	}
}

// RetrievalOptions returns the retrieval limits.
func (c *Config) RetrievalOptions() domain.RetrievalOptions {
	return domain.RetrievalOptions{
		DefaultK:  c.Corpus.DefaultK,
		MaxK:      c.Corpus.MaxK,
		OverFetch: c.Corpus.OverFetch,
	}
}

// EmbeddingSettings converts the embedding section for the AI factory.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		Dimensions: c.Corpus.Dimensions,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		APIVersion: c.Embedding.APIVersion,
	}
}

// LLMSettings converts the llm section for the AI factory.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:          domain.AIProvider(c.LLM.Provider),
		Model:             c.LLM.Model,
		APIKey:            c.LLM.APIKey,
		BaseURL:           c.LLM.BaseURL,
		APIVersion:        c.LLM.APIVersion,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// DomainPolicy returns the classification thresholds.
func (c *Config) DomainPolicy() domain.Policy {
	policy := domain.DefaultPolicy()
	policy.RatingFloor = c.Policy.RatingFloor
	policy.ConfidenceThreshold = c.Policy.ConfidenceThreshold
	if len(c.Policy.ConcerningKeywords) > 0 {
		policy.ConcerningKeywords = c.Policy.ConcerningKeywords
	}
	return policy
}

// RetryPolicy returns the provider retry settings.
func (c *Config) RetryPolicy() *retry.Config {
	r := retry.DefaultConfig()
	r.MaxRetries = c.Retry.MaxRetries
	r.InitialDelay = c.Retry.InitialDelay
	r.MaxDelay = c.Retry.MaxDelay
	return r
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("service", "quizcorpus", "version", c.Version)
}
