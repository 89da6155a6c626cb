// Package config provides configuration management for the codebase
// retrieval core, handling environment variables, .env files, and
// runtime defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Index      IndexConfig      `json:"index"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	VectorDB   VectorDBConfig   `json:"vector_db"`
	Metadata   MetadataConfig   `json:"metadata"`
	Chunking   ChunkingConfig   `json:"chunking"`
	Retrieval  RetrievalConfig  `json:"retrieval"`
	Logging    LoggingConfig    `json:"logging"`
	Resilience ResilienceConfig `json:"resilience"`
}

// ServerConfig controls the MCP/HTTP entrypoint.
type ServerConfig struct {
	Mode         string `json:"mode"` // "stdio" or "http"
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
	// APITokenHash is a bcrypt hash of the bearer token required on the
	// HTTP surface's /retrieve and /debug/spans routes. Empty disables
	// the check, leaving those routes open (the stdio/MCP transport has
	// no equivalent surface to protect).
	APITokenHash string `json:"-"`
}

// IndexConfig controls where extracted units/checkpoints live on disk.
type IndexConfig struct {
	Dir            string `json:"dir"`
	CheckpointPath string `json:"checkpoint_path"`
	BatchSize      int    `json:"batch_size"`
	PipelineDepth  int    `json:"pipeline_depth"` // in-flight embed_batch calls (P)
}

// EmbeddingConfig configures the embedding provider (C3).
type EmbeddingConfig struct {
	Provider   string        `json:"provider"` // "openai", "mock"
	Model      string        `json:"model"`
	APIKey     string        `json:"-"`
	BaseURL    string        `json:"base_url,omitempty"`
	Dimensions int           `json:"dimensions"`
	Timeout    time.Duration `json:"timeout"`
	CacheSize  int           `json:"cache_size"`
	CacheTTL   time.Duration `json:"cache_ttl"`
}

// VectorDBConfig configures the vector store adapter (C2).
type VectorDBConfig struct {
	Backend    string `json:"backend"` // "memory", "qdrant"
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"-"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
	Dimensions int    `json:"dimensions"`
}

// MetadataConfig configures the metadata store adapter (C2).
type MetadataConfig struct {
	Backend         string `json:"backend"` // "memory", "postgres", "sqlite"
	DatabaseURL     string `json:"database_url"`
	SQLitePath      string `json:"sqlite_path"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// ChunkingConfig configures the semantic chunker (C5).
type ChunkingConfig struct {
	WholeThreshold int `json:"whole_threshold"` // estimated_tokens threshold for single "whole" chunk
}

// RetrievalConfig configures the retriever (C12) and assembler (C10).
type RetrievalConfig struct {
	DefaultBudget    int           `json:"default_budget"`
	StructuralShare  float64       `json:"structural_share"`
	PrimaryShare     float64       `json:"primary_share"`
	FrameworkShare   float64       `json:"framework_share"`
	TruncationFloor  int           `json:"truncation_floor"`
	StoreTimeout     time.Duration `json:"store_timeout"`
	EmbeddingTimeout time.Duration `json:"embedding_timeout"`
	Formatter        string        `json:"formatter"` // "", "xml", "markdown", "plain", "human"
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	UseJSON bool  `json:"use_json"`
}

// ResilienceConfig configures the C13 envelope.
type ResilienceConfig struct {
	LockTimeout        time.Duration `json:"lock_timeout"`
	GuardCooldown      time.Duration `json:"guard_cooldown"`
	StatusStaleAfter   time.Duration `json:"status_stale_after"`
	FeedbackLogPath    string        `json:"feedback_log_path"`
	RedisURL           string        `json:"redis_url,omitempty"`
	BreakerThreshold   int           `json:"breaker_threshold"`
	BreakerResetWindow time.Duration `json:"breaker_reset_window"`
}

// DefaultConfig returns default settings for every section.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Mode:         "stdio",
			Host:         "0.0.0.0",
			Port:         9080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Index: IndexConfig{
			Dir:            envOr("CODEBASE_INDEX_DIR", "./codebase-index"),
			CheckpointPath: "./codebase-index/checkpoint.json",
			BatchSize:      64,
			PipelineDepth:  4,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Timeout:    10 * time.Second,
			CacheSize:  4096,
			CacheTTL:   24 * time.Hour,
		},
		VectorDB: VectorDBConfig{
			Backend:    "memory",
			Host:       "localhost",
			Port:       6334,
			Collection: "codecortex_units",
			Dimensions: 1536,
		},
		Metadata: MetadataConfig{
			Backend:         "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Chunking: ChunkingConfig{
			WholeThreshold: 200,
		},
		Retrieval: RetrievalConfig{
			DefaultBudget:    8000,
			StructuralShare:  0.10,
			PrimaryShare:     0.70,
			FrameworkShare:   0.20,
			TruncationFloor:  64,
			StoreTimeout:     5 * time.Second,
			EmbeddingTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			UseJSON: true,
		},
		Resilience: ResilienceConfig{
			LockTimeout:        time.Hour,
			GuardCooldown:      time.Minute,
			StatusStaleAfter:   24 * time.Hour,
			FeedbackLogPath:    "./codebase-index/feedback.jsonl",
			BreakerThreshold:   5,
			BreakerResetWindow: 30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, then .env
// (if present), then the environment, each layer overriding the last on
// top of DefaultConfig.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // best-effort; absent .env is not an error

	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv("CODECORTEX_CONFIG_FILE")); path != "" {
		if err := loadYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	loadServer(cfg)
	loadIndex(cfg)
	loadEmbedding(cfg)
	loadVectorDB(cfg)
	loadMetadata(cfg)
	loadRetrieval(cfg)
	loadLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadServer(cfg *Config) {
	cfg.Server.Mode = envOr("SERVER_MODE", cfg.Server.Mode)
	cfg.Server.Host = envOr("SERVER_HOST", cfg.Server.Host)
	setIntFromEnv("SERVER_PORT", &cfg.Server.Port)
	cfg.Server.APITokenHash = os.Getenv("SERVER_API_TOKEN_HASH")
}

func loadIndex(cfg *Config) {
	cfg.Index.Dir = envOr("CODEBASE_INDEX_DIR", cfg.Index.Dir)
	cfg.Index.CheckpointPath = envOr("CODEBASE_CHECKPOINT_PATH", cfg.Index.CheckpointPath)
	setIntFromEnv("INDEX_BATCH_SIZE", &cfg.Index.BatchSize)
	setIntFromEnv("INDEX_PIPELINE_DEPTH", &cfg.Index.PipelineDepth)
}

func loadEmbedding(cfg *Config) {
	cfg.Embedding.Provider = envOr("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = envOr("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Embedding.BaseURL = envOr("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	setIntFromEnv("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
}

func loadVectorDB(cfg *Config) {
	cfg.VectorDB.Backend = envOr("VECTOR_STORE", cfg.VectorDB.Backend)
	cfg.VectorDB.Host = envOr("QDRANT_HOST", cfg.VectorDB.Host)
	cfg.VectorDB.APIKey = os.Getenv("QDRANT_API_KEY")
	cfg.VectorDB.Collection = envOr("QDRANT_COLLECTION", cfg.VectorDB.Collection)
	setIntFromEnv("QDRANT_PORT", &cfg.VectorDB.Port)
	setIntFromEnv("VECTOR_DIMENSIONS", &cfg.VectorDB.Dimensions)
	setBoolFromEnv("QDRANT_USE_TLS", &cfg.VectorDB.UseTLS)
}

func loadMetadata(cfg *Config) {
	cfg.Metadata.Backend = envOr("METADATA_STORE", cfg.Metadata.Backend)
	cfg.Metadata.DatabaseURL = envOr("METADATA_DATABASE_URL", cfg.Metadata.DatabaseURL)
	cfg.Metadata.SQLitePath = envOr("METADATA_SQLITE_PATH", cfg.Metadata.SQLitePath)
}

func loadRetrieval(cfg *Config) {
	setIntFromEnv("RETRIEVAL_BUDGET_DEFAULT", &cfg.Retrieval.DefaultBudget)
	cfg.Retrieval.Formatter = envOr("RETRIEVAL_FORMATTER", cfg.Retrieval.Formatter)
}

func loadLogging(cfg *Config) {
	cfg.Logging.Level = envOr("LOG_LEVEL", cfg.Logging.Level)
	setBoolFromEnv("LOG_JSON", &cfg.Logging.UseJSON)
}

// Validate checks invariants the rest of the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.Retrieval.DefaultBudget <= 0 {
		return errors.New("retrieval.default_budget must be positive")
	}
	if c.Chunking.WholeThreshold <= 0 {
		return errors.New("chunking.whole_threshold must be positive")
	}
	shares := c.Retrieval.StructuralShare + c.Retrieval.PrimaryShare + c.Retrieval.FrameworkShare
	if shares <= 0 || shares > 1.0001 {
		return fmt.Errorf("retrieval budget shares must sum to <= 1.0, got %.3f", shares)
	}
	switch c.VectorDB.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unsupported vector store backend %q", c.VectorDB.Backend)
	}
	switch c.Metadata.Backend {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported metadata store backend %q", c.Metadata.Backend)
	}
	return nil
}

// loadYAMLFile reads a YAML document at path into a generic map, then
// decodes it onto cfg field-by-field, leaving fields the file doesn't
// mention at their current (default) values.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func envOr(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func setIntFromEnv(envKey string, target *int) {
	v := os.Getenv(envKey)
	if v == "" {
		return
	}
	if parsed, err := strconv.Atoi(v); err == nil {
		*target = parsed
	}
}

func setBoolFromEnv(envKey string, target *bool) {
	v := os.Getenv(envKey)
	if v == "" {
		return
	}
	if parsed, err := strconv.ParseBool(v); err == nil {
		*target = parsed
	}
}
