package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete docindex configuration.
//
// Sources are applied in order, later ones winning:
//  1. built-in defaults
//  2. user config ($XDG_CONFIG_HOME/docindex/config.yaml)
//  3. project config (.docindex.yaml in the working directory)
//  4. .env in the working directory (never overrides variables already set)
//  5. process environment (DOCINDEX_*, OPENAI_API_KEY, OPENROUTER_API_KEY)
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// StorageConfig locates the index and metadata files.
type StorageConfig struct {
	Dir string `yaml:"dir" json:"dir"`
	// LockTimeout bounds how long Flush waits for another process's lock.
	LockTimeout string `yaml:"lock_timeout" json:"lock_timeout"`
}

// ChunkingConfig configures the token-window chunker.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig configures vector generation.
type EmbeddingsConfig struct {
	// Dimensions of the deterministic fallback vector.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Timeout is the per-call provider deadline.
	Timeout string `yaml:"timeout" json:"timeout"`
	// Prefer forces a mode for indexing: "", "provider" or "deterministic".
	Prefer string `yaml:"prefer" json:"prefer"`

	// CacheSize is the in-process LRU capacity for provider vectors. 0 disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// RedisURL enables a shared provider-vector cache, e.g. redis://localhost:6379/0.
	RedisURL string `yaml:"redis_url" json:"redis_url"`
	RedisTTL string `yaml:"redis_ttl" json:"redis_ttl"`

	// RateLimit is requests per second sent to a remote provider. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	Providers ProvidersConfig `yaml:"providers" json:"providers"`
}

// ProvidersConfig holds every provider docindex knows about.
// Resolution order is custom, primary, openai, openrouter, ollama; the first
// configured one is used.
type ProvidersConfig struct {
	Custom     EndpointConfig   `yaml:"custom" json:"custom"`
	Primary    EndpointConfig   `yaml:"primary" json:"primary"`
	OpenAI     EndpointConfig   `yaml:"openai" json:"openai"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" json:"openrouter"`
	Ollama     OllamaConfig     `yaml:"ollama" json:"ollama"`
}

// EndpointConfig describes an OpenAI-compatible embeddings endpoint.
type EndpointConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"-"`
	Model    string `yaml:"model" json:"model"`
	// AssistantID scopes the primary provider to one assistant.
	AssistantID string `yaml:"assistant_id,omitempty" json:"assistant_id,omitempty"`
}

// OpenRouterConfig adds the attribution headers OpenRouter asks for.
type OpenRouterConfig struct {
	EndpointConfig `yaml:",inline"`
	Referer        string `yaml:"referer" json:"referer"`
	Title          string `yaml:"title" json:"title"`
}

// OllamaConfig points at a local Ollama server.
type OllamaConfig struct {
	Host  string `yaml:"host" json:"host"`
	Model string `yaml:"model" json:"model"`
}

// RetrievalConfig configures query scoring.
type RetrievalConfig struct {
	DefaultK     int     `yaml:"default_k" json:"default_k"`
	LexicalBoost float64 `yaml:"lexical_boost" json:"lexical_boost"`
	MinScore     float64 `yaml:"min_score" json:"min_score"`
}

// PerformanceConfig configures parallelism.
type PerformanceConfig struct {
	ExtractWorkers int `yaml:"extract_workers" json:"extract_workers"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	// WatchRestore reloads the store when its files are replaced by another process.
	WatchRestore  bool   `yaml:"watch_restore" json:"watch_restore"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Dir:         "vectorstore",
			LockTimeout: "10s",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 384,
			Timeout:    "30s",
			CacheSize:  4096,
			RedisTTL:   "168h",
			RateLimit:  0,
			RateBurst:  1,
			Providers: ProvidersConfig{
				OpenAI: EndpointConfig{
					Endpoint: "https://api.openai.com/v1",
					Model:    "text-embedding-3-small",
				},
				OpenRouter: OpenRouterConfig{
					EndpointConfig: EndpointConfig{
						Endpoint: "https://openrouter.ai/api/v1",
						Model:    "openai/text-embedding-3-small",
					},
					Title: "docindex",
				},
				Ollama: OllamaConfig{
					Model: "nomic-embed-text",
				},
			},
		},
		Retrieval: RetrievalConfig{
			DefaultK:     5,
			LexicalBoost: 0.05,
			MinScore:     0.01,
		},
		Performance: PerformanceConfig{
			ExtractWorkers: runtime.NumCPU(),
		},
		Server: ServerConfig{
			LogLevel:      "info",
			WatchRestore:  true,
			WatchDebounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user-level config file.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docindex", "config.yaml")
}

// Load builds the effective configuration for a working directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(dir)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})

	if !filepath.IsAbs(cfg.Storage.Dir) {
		cfg.Storage.Dir = filepath.Join(dir, cfg.Storage.Dir)
	}
	if cfg.Performance.ExtractWorkers == 0 {
		cfg.Performance.ExtractWorkers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readDotEnv parses dir/.env without touching the process environment.
func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if !fileExists(path) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".docindex.yaml", ".docindex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values. Keys absent from the
// file keep whatever the receiver already holds.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = v
		}
	}

	setString(&c.Storage.Dir, "DOCINDEX_STORAGE_DIR")
	setInt(&c.Chunking.Size, "DOCINDEX_CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "DOCINDEX_CHUNK_OVERLAP")
	setInt(&c.Embeddings.Dimensions, "DOCINDEX_EMBED_DIMENSIONS")
	setString(&c.Embeddings.Timeout, "DOCINDEX_EMBED_TIMEOUT")
	setString(&c.Embeddings.Prefer, "DOCINDEX_EMBED_PREFER")
	setString(&c.Embeddings.RedisURL, "DOCINDEX_REDIS_URL")
	setString(&c.Server.LogLevel, "DOCINDEX_LOG_LEVEL")

	p := &c.Embeddings.Providers
	setString(&p.Custom.Endpoint, "DOCINDEX_CUSTOM_EMBED_URL")
	setString(&p.Custom.APIKey, "DOCINDEX_CUSTOM_EMBED_KEY")
	setString(&p.Custom.Model, "DOCINDEX_CUSTOM_EMBED_MODEL")
	setString(&p.Primary.Endpoint, "DOCINDEX_PRIMARY_EMBED_URL")
	setString(&p.Primary.APIKey, "DOCINDEX_PRIMARY_EMBED_KEY")
	setString(&p.Primary.AssistantID, "DOCINDEX_ASSISTANT_ID")
	setString(&p.OpenAI.APIKey, "DOCINDEX_OPENAI_API_KEY", "OPENAI_API_KEY")
	setString(&p.OpenAI.Model, "DOCINDEX_OPENAI_EMBED_MODEL")
	setString(&p.OpenRouter.APIKey, "DOCINDEX_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	setString(&p.OpenRouter.Model, "DOCINDEX_OPENROUTER_EMBED_MODEL")
	// Ollama is opt-in; a host exported for other tools does not enable it.
	setString(&p.Ollama.Host, "DOCINDEX_OLLAMA_HOST")
	setString(&p.Ollama.Model, "DOCINDEX_OLLAMA_MODEL")

	if v := getenv("DOCINDEX_WATCH_RESTORE"); v != "" {
		c.Server.WatchRestore = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	switch c.Embeddings.Prefer {
	case "", "provider", "deterministic":
	default:
		return fmt.Errorf("embeddings.prefer must be provider or deterministic, got %q", c.Embeddings.Prefer)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must not be negative")
	}
	if c.Embeddings.RateLimit < 0 {
		return fmt.Errorf("embeddings.rate_limit must not be negative")
	}
	for name, d := range map[string]string{
		"storage.lock_timeout":  c.Storage.LockTimeout,
		"embeddings.timeout":    c.Embeddings.Timeout,
		"embeddings.redis_ttl":  c.Embeddings.RedisTTL,
		"server.watch_debounce": c.Server.WatchDebounce,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, d)
		}
	}
	if c.Retrieval.DefaultK <= 0 {
		return fmt.Errorf("retrieval.default_k must be positive, got %d", c.Retrieval.DefaultK)
	}
	if c.Retrieval.LexicalBoost < 0 {
		return fmt.Errorf("retrieval.lexical_boost must not be negative")
	}
	if c.Performance.ExtractWorkers <= 0 {
		return fmt.Errorf("performance.extract_workers must be positive, got %d", c.Performance.ExtractWorkers)
	}
	return nil
}

// Duration parses a validated duration string, returning fallback when empty.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to path. API keys are written as set.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// WriteTemplate writes an annotated template to path, creating parent
// directories.
func WriteTemplate(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	p := &out.Embeddings.Providers
	p.Custom.APIKey = mask(p.Custom.APIKey)
	p.Primary.APIKey = mask(p.Primary.APIKey)
	p.OpenAI.APIKey = mask(p.OpenAI.APIKey)
	p.OpenRouter.APIKey = mask(p.OpenRouter.APIKey)
	return &out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
