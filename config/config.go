package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const envPrefix = "PSY"

type Config struct {
	LogLevel      string          `mapstructure:"log_level"`
	Server        ServerConfig    `mapstructure:"server"`
	Backend       BackendConfig   `mapstructure:"backend"`
	LLM           LLMConfig       `mapstructure:"llm"`
	Embeddings    EmbeddingConfig `mapstructure:"embeddings"`
	OllamaHost    string          `mapstructure:"ollama_host"`
	OpenAIAPIKey  string          `mapstructure:"openai_api_key"`
	OpenAIBaseURL string          `mapstructure:"openai_base_url"`
	PostgresDSN   string          `mapstructure:"postgres_dsn"`
	Neo4j         Neo4jConfig     `mapstructure:"neo4j"`
	Redis         RedisConfig     `mapstructure:"redis"`
}

// ServerConfig drives the front-end: the chat page and the proxy route.
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ProxyTarget    string        `mapstructure:"proxy_target"`
	BackendURL     string        `mapstructure:"backend_url"`
	BackendTimeout time.Duration `mapstructure:"backend_timeout"`
}

// BackendConfig drives the reference inference service and ingestion.
type BackendConfig struct {
	Address      string          `mapstructure:"address"`
	TopK         int             `mapstructure:"top_k"`
	DocumentsDir string          `mapstructure:"documents_dir"`
	Documents    []DocumentEntry `mapstructure:"documents"`
	ChunkSize    int             `mapstructure:"chunk_size"`
	ChunkOverlap int             `mapstructure:"chunk_overlap"`
	HistoryLimit int             `mapstructure:"history_limit"`
}

// DocumentEntry is one catalogued PDF. Path is relative to DocumentsDir
// unless absolute.
type DocumentEntry struct {
	Path  string `mapstructure:"path"`
	Title string `mapstructure:"title"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether the page graph should be maintained.
func (c Neo4jConfig) Enabled() bool {
	return strings.TrimSpace(c.URI) != ""
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	HistoryKey string `mapstructure:"history_key"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

var defaultDocuments = []map[string]any{
	{"path": "Article-TAYAA 16oct19.pdf", "title": "Diagnostic et prise en charge de la dépression chez lesujet âgé"},
	{"path": "BAT-Depression-check_21.02.22.pdf", "title": "Mieux vivre avec la dépression"},
	{"path": "digno.pdf", "title": "Diagnostic en psychiatrie adulte Mieux comprendre et être accompagné"},
	{"path": "map_enfants_2008.pdf", "title": "Le bon usage des antidépresseurs chez l’enfant et l’adolescent"},
	{"path": "PSYCOM_Brochures-A5_TP_Troubles-depressifs_2025_WEB.pdf", "title": "Troubles dépressifs TROUBLES PSYCHIQUES"},
}

// Load reads .env, an optional config file and the environment, in that
// order of increasing precedence. An empty path searches for
// psy-assistant.{yaml,json} in the working directory.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("psy-assistant")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "openai_api_key", "GROQ_API_KEY", "OPENAI_API_KEY")
	bindEnv(v, "openai_base_url", "OPENAI_BASE_URL")
	bindEnv(v, "ollama_host", "OLLAMA_HOST")
	bindEnv(v, "postgres_dsn", "POSTGRES_DSN")
	bindEnv(v, "neo4j.uri", "NEO4J_URI")
	bindEnv(v, "neo4j.username", "NEO4J_USERNAME")
	bindEnv(v, "neo4j.password", "NEO4J_PASSWORD")
	bindEnv(v, "redis.addr", "REDIS_ADDR")
	bindEnv(v, "log_level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("embeddings.provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive")
	}
	if c.Backend.TopK <= 0 {
		return fmt.Errorf("backend.top_k must be positive")
	}
	if c.Backend.ChunkSize <= 0 || c.Backend.ChunkOverlap < 0 || c.Backend.ChunkOverlap >= c.Backend.ChunkSize {
		return fmt.Errorf("backend.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Server.BackendTimeout < 0 {
		return fmt.Errorf("server.backend_timeout cannot be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.proxy_target", "http://127.0.0.1:8000")
	v.SetDefault("server.backend_url", "http://localhost:8000/chatPsy")
	v.SetDefault("server.backend_timeout", time.Duration(0))

	v.SetDefault("backend.address", ":8000")
	v.SetDefault("backend.top_k", 5)
	v.SetDefault("backend.documents_dir", "app/documents")
	v.SetDefault("backend.documents", defaultDocuments)
	v.SetDefault("backend.chunk_size", 500)
	v.SetDefault("backend.chunk_overlap", 50)
	v.SetDefault("backend.history_limit", 0)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")

	v.SetDefault("embeddings.provider", ProviderOllama)
	v.SetDefault("embeddings.model", "nomic-embed-text")
	v.SetDefault("embeddings.dimension", 768)

	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("postgres_dsn", "postgres://localhost:5432/psy?sslmode=disable")

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.history_key", "psy:chat_history")
}

// bindEnv binds key to PSY_<KEY> first and then to the conventional names.
func bindEnv(v *viper.Viper, key string, names ...string) {
	prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
}
