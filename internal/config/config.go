package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Embedding provider
	EmbedProvider  string `yaml:"embed_provider"` // ollama | openai
	EmbedModel     string `yaml:"embed_model"`
	EmbedDimension int    `yaml:"embed_dimension"`

	// Generation/judgment LLM provider
	LLMProvider string `yaml:"llm_provider"` // ollama | openai | anthropic
	LLMModel    string `yaml:"llm_model"`

	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Crawler defaults
	CrawlMaxPages  int           `yaml:"crawl_max_pages"`
	CrawlMaxDepth  int           `yaml:"crawl_max_depth"`
	CrawlDelay     time.Duration `yaml:"crawl_delay"`
	CrawlTimeout   time.Duration `yaml:"crawl_timeout"`
	CrawlUserAgent string        `yaml:"crawl_user_agent"`
	RespectRobots  bool          `yaml:"respect_robots"`

	// Index build
	EmbedConcurrency int     `yaml:"embed_concurrency"`
	MaxEmbedFailRate float64 `yaml:"max_embed_fail_rate"`

	// Scan
	ScanConcurrency int `yaml:"scan_concurrency"`
	ScanMaxResults  int `yaml:"scan_max_results"`

	// HTTP server
	ServerAddr string `yaml:"server_addr"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, then applies the YAML
// file named by OPTIVIEW_CONFIG (if any) on top. A .env file in the working
// directory is picked up first so local setups need no exported variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "optiview"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "scanner"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  getEnv("OPTIVIEW_EMBED_PROVIDER", "ollama"),
		EmbedModel:     getEnv("OPTIVIEW_EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: getEnvInt("OPTIVIEW_EMBED_DIMENSION", 768),

		LLMProvider: getEnv("OPTIVIEW_LLM_PROVIDER", "ollama"),
		LLMModel:    getEnv("OPTIVIEW_LLM_MODEL", "llama3.1"),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		CrawlMaxPages:  getEnvInt("OPTIVIEW_CRAWL_MAX_PAGES", 100),
		CrawlMaxDepth:  getEnvInt("OPTIVIEW_CRAWL_MAX_DEPTH", 3),
		CrawlDelay:     getEnvDuration("OPTIVIEW_CRAWL_DELAY", 500*time.Millisecond),
		CrawlTimeout:   getEnvDuration("OPTIVIEW_CRAWL_TIMEOUT", 15*time.Second),
		CrawlUserAgent: getEnv("OPTIVIEW_CRAWL_USER_AGENT", "OptiViewBot/1.0 (+https://optiview.io/bot)"),
		RespectRobots:  getEnv("OPTIVIEW_RESPECT_ROBOTS", "true") == "true",

		EmbedConcurrency: getEnvInt("OPTIVIEW_EMBED_CONCURRENCY", 4),
		MaxEmbedFailRate: getEnvFloat("OPTIVIEW_MAX_EMBED_FAIL_RATE", 0.2),

		ScanConcurrency: getEnvInt("OPTIVIEW_SCAN_CONCURRENCY", 4),
		ScanMaxResults:  getEnvInt("OPTIVIEW_SCAN_MAX_RESULTS", 10),

		ServerAddr: getEnv("OPTIVIEW_SERVER_ADDR", ":8090"),

		LogFile:  getEnv("OPTIVIEW_LOG_FILE", "/tmp/optiview.log"),
		LogLevel: parseLogLevel(getEnv("OPTIVIEW_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("OPTIVIEW_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// applyFile overlays YAML values onto the config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
