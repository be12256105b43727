package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from .env and the environment.
type Config struct {
	Port    string
	DataDir string
	DBPath  string
	// IndexPath is the bleve search index directory.
	IndexPath string
	LogMode   string

	LLMProvider  string
	LLMModel     string
	ProviderKeys map[string]string

	FallbackEnabled  bool
	FallbackMaxChars int
	AITimeout        time.Duration
}

// Load reads an optional .env file and then the environment. Missing values
// fall back to defaults; nothing here fails.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DataDir:   dataDir,
		DBPath:    getEnv("DB_PATH", filepath.Join(dataDir, "syllabi.db")),
		IndexPath: getEnv("INDEX_PATH", filepath.Join(dataDir, "search.bleve")),
		LogMode:   getEnv("LOG_MODE", "dev"),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:    os.Getenv("LLM_MODEL"),
		ProviderKeys: map[string]string{
			"openai":      os.Getenv("OPENAI_API_KEY"),
			"anthropic":   os.Getenv("ANTHROPIC_API_KEY"),
			"huggingface": os.Getenv("HUGGINGFACE_API_KEY"),
		},

		FallbackEnabled:  getBool("FALLBACK_ENABLED", true),
		FallbackMaxChars: getInt("FALLBACK_MAX_CHARS", 24000),
		AITimeout:        time.Duration(getInt("AI_TIMEOUT_SECONDS", 120)) * time.Second,
	}
	return cfg
}

// APIKey returns the key configured for the default LLM provider.
func (c *Config) APIKey() string {
	return c.ProviderKeys[c.LLMProvider]
}

// AIConfigured reports whether the default provider has a usable key.
func (c *Config) AIConfigured() bool {
	key := c.APIKey()
	return key != "" && !strings.HasPrefix(key, "your_")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
