package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Detection   DetectionConfig `toml:"detection"`
	Redaction   RedactionConfig `toml:"redaction"`
	Sessions    SessionsConfig  `toml:"sessions"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// DetectionConfig controls candidate detection
type DetectionConfig struct {
	AIEnabled       bool   `toml:"ai_enabled"`       // Run the AI detector when an API key is available
	PageConcurrency int    `toml:"page_concurrency"` // Pages scanned in parallel
	AITimeout       string `toml:"ai_timeout"`       // Per-page AI call timeout (default: "60s")
	CacheEntries    int    `toml:"cache_entries"`    // Max AI results cached per session
	Model           string `toml:"model"`            // Model for the AI detector; empty uses the default provider's model
}

// RedactionConfig controls redaction application
type RedactionConfig struct {
	MaxHitsPerTerm int `toml:"max_hits_per_term"` // Occurrences searched per term on one page
}

// SessionsConfig controls the lifetime of uploaded documents
type SessionsConfig struct {
	TTL           string `toml:"ttl"`            // Sessions older than this are deleted (default: "1h")
	SweepInterval string `toml:"sweep_interval"` // How often expired sessions are swept (default: "5m")
	MaxUploadMB   int    `toml:"max_upload_mb"`  // Maximum accepted upload size
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for detection (default: "gemini-2.5-flash")
	RateLimit   string  `toml:"rate_limit"`  // Minimum time between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for detection (default: "claude-haiku-4-5")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2048)
	RateLimit   string  `toml:"rate_limit"`  // Minimum time between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains configuration shared by all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
	MaxRetries      int         `toml:"max_retries"`      // Retries on transient provider errors (default: 3)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Detection: DetectionConfig{
			AIEnabled:       true, // Only takes effect when an API key resolves
			PageConcurrency: 4,
			AITimeout:       "60s",
			CacheEntries:    1024,
		},
		Redaction: RedactionConfig{
			MaxHitsPerTerm: 256,
		},
		Sessions: SessionsConfig{
			TTL:           "1h",
			SweepInterval: "5m",
			MaxUploadMB:   50,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.5-flash",
			RateLimit: "4s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-haiku-4-5",
			MaxTokens: 2048,
			RateLimit: "1s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxRetries:      3,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REDACTIQ_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("REDACTIQ_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REDACTIQ_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if path := os.Getenv("REDACTIQ_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("REDACTIQ_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("REDACTIQ_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Detection configuration
	if enabled := os.Getenv("REDACTIQ_AI_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Detection.AIEnabled = b
		}
	}
	if provider := os.Getenv("REDACTIQ_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}

	// Redaction configuration
	if hits := os.Getenv("REDACTIQ_MAX_HITS_PER_TERM"); hits != "" {
		if n, err := strconv.Atoi(hits); err == nil {
			config.Redaction.MaxHitsPerTerm = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → config fallback → error.
// A missing key is reported as an error; callers decide whether that disables a feature.
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"anthropic_api_key": {"REDACTIQ_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"REDACTIQ_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini_api_key":    {"REDACTIQ_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := strings.TrimSpace(os.Getenv(envVarName)); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback = strings.TrimSpace(configFallback); configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ParseDuration parses a config duration string, returning fallback when it is empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	if c.Sessions.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(c.Sessions.MaxUploadMB) << 20
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
