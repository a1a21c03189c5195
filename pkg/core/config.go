package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for an Engine.
//
// It includes settings for:
//   - Storage backend (memory, profile and relationship persistence)
//   - LLM provider (behavior generation, optional)
//   - Embedding provider (embedding-based relevance scoring, optional)
//   - Ranking weights and decay half-lives
//   - Memory hygiene thresholds
//
// Example:
//
//	config := core.DefaultConfig()
//	config.Storage = core.StorageConfig{
//	    Provider: "sqlite",
//	    SQLite:   core.SQLiteConfig{Path: "./agents.db"},
//	}
//	config.LLM = core.LLMConfig{
//	    Provider: "openai",
//	    APIKey:   "sk-...",
//	    Model:    "gpt-4o-mini",
//	}
type Config struct {
	// Storage contains storage backend configuration.
	Storage StorageConfig `json:"storage"`

	// LLM contains LLM provider configuration. An empty provider disables
	// generation: agents can still perceive and recall.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration (optional). When
	// set, ranking uses embedding-based relevance instead of token overlap.
	Embedder *EmbedderConfig `json:"embedder,omitempty"`

	// Ranking contains memory retrieval weights and parameters.
	Ranking RankingConfig `json:"ranking"`

	// Emotion contains emotional decay parameters.
	Emotion EmotionConfig `json:"emotion"`

	// Hygiene contains memory purge thresholds.
	Hygiene HygieneConfig `json:"hygiene"`

	// GenerationTimeoutSeconds bounds each call to the text-generation
	// provider. Default: 30.
	GenerationTimeoutSeconds int `json:"generation_timeout_seconds"`
}

// StorageConfig contains configuration for the storage backend.
//
// Supported providers: sqlite, postgres, mysql.
type StorageConfig struct {
	// Provider is the backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// SQLite holds SQLite-specific settings.
	SQLite SQLiteConfig `json:"sqlite,omitempty"`

	// Postgres holds PostgreSQL-specific settings.
	Postgres SQLServerConfig `json:"postgres,omitempty"`

	// MySQL holds MySQL-specific settings.
	MySQL SQLServerConfig `json:"mysql,omitempty"`
}

// SQLiteConfig contains SQLite backend settings.
type SQLiteConfig struct {
	// Path is the database file path. Defaults to "./psychemem.db".
	Path string `json:"path"`
}

// SQLServerConfig contains settings shared by the server-backed SQL
// backends (PostgreSQL, MySQL).
type SQLServerConfig struct {
	// Host is the database server hostname.
	Host string `json:"host"`

	// Port is the database server port.
	Port int `json:"port"`

	// User is the database user.
	User string `json:"user"`

	// Password is the database password.
	Password string `json:"password"`

	// DBName is the database name.
	DBName string `json:"db_name"`

	// SSLMode is the SSL mode (PostgreSQL only). Defaults to "disable".
	SSLMode string `json:"ssl_mode,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: openai, anthropic, ollama.
type LLMConfig struct {
	// Provider is the LLM provider name (openai, anthropic, ollama).
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (provider default if empty).
	Model string `json:"model"`

	// BaseURL is the base URL for the API (provider default if empty).
	BaseURL string `json:"base_url,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai.
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (provider default if empty).
	Model string `json:"model"`

	// BaseURL is the base URL for the API (provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the embedding vector dimension. Default: 1536.
	Dimensions int `json:"dimensions,omitempty"`
}

// RankingConfig contains memory retrieval parameters.
//
// The four weights combine the recency, importance, relevance and resonance
// signals; see the ranker package for the scoring formula.
type RankingConfig struct {
	// RecencyWeight weights the age-decay signal. Default: 0.35.
	RecencyWeight float64 `json:"recency_weight"`

	// ImportanceWeight weights stored importance. Default: 0.25.
	ImportanceWeight float64 `json:"importance_weight"`

	// RelevanceWeight weights query similarity. Default: 0.25.
	RelevanceWeight float64 `json:"relevance_weight"`

	// ResonanceWeight weights emotional-context similarity. Default: 0.15.
	ResonanceWeight float64 `json:"resonance_weight"`

	// RecencyHalfLifeHours is the age at which the recency signal halves.
	// Default: 24.
	RecencyHalfLifeHours float64 `json:"recency_half_life_hours"`

	// TopK is the default number of memories retrieved per decision.
	// Default: 10.
	TopK int `json:"top_k"`
}

// EmotionConfig contains emotional decay parameters.
type EmotionConfig struct {
	// HalfLifeHours is the time for an emotion to decay halfway back to
	// its baseline. Default: 6.
	HalfLifeHours float64 `json:"half_life_hours"`
}

// HygieneConfig contains memory purge thresholds.
type HygieneConfig struct {
	// PurgeOlderThanDays is the minimum age for a record to be purged.
	// Default: 30.
	PurgeOlderThanDays float64 `json:"purge_older_than_days"`

	// KeepMinImportance protects records at or above this importance from
	// purging regardless of age. Default: 0.7.
	KeepMinImportance float64 `json:"keep_min_importance"`
}

// DefaultConfig returns a configuration with every tunable set to its
// default and a SQLite backend at ./psychemem.db.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: "sqlite",
			SQLite:   SQLiteConfig{Path: "./psychemem.db"},
		},
		Ranking: RankingConfig{
			RecencyWeight:        0.35,
			ImportanceWeight:     0.25,
			RelevanceWeight:      0.25,
			ResonanceWeight:      0.15,
			RecencyHalfLifeHours: 24,
			TopK:                 10,
		},
		Emotion: EmotionConfig{
			HalfLifeHours: 6,
		},
		Hygiene: HygieneConfig{
			PurgeOlderThanDays: 30,
			KeepMinImportance:  0.7,
		},
		GenerationTimeoutSeconds: 30,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct, starting from
//     DefaultConfig
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - RECENCY_HALF_LIFE_HOURS, EMOTION_HALF_LIFE_HOURS, RANKING_TOP_K
//   - PURGE_OLDER_THAN_DAYS, PURGE_KEEP_MIN_IMPORTANCE
//   - GENERATION_TIMEOUT_SECONDS
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := DefaultConfig()

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	config.Storage.Provider = provider

	switch provider {
	case "sqlite":
		config.Storage.SQLite.Path = getEnvOrDefault("SQLITE_PATH", "./psychemem.db")
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		config.Storage.Postgres = SQLServerConfig{
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnvOrDefault("POSTGRES_DATABASE", "psychemem"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		config.Storage.MySQL = SQLServerConfig{
			Host:     getEnvOrDefault("MYSQL_HOST", "localhost"),
			Port:     port,
			User:     getEnvOrDefault("MYSQL_USER", "root"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			DBName:   getEnvOrDefault("MYSQL_DATABASE", "psychemem"),
		}
	}

	llmProvider := os.Getenv("LLM_PROVIDER")
	if llmProvider != "" {
		config.LLM = LLMConfig{
			Provider: llmProvider,
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		}
	}

	if embeddingProvider := os.Getenv("EMBEDDING_PROVIDER"); embeddingProvider != "" {
		dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))
		config.Embedder = &EmbedderConfig{
			Provider:   embeddingProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		}
	}

	if v, err := strconv.ParseFloat(os.Getenv("RECENCY_HALF_LIFE_HOURS"), 64); err == nil && v > 0 {
		config.Ranking.RecencyHalfLifeHours = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("EMOTION_HALF_LIFE_HOURS"), 64); err == nil && v > 0 {
		config.Emotion.HalfLifeHours = v
	}
	if v, err := strconv.Atoi(os.Getenv("RANKING_TOP_K")); err == nil && v > 0 {
		config.Ranking.TopK = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PURGE_OLDER_THAN_DAYS"), 64); err == nil && v > 0 {
		config.Hygiene.PurgeOlderThanDays = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PURGE_KEEP_MIN_IMPORTANCE"), 64); err == nil {
		config.Hygiene.KeepMinImportance = v
	}
	if v, err := strconv.Atoi(os.Getenv("GENERATION_TIMEOUT_SECONDS")); err == nil && v > 0 {
		config.GenerationTimeoutSeconds = v
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Fields absent from the file keep their DefaultConfig values.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate validates the configuration.
//
// Checks:
//   - Storage provider must be one of sqlite, postgres, mysql
//   - Ranking weights must be non-negative
//   - KeepMinImportance must lie in [0, 1]
//
// Returns an error wrapping ErrInvalidConfig if validation fails.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "sqlite", "postgres", "mysql":
	default:
		return NewEngineError("Validate",
			fmt.Errorf("%w: unsupported storage provider %q", ErrInvalidConfig, c.Storage.Provider))
	}

	r := c.Ranking
	if r.RecencyWeight < 0 || r.ImportanceWeight < 0 || r.RelevanceWeight < 0 || r.ResonanceWeight < 0 {
		return NewEngineError("Validate",
			fmt.Errorf("%w: ranking weights must be non-negative", ErrInvalidConfig))
	}

	if c.Hygiene.KeepMinImportance < 0 || c.Hygiene.KeepMinImportance > 1 {
		return NewEngineError("Validate",
			fmt.Errorf("%w: keep_min_importance %v out of range [0,1]", ErrInvalidConfig, c.Hygiene.KeepMinImportance))
	}

	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
