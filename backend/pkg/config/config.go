package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// LLM gateway (OpenAI-compatible)
	LLMBaseURL string
	LLMAPIKey  string
	ModelID    string

	// Embeddings
	EmbeddingModel      string
	EmbeddingDimensions int

	// Weight lifecycle
	DecayFactor     float64
	BoostIncrement  float64
	BoostWindowDays int
	WeightCap       float64
	PruneThreshold  float64

	// Retrieval
	SearchLimit         int
	SimilarityFloor     float64
	ConfidenceThreshold float64

	// Scheduler cadences
	DecayInterval      time.Duration
	SyncInterval       time.Duration
	StatisticsInterval time.Duration
	CleanupInterval    time.Duration

	// Maintenance
	SessionKeepRecent int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		Neo4jURI:            getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:           getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:       getEnv("NEO4J_PASSWORD", "password"),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		ModelID:             getEnv("MODEL_ID", "openrouter/anthropic/claude-3.5-sonnet"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		DecayFactor:         getEnvFloat("DECAY_FACTOR", 0.99),
		BoostIncrement:      getEnvFloat("BOOST_INCREMENT", 0.1),
		BoostWindowDays:     getEnvInt("BOOST_WINDOW_DAYS", 7),
		WeightCap:           getEnvFloat("WEIGHT_CAP", 5.0),
		PruneThreshold:      getEnvFloat("PRUNE_THRESHOLD", 0.1),
		SearchLimit:         getEnvInt("SEARCH_LIMIT", 10),
		SimilarityFloor:     getEnvFloat("SIMILARITY_FLOOR", 0.6),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.6),
		DecayInterval:       getEnvDuration("DECAY_INTERVAL", time.Hour),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
		StatisticsInterval:  getEnvDuration("STATISTICS_INTERVAL", 24*time.Hour),
		CleanupInterval:     getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		SessionKeepRecent:   getEnvInt("SESSION_KEEP_RECENT", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and sane
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID is required")
	}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		return fmt.Errorf("DECAY_FACTOR must be between 0 and 1 exclusive, got %v", c.DecayFactor)
	}
	if c.BoostIncrement < 0 {
		return fmt.Errorf("BOOST_INCREMENT must not be negative, got %v", c.BoostIncrement)
	}
	if c.WeightCap <= 0 {
		return fmt.Errorf("WEIGHT_CAP must be positive, got %v", c.WeightCap)
	}
	if c.PruneThreshold <= 0 {
		return fmt.Errorf("PRUNE_THRESHOLD must be positive, got %v", c.PruneThreshold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.SearchLimit)
	}
	if c.SessionKeepRecent <= 0 {
		return fmt.Errorf("SESSION_KEEP_RECENT must be positive, got %d", c.SessionKeepRecent)
	}
	// LLM_API_KEY is optional for development against a local gateway
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
