package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultInferenceURL    = "https://agent-prod.studio.lyzr.ai/v3/inference/chat/"
	defaultInsightsAgentID = "68e16e5d3637bc8ddc9fff03"
	defaultCategoryAgentID = "68e16e75f21978807e7e9e8d"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	DataDir      string
	SQLiteDBPath string

	// Remote inference
	InferenceURL        string
	InferenceAPIKey     string
	InsightsAgentID     string
	CategoryAgentID     string
	InferenceTimeout    time.Duration
	InferenceMaxRetries int

	// Category suggestion cache
	SuggestionCacheSize int
	SuggestionCacheTTL  time.Duration

	// AMQP (optional change events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budget.db"),

		InferenceURL:        getEnv("INFERENCE_URL", defaultInferenceURL),
		InferenceAPIKey:     getEnv("INFERENCE_API_KEY", ""),
		InsightsAgentID:     getEnv("INSIGHTS_AGENT_ID", defaultInsightsAgentID),
		CategoryAgentID:     getEnv("CATEGORY_AGENT_ID", defaultCategoryAgentID),
		InferenceTimeout:    getEnvDuration("INFERENCE_TIMEOUT", 30*time.Second),
		InferenceMaxRetries: getEnvInt("INFERENCE_MAX_RETRIES", 0),

		SuggestionCacheSize: getEnvInt("SUGGESTION_CACHE_SIZE", 200),
		SuggestionCacheTTL:  getEnvDuration("SUGGESTION_CACHE_TTL", 30*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// An empty inference URL disables remote calls; insights fall back to the local summary.
	if c.InferenceURL != "" {
		if parsedURL, err := url.Parse(c.InferenceURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid inference URL '%s': %v", c.InferenceURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid inference URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.InsightsAgentID == "" {
			errors = append(errors, "insights agent ID cannot be empty when inference URL is provided")
		}
		if c.CategoryAgentID == "" {
			errors = append(errors, "category agent ID cannot be empty when inference URL is provided")
		}
	}

	if c.InferenceTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid inference timeout %v: must be at least 1 second", c.InferenceTimeout))
	} else if c.InferenceTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid inference timeout %v: must be at most 5 minutes", c.InferenceTimeout))
	}

	if c.InferenceMaxRetries < 0 || c.InferenceMaxRetries > 5 {
		errors = append(errors, fmt.Sprintf("invalid inference max retries %d: must be between 0 and 5", c.InferenceMaxRetries))
	}

	if c.SuggestionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid suggestion cache size %d: must be at least 1", c.SuggestionCacheSize))
	}
	if c.SuggestionCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid suggestion cache TTL %v: must be at least 1 second", c.SuggestionCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
