package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// AI providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env"`
	PublicURL       string        `json:"public_url" validate:"omitempty,url"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Content store
	StoreBackend string `json:"store_backend" validate:"oneof=redis memory"`

	// Redis configuration
	RedisURL    string        `json:"redis_url" validate:"required_if=StoreBackend redis"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl" validate:"gt=0"`

	// Enrichment pipeline
	PipelineWorkers     int           `json:"pipeline_workers" validate:"min=1,max=256"`
	PipelineQueueSize   int           `json:"pipeline_queue_size" validate:"min=1"`
	PipelineTaskTimeout time.Duration `json:"pipeline_task_timeout" validate:"gt=0"`
	SweepSchedule       string        `json:"sweep_schedule" validate:"required"`
	SweepPendingAfter   time.Duration `json:"sweep_pending_after" validate:"gt=0"`
	SweepStaleAfter     time.Duration `json:"sweep_stale_after" validate:"gt=0"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`

	// AI Configuration
	AIProvider      string        `json:"ai_provider" validate:"oneof=gemini anthropic"`
	AIApiKey        string        `json:"ai_api_key"`
	AIModel         string        `json:"ai_model"`
	AIVisionModel   string        `json:"ai_vision_model"`
	AITimeout       time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIVisionTimeout time.Duration `json:"ai_vision_timeout" validate:"gt=0"`
	AIMaxTokens     int           `json:"ai_max_tokens" validate:"min=1"`
	AIRateLimit     float64       `json:"ai_rate_limit" validate:"gte=0"`
	AIRateBurst     int           `json:"ai_rate_burst" validate:"min=1"`

	// Transcript service
	TranscriptAPIURL       string        `json:"transcript_api_url" validate:"omitempty,url"`
	TranscriptAPIKey       string        `json:"transcript_api_key"`
	TranscriptTimeout      time.Duration `json:"transcript_timeout" validate:"gt=0"`
	TranscriptPollInterval time.Duration `json:"transcript_poll_interval" validate:"gt=0"`

	// oEmbed
	OEmbedURL     string        `json:"oembed_url" validate:"required,url"`
	OEmbedTimeout time.Duration `json:"oembed_timeout" validate:"gt=0"`

	// Storage
	StoragePath string `json:"storage_path" validate:"required"`
	MaxFileSize int64  `json:"max_file_size" validate:"gt=0"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// FromEnv builds a Config from the current environment without validating it
func FromEnv() *Config {
	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "3000"),
		Env:             getEnv("APP_ENV", "development"),
		PublicURL:       strings.TrimSuffix(getEnv("PUBLIC_URL", ""), "/"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreRedis)),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: getEnv("REDIS_PREFIX", "kova:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 24*time.Hour),

		// Enrichment pipeline
		PipelineWorkers:     getEnvAsInt("PIPELINE_WORKERS", 4),
		PipelineQueueSize:   getEnvAsInt("PIPELINE_QUEUE_SIZE", 100),
		PipelineTaskTimeout: getEnvAsDuration("PIPELINE_TASK_TIMEOUT", 3*time.Minute),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 1m"),
		SweepPendingAfter:   getEnvAsDuration("SWEEP_PENDING_AFTER", 2*time.Minute),
		SweepStaleAfter:     getEnvAsDuration("SWEEP_STALE_AFTER", 10*time.Minute),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "kova-images"),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),

		// AI Configuration
		AIProvider:      strings.ToLower(getEnv("AI_PROVIDER", ProviderGemini)),
		AIApiKey:        getEnv("AI_API_KEY", ""),
		AIModel:         getEnv("AI_MODEL", ""),
		AIVisionModel:   getEnv("AI_VISION_MODEL", ""),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		AIVisionTimeout: getEnvAsDuration("AI_VISION_TIMEOUT", 30*time.Second),
		AIMaxTokens:     getEnvAsInt("AI_MAX_TOKENS", 800),
		AIRateLimit:     getEnvAsFloat("AI_RATE_LIMIT", 2),
		AIRateBurst:     getEnvAsInt("AI_RATE_BURST", 4),

		// Transcript service
		TranscriptAPIURL:       strings.TrimSuffix(getEnv("TRANSCRIPT_API_URL", ""), "/"),
		TranscriptAPIKey:       getEnv("TRANSCRIPT_API_KEY", ""),
		TranscriptTimeout:      getEnvAsDuration("TRANSCRIPT_TIMEOUT", 60*time.Second),
		TranscriptPollInterval: getEnvAsDuration("TRANSCRIPT_POLL_INTERVAL", 3*time.Second),

		// oEmbed
		OEmbedURL:     getEnv("OEMBED_URL", "https://www.tiktok.com/oembed"),
		OEmbedTimeout: getEnvAsDuration("OEMBED_TIMEOUT", 5*time.Second),

		// Storage
		StoragePath: getEnv("STORAGE_PATH", "./data"),
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10<<20), // 10MB

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.R2Enabled() && c.R2Bucket == "" {
		return fmt.Errorf("R2_BUCKET is required when R2 credentials are set")
	}
	return nil
}

// R2Enabled reports whether images should go to Cloudflare R2 instead of local disk
func (c *Config) R2Enabled() bool {
	return c.R2AccessKey != "" && c.R2SecretKey != "" && (c.R2Endpoint != "" || c.R2AccountID != "")
}

// R2EndpointURL resolves the S3-compatible endpoint for the configured account
func (c *Config) R2EndpointURL() string {
	if c.R2Endpoint != "" {
		return c.R2Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// AIEnabled reports whether a model provider can be constructed
func (c *Config) AIEnabled() bool {
	return c.AIApiKey != "" && c.AIApiKey != "test-key"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
