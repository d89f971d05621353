package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// QdrantConfig is optional; an empty URL disables the result index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type AnalysisConfig struct {
	MaxWorkers       int
	TaskTimeout      time.Duration
	CacheTTL         time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int
	RetryMaxAttempts int
	RetryMinWait     time.Duration
	RetryMaxWait     time.Duration
	RetryMultiplier  time.Duration
}

type LogConfig struct {
	JSON  bool
	Debug bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "context_cache"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "resume_analyses"),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 50<<20),
		},
		Analysis: AnalysisConfig{
			MaxWorkers:       getEnvAsInt("ANALYSIS_MAX_WORKERS", 5),
			TaskTimeout:      getEnvAsDuration("ANALYSIS_TASK_TIMEOUT", "10m"),
			CacheTTL:         getEnvAsDuration("ANALYSIS_CACHE_TTL", "1800s"),
			PollInterval:     getEnvAsDuration("ANALYSIS_POLL_INTERVAL", "2s"),
			PollMaxAttempts:  getEnvAsInt("ANALYSIS_POLL_MAX_ATTEMPTS", 150),
			RetryMaxAttempts: getEnvAsInt("UPLOAD_RETRY_MAX_ATTEMPTS", 3),
			RetryMinWait:     getEnvAsDuration("UPLOAD_RETRY_MIN_WAIT", "4s"),
			RetryMaxWait:     getEnvAsDuration("UPLOAD_RETRY_MAX_WAIT", "10s"),
			RetryMultiplier:  getEnvAsDuration("UPLOAD_RETRY_MULTIPLIER", "1s"),
		},
		Log: LogConfig{
			JSON:  getEnvAsBool("LOG_JSON", false),
			Debug: getEnvAsBool("LOG_DEBUG", false),
		},
	}
}

// Validate rejects combinations the analysis pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Database.Driver)
	}

	a := c.Analysis
	if a.MaxWorkers < 1 {
		return fmt.Errorf("ANALYSIS_MAX_WORKERS must be at least 1, got %d", a.MaxWorkers)
	}
	if a.PollMaxAttempts < 1 {
		return fmt.Errorf("ANALYSIS_POLL_MAX_ATTEMPTS must be at least 1, got %d", a.PollMaxAttempts)
	}
	if a.RetryMaxAttempts < 1 {
		return fmt.Errorf("UPLOAD_RETRY_MAX_ATTEMPTS must be at least 1, got %d", a.RetryMaxAttempts)
	}
	if a.RetryMinWait > a.RetryMaxWait {
		return fmt.Errorf("UPLOAD_RETRY_MIN_WAIT (%s) exceeds UPLOAD_RETRY_MAX_WAIT (%s)", a.RetryMinWait, a.RetryMaxWait)
	}
	if a.TaskTimeout <= 0 || a.CacheTTL <= 0 || a.PollInterval <= 0 {
		return fmt.Errorf("analysis durations must be positive")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
