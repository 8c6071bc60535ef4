package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	KIS      KISConfig
	Scrape38 Scrape38Config

	// Pipeline
	Model ModelSettings
	Paths PathsConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ModelSettings holds model training hyperparameters
type ModelSettings struct {
	Type            string // random_forest
	Version         string // reported in the artifact metadata
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	TestSize        float64
	Seed            int64

	// Feature thresholds
	HighCompetitionThreshold float64 // 청약 경쟁률 임계값
	HighDemandThreshold      float64 // 기관 수요예측 경쟁률 임계값
}

// PathsConfig holds filesystem locations for persisted pipeline state
type PathsConfig struct {
	ModelsDir       string // trained model artifacts
	TransformersDir string // fitted encoder/scaler bundle
	OutputFile      string // prediction artifact consumed by the dashboard
}

// SchedulerConfig holds cron schedules for the batch jobs
type SchedulerConfig struct {
	Enabled          bool
	GenerateSchedule string // daily collect + generate
	RetrainSchedule  string // weekly retrain
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// KISConfig holds KIS (한국투자증권) API configuration
type KISConfig struct {
	AppKey    string
	AppSecret string
	BaseURL   string
	RateLimit float64 // requests per second
}

// Scrape38Config holds 38.co.kr scraper configuration
type Scrape38Config struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		KIS: KISConfig{
			AppKey:    getEnv("KIS_APP_KEY", ""),
			AppSecret: getEnv("KIS_APP_SECRET", ""),
			BaseURL:   getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			RateLimit: getEnvAsFloat("KIS_RATE_LIMIT", 4),
		},

		Scrape38: Scrape38Config{
			BaseURL: getEnv("SCRAPE38_BASE_URL", "https://www.38.co.kr"),
			Timeout: getEnvAsDuration("SCRAPE38_TIMEOUT", "30s"),
		},

		Model: ModelSettings{
			Type:            getEnv("MODEL_TYPE", "random_forest"),
			Version:         getEnv("MODEL_VERSION", "v2.0"),
			NumTrees:        getEnvAsInt("RF_N_ESTIMATORS", 100),
			MaxDepth:        getEnvAsInt("RF_MAX_DEPTH", 15),
			MinSamplesSplit: getEnvAsInt("RF_MIN_SAMPLES_SPLIT", 5),
			MinSamplesLeaf:  getEnvAsInt("RF_MIN_SAMPLES_LEAF", 2),
			TestSize:        getEnvAsFloat("MODEL_TEST_SIZE", 0.2),
			Seed:            int64(getEnvAsInt("MODEL_RANDOM_STATE", 42)),

			HighCompetitionThreshold: getEnvAsFloat("HIGH_COMPETITION_THRESHOLD", 1000),
			HighDemandThreshold:      getEnvAsFloat("HIGH_DEMAND_THRESHOLD", 500),
		},

		Paths: PathsConfig{
			ModelsDir:       getEnv("MODELS_DIR", "models"),
			TransformersDir: getEnv("TRANSFORMERS_DIR", "data/processed"),
			OutputFile:      getEnv("PREDICTION_OUTPUT_FILE", "output/ipo_predictions.json"),
		},

		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", true),
			GenerateSchedule: getEnv("SCHEDULE_GENERATE", "0 0 18 * * 1-5"),
			RetrainSchedule:  getEnv("SCHEDULE_RETRAIN", "0 0 3 * * 6"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Model.Type != "random_forest" {
		return fmt.Errorf("MODEL_TYPE must be random_forest, got %q", c.Model.Type)
	}

	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return fmt.Errorf("MODEL_TEST_SIZE must be in (0, 1), got %v", c.Model.TestSize)
	}

	if c.Model.NumTrees <= 0 {
		return fmt.Errorf("RF_N_ESTIMATORS must be positive, got %d", c.Model.NumTrees)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
