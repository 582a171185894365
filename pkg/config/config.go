package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Oracle    OracleConfig
	Fraud     FraudConfig
	Decision  DecisionConfig
	Tuning    TuningConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// OracleConfig holds configuration for the external proof classification
// service.
type OracleConfig struct {
	BaseURL          string
	APIKey           string
	TimeoutSeconds   int
	BreakerInterval  int // seconds
	BreakerTimeout   int // seconds
	FailureThreshold int
}

// FraudConfig holds the tunable thresholds of the fraud signal evaluators.
// These are deliberately separate from the pre-validator limits so the two
// defense layers stay independently configurable.
type FraudConfig struct {
	WalkingSpeedMPS    float64
	DrivingSpeedMPS    float64
	FlightSpeedMPS     float64
	DailySubmissionCap int
	MinIntervalSeconds int
}

// DecisionConfig holds the decision policy thresholds.
type DecisionConfig struct {
	AutoApproveThreshold float64
	AutoRejectThreshold  float64
}

// TuningConfig holds the threshold auto-tuner settings.
type TuningConfig struct {
	Enabled           bool
	IntervalMinutes   int
	WindowHours       int
	MaxStepPerRun     float64
	ReviewRateLoosen  float64
	FraudRateTighten  float64
}

// StorageConfig holds proof artifact storage configuration.
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // For S3-compatible storage
	AccessKey     string
	SecretKey     string
	BaseURL       string // Public URL prefix
	MaxFileSizeMB int
}

// RateLimitConfig holds HTTP-layer rate limiting configuration. This is the
// transport-level limiter; the pre-validator enforces its own history-based
// limits on top of it.
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	Limit         int
	RedisPrefix   string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "treasurehunt"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Oracle: OracleConfig{
			BaseURL:          getEnv("ORACLE_BASE_URL", "http://localhost:9090"),
			APIKey:           getEnv("ORACLE_API_KEY", ""),
			TimeoutSeconds:   getEnvAsInt("ORACLE_TIMEOUT", 15),
			BreakerInterval:  getEnvAsInt("ORACLE_BREAKER_INTERVAL", 60),
			BreakerTimeout:   getEnvAsInt("ORACLE_BREAKER_TIMEOUT", 30),
			FailureThreshold: getEnvAsInt("ORACLE_BREAKER_FAILURES", 5),
		},
		Fraud: FraudConfig{
			WalkingSpeedMPS:    getEnvAsFloat("FRAUD_WALKING_SPEED_MPS", 2.5),
			DrivingSpeedMPS:    getEnvAsFloat("FRAUD_DRIVING_SPEED_MPS", 50),
			FlightSpeedMPS:     getEnvAsFloat("FRAUD_FLIGHT_SPEED_MPS", 250),
			DailySubmissionCap: getEnvAsInt("FRAUD_DAILY_CAP", 50),
			MinIntervalSeconds: getEnvAsInt("FRAUD_MIN_INTERVAL_SECONDS", 60),
		},
		Decision: DecisionConfig{
			AutoApproveThreshold: getEnvAsFloat("DECISION_AUTO_APPROVE", 0.85),
			AutoRejectThreshold:  getEnvAsFloat("DECISION_AUTO_REJECT", 0.30),
		},
		Tuning: TuningConfig{
			Enabled:          getEnvAsBool("TUNING_ENABLED", false),
			IntervalMinutes:  getEnvAsInt("TUNING_INTERVAL_MINUTES", 60),
			WindowHours:      getEnvAsInt("TUNING_WINDOW_HOURS", 24),
			MaxStepPerRun:    getEnvAsFloat("TUNING_MAX_STEP", 0.05),
			ReviewRateLoosen: getEnvAsFloat("TUNING_REVIEW_RATE_LOOSEN", 0.40),
			FraudRateTighten: getEnvAsFloat("TUNING_FRAUD_RATE_TIGHTEN", 0.10),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("STORAGE_BUCKET", "treasurehunt-proofs"),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
			BaseURL:       getEnv("STORAGE_BASE_URL", ""),
			MaxFileSizeMB: getEnvAsInt("STORAGE_MAX_FILE_SIZE_MB", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", true),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			Limit:         getEnvAsInt("RATE_LIMIT_LIMIT", 30),
			RedisPrefix:   getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Timeout returns the oracle HTTP timeout as a duration.
func (c *OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
