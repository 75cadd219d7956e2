package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverBolt     = "bolt"
)

// Config holds application configuration
type Config struct {
	// Server
	Port             string
	Env              string
	CORSAllowOrigins []string
	ShutdownTimeout  time.Duration
	MetricsAPIKey    string

	// Document store
	StoreDriver string
	SQLitePath  string
	BoltPath    string

	// Database (postgres driver)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Identity
	JWTSecret        string
	JWTIssuer        string
	JWTExpirationDur time.Duration

	// Forms
	FormIdleTimeout  time.Duration
	MaxFormsPerUser  int
	NotifyBufferSize int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		CORSAllowOrigins: strings.Fields(getEnv("CORS_ALLOW_ORIGINS", "*")),
		MetricsAPIKey:    getEnv("METRICS_API_KEY", ""),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
		SQLitePath:  getEnv("SQLITE_PATH", "hisaab.db"),
		BoltPath:    getEnv("BOLT_PATH", "hisaab.bolt"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "hisaab"),
		DBPassword: getEnv("DB_PASSWORD", "hisaab"),
		DBName:     getEnv("DB_NAME", "hisaab"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTIssuer: getEnv("JWT_ISSUER", "hisaab-identity"),

		MaxFormsPerUser:  getEnvInt("MAX_FORMS_PER_USER", 8),
		NotifyBufferSize: getEnvInt("NOTIFY_BUFFER", 32),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.FormIdleTimeout = getEnvDuration("FORM_IDLE_TIMEOUT", 30*time.Minute)
	config.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
