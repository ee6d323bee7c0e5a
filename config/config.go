package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/joho/godotenv"
)

var (
	customLog = logger.NewLogger()
)

// DefaultHitsDedupTTL is how long a counted request id is remembered.
const DefaultHitsDedupTTL = 10 * time.Minute

// Config holds application configuration values
type Config struct {
	ServerPort         string
	AllowedOrigin      string
	MetadataDbDir      string
	MetadataDbFile     string
	RateLimitPerMinute int
	HitsDedupTTL       time.Duration
	HitsRedisURL       string
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	// Attempt to load .env file if in development environment (skip in production)
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port := getEnv("SERVER_PORT", "3001")
	origin := getEnv("ALLOWED_ORIGIN", "http://localhost:3000")
	dbDir := getEnv("DATABASE_DIRECTORY", "data")
	dbFile := getEnv("DATABASE_DIRECTORY_FILE", "metadata.db")
	rateLimitStr := getEnv("RATE_LIMIT_PER_MINUTE", "0")
	dedupTTLStr := getEnv("HITS_DEDUP_TTL_MINUTES", "10")
	redisURL := os.Getenv("HITS_REDIS_URL") // Optional, empty keeps dedup in memory

	// --- Validation and Parsing ---
	if port == "" {
		return nil, errors.New("SERVER_PORT must not be empty")
	}

	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil || rateLimit < 0 {
		customLog.Warnf("Invalid RATE_LIMIT_PER_MINUTE '%s'. Rate limiting disabled. Error: %v", rateLimitStr, err)
		rateLimit = 0
	}

	dedupMinutes, err := strconv.Atoi(dedupTTLStr)
	if err != nil || dedupMinutes <= 0 {
		customLog.Warnf("Invalid HITS_DEDUP_TTL_MINUTES '%s'. Using default %v. Error: %v", dedupTTLStr, DefaultHitsDedupTTL, err)
		dedupMinutes = int(DefaultHitsDedupTTL / time.Minute)
	}

	cfg := &Config{
		ServerPort:         port,
		AllowedOrigin:      origin,
		MetadataDbDir:      dbDir,
		MetadataDbFile:     dbFile,
		RateLimitPerMinute: rateLimit,
		HitsDedupTTL:       time.Minute * time.Duration(dedupMinutes),
		HitsRedisURL:       redisURL,
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, Origin: %s, Hit dedup TTL: %v", cfg.ServerPort, cfg.AllowedOrigin, cfg.HitsDedupTTL)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
