package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server (review service)
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (places response cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PlacesCacheTTL time.Duration

	// Kafka (pipeline events; disabled when no brokers configured)
	KafkaBrokers    []string
	PipelineTopic   string

	// Places provider
	PlacesAPIKey         string
	PlacesBaseURL        string
	PlacesRequestTimeout time.Duration
	PlacesCallDelay      time.Duration

	// Matching
	NearbyRadiusMeters      float64
	NameSimilarityThreshold float64
	TextQuerySuffix         string
	TextSearchMaxResults    int

	// Promotion
	PromoteConfidenceThreshold float64

	// Merge
	TrustTiersPath string
}

func Load() *Config {
	// Local runs pick up a .env file when present.
	_ = godotenv.Load()

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "atlas"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "atlas123"),
		PostgresDB:       getEnv("POSTGRES_DB", "atlas"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		PlacesCacheTTL: getDuration("PLACES_CACHE_TTL", 24*time.Hour),

		KafkaBrokers:  getStringSliceEnv("KAFKA_BROKERS", nil),
		PipelineTopic: getEnv("PIPELINE_TOPIC", "resolution-events"),

		PlacesAPIKey:         getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL:        getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesRequestTimeout: getDuration("PLACES_REQUEST_TIMEOUT", 10*time.Second),
		PlacesCallDelay:      getDuration("PLACES_CALL_DELAY", 175*time.Millisecond),

		NearbyRadiusMeters:      getFloatEnv("NEARBY_RADIUS_METERS", 200),
		NameSimilarityThreshold: getFloatEnv("NAME_SIMILARITY_THRESHOLD", 0.85),
		TextQuerySuffix:         getEnv("MATCH_TEXT_QUERY_SUFFIX", " Los Angeles"),
		TextSearchMaxResults:    getIntEnv("TEXT_SEARCH_MAX_RESULTS", 5),

		PromoteConfidenceThreshold: getFloatEnv("PROMOTE_CONFIDENCE_THRESHOLD", 0.7),

		TrustTiersPath: getEnv("TRUST_TIERS_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
