package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	Env           string
	Host          string
	Port          string
	AllowedOrigin string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsChannel string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret      string
	AdminTokenTTL  time.Duration
	BookingsPerMin int
}

// Load reads a .env file from the working directory when one exists, then
// the process environment. Real environment variables win over .env values.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ADMIN_TOKEN_TTL_MINUTES", "60"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 60
	}
	perMin, err := strconv.Atoi(getEnv("BOOKINGS_PER_MINUTE", "30"))
	if err != nil || perMin < 1 {
		perMin = 30
	}

	return Config{
		Env:            strings.ToLower(getEnv("APP_ENV", "development")),
		Host:           getEnv("APP_HOST", ""),
		Port:           getEnv("APP_PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		EventsChannel:  getEnv("EVENTS_CHANNEL", "venuebook.bookings"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "venuebook.bookings"),
		JWTSecret:      strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AdminTokenTTL:  time.Duration(tokenTTL) * time.Minute,
		BookingsPerMin: perMin,
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// ValidateSecurityConfig rejects settings that must never reach production.
func (c Config) ValidateSecurityConfig() error {
	if !c.IsProduction() {
		return nil
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minSecretLength)
	}
	if c.AllowedOrigin == "*" {
		return errors.New("ALLOWED_ORIGIN must not be a wildcard in production")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required in production")
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
