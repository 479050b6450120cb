package config

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/medisync/pkg/config"
	"github.com/Skotchmaster/medisync/pkg/db"
	"github.com/Skotchmaster/medisync/pkg/hash"
)

const (
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
)

type Config struct {
	ServiceName string
	ListenAddr  string
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret  []byte
	BcryptCost int

	RevocationBackend string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	KafkaBrokers []string
	KafkaTopic   string

	AllowedOrigins []string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("notice: cannot read .env: %v", err)
	}

	cfg := &Config{
		ServiceName: config.EnvDefault("SERVICE_NAME", "medisync-auth"),
		ListenAddr:  config.EnvDefault("LISTEN_ADDR", ":5000"),
		LogLevel:    config.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    config.EnvDefault("DB_DRIVER", db.DriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:  []byte(os.Getenv("JWT_SECRET")),
		BcryptCost: config.EnvIntDefault("BCRYPT_COST", hash.DefaultCost),

		RevocationBackend: config.EnvDefault("REVOCATION_BACKEND", RevocationMemory),
		RedisAddr:         config.EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           config.EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: config.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   config.EnvDefault("KAFKA_TOPIC", "user_events"),

		AllowedOrigins: config.CSV(os.Getenv("ALLOWED_ORIGINS")),
	}

	if err := config.RequireNonEmpty(string(cfg.JWTSecret), "JWT_SECRET"); err != nil {
		return nil, err
	}
	if err := config.RequireNonEmpty(cfg.DatabaseURL, "DATABASE_URL"); err != nil {
		return nil, err
	}
	switch cfg.RevocationBackend {
	case RevocationMemory, RevocationRedis:
	default:
		return nil, errors.New("REVOCATION_BACKEND must be memory or redis")
	}
	return cfg, nil
}
