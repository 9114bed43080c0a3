package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// PostgresConfig содержит настройки подключения к БД.
type PostgresConfig struct {
	Host            string        `env:"DB_HOST" env-default:"localhost"`
	Port            string        `env:"DB_PORT" env-default:"5432"`
	User            string        `env:"DB_USER" env-default:"postgres"`
	Password        string        `env:"DB_PASSWORD" env-default:"postgres"`
	DBName          string        `env:"DB_NAME" env-default:"domremont"`
	SSLMode         string        `env:"DB_SSLMODE" env-default:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" env-default:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" env-default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`
	MigrationsPath  string        `env:"DB_MIGRATIONS_PATH" env-default:"migrations"`
}

// Config содержит всю конфигурацию приложения.
type Config struct {
	App struct {
		Port string `env:"APP_PORT" env-default:"8080"`
	}
	Postgres PostgresConfig
	Auth     struct {
		JWTSecret string        `env:"JWT_SECRET" env-default:"dev-secret-change-me"`
		TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"24h"`
		CodeTTL   time.Duration `env:"AUTH_CODE_TTL" env-default:"5m"`
	}
}

// NewConfig читает .env (если есть) и переменные окружения.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return cfg, nil
}

// DSN собирает строку подключения для pgx.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
