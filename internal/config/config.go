// Package config loads the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// DBDriver is "sqlite", "pgx" or "memory".
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"data/pantry.db"`

	JWTSecret         string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenExpire time.Duration `env:"ACCESS_TOKEN_EXPIRE" envDefault:"192h"`

	OpenFoodFactsURL string        `env:"OPEN_FOOD_FACTS_API_URL" envDefault:"https://world.openfoodfacts.org/api/v0"`
	BarcodeTimeout   time.Duration `env:"BARCODE_TIMEOUT" envDefault:"10s"`

	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	VisionTimeout    time.Duration `env:"VISION_TIMEOUT" envDefault:"30s"`
	VisionMaxRetries int           `env:"VISION_MAX_RETRIES" envDefault:"0"`
	VisionMaxTokens  int           `env:"VISION_MAX_TOKENS" envDefault:"300"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// The first superuser is created at startup when all three are set.
	FirstSuperuser         string `env:"FIRST_SUPERUSER"`
	FirstSuperuserUsername string `env:"FIRST_SUPERUSER_USERNAME" envDefault:"admin"`
	FirstSuperuserPassword string `env:"FIRST_SUPERUSER_PASSWORD"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values env.Parse cannot.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	switch c.DBDriver {
	case "sqlite", "pgx", "memory":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be sqlite, pgx or memory", c.DBDriver))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if c.AccessTokenExpire <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE must be positive"))
	}
	if c.VisionMaxRetries < 0 {
		errs = append(errs, errors.New("VISION_MAX_RETRIES must be zero or more"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// SuperuserConfigured reports whether the bootstrap account should be created.
func (c Config) SuperuserConfigured() bool {
	return c.FirstSuperuser != "" && c.FirstSuperuserPassword != ""
}
