package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	Timezone            string   `mapstructure:"TIMEZONE"`
	AuthIssuer          string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey      string   `mapstructure:"AUTH_SIGNING_KEY"`
	WriteTimeoutSeconds int      `mapstructure:"WRITE_TIMEOUT_SECONDS"`
	MetricsNamespace    string   `mapstructure:"METRICS_NAMESPACE"`
}

// minSigningKeyLen is the shortest HS256 secret accepted outside development.
const minSigningKeyLen = 32

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TIMEZONE", "Europe/Madrid")
	v.SetDefault("AUTH_ISSUER", "backoffice")
	v.SetDefault("WRITE_TIMEOUT_SECONDS", 10)
	v.SetDefault("METRICS_NAMESPACE", "backoffice")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("TIMEZONE")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("WRITE_TIMEOUT_SECONDS")
	v.BindEnv("METRICS_NAMESPACE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, every request acts as admin.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location loads the configured time zone, falling back to UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WriteTimeout bounds detached agenda writes.
func (c *Config) WriteTimeout() time.Duration {
	if c.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key of at least 32 bytes is required so JWTs are verified.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if len(c.AuthSigningKey) < minSigningKeyLen {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
