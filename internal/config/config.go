package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	VerboseErrors  bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConnections       int
	IdleTimeout          time.Duration
	ConnectionTimeout    time.Duration
	MaxUsesPerConnection int
	ExitOnIdleError      bool

	QueryTimeout      time.Duration
	KeepAliveInterval time.Duration
	IdleCheckInterval time.Duration
	AutoMigrate       bool
}

// RedisConfig is optional; an empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// LoadFrom reads configuration from an optional env file and the process environment.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Warning: Could not read config file %s: %v", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	// DB_USERS is the variable name older deployments export.
	_ = v.BindEnv("DB_USER", "DB_USER", "DB_USERS")

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("VERBOSE_ERRORS", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "products")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("DB_MAX_CONNECTIONS", 20)
	v.SetDefault("DB_IDLE_TIMEOUT", "30s")
	v.SetDefault("DB_CONNECTION_TIMEOUT", "5s")
	v.SetDefault("DB_MAX_USES", 7500)
	v.SetDefault("DB_EXIT_ON_IDLE_ERROR", false)
	v.SetDefault("DB_QUERY_TIMEOUT_MS", 5000)
	v.SetDefault("DB_KEEPALIVE_INTERVAL", "60s")
	v.SetDefault("DB_IDLE_CHECK_INTERVAL", "30s")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			VerboseErrors:  v.GetBool("VERBOSE_ERRORS"),
		},
		Database: DatabaseConfig{
			Host:                 v.GetString("DB_HOST"),
			Port:                 v.GetString("DB_PORT"),
			User:                 v.GetString("DB_USER"),
			Password:             v.GetString("DB_PASSWORD"),
			Database:             v.GetString("DB_NAME"),
			SSLMode:              v.GetString("DB_SSLMODE"),
			MaxConnections:       v.GetInt("DB_MAX_CONNECTIONS"),
			IdleTimeout:          v.GetDuration("DB_IDLE_TIMEOUT"),
			ConnectionTimeout:    v.GetDuration("DB_CONNECTION_TIMEOUT"),
			MaxUsesPerConnection: v.GetInt("DB_MAX_USES"),
			ExitOnIdleError:      v.GetBool("DB_EXIT_ON_IDLE_ERROR"),
			QueryTimeout:         time.Duration(v.GetInt("DB_QUERY_TIMEOUT_MS")) * time.Millisecond,
			KeepAliveInterval:    v.GetDuration("DB_KEEPALIVE_INTERVAL"),
			IdleCheckInterval:    v.GetDuration("DB_IDLE_CHECK_INTERVAL"),
			AutoMigrate:          v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if err := validatePort(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port: %w", err)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if err := validatePort(c.Database.Port); err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if !validSSLModes[c.Database.SSLMode] {
		return fmt.Errorf("invalid database ssl mode: %q", c.Database.SSLMode)
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Database.MaxUsesPerConnection < 0 {
		return fmt.Errorf("database max uses per connection cannot be negative")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database query timeout must be positive")
	}

	if c.Redis.Addr != "" {
		if c.RateLimit.Requests < 1 {
			return fmt.Errorf("rate limit requests must be at least 1")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// Address returns the listen address for the HTTP server.
func (c *ServerConfig) Address() string {
	return ":" + c.Port
}

// ConnectionString returns the PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("%d out of range", p)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
