package config

import (
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sbowman/dotenv"
	"go.uber.org/zap/zapcore"

	"github.com/mmeshcher/shortlinks/internal/remotelog"
)

type Config struct {
	ServerAddress   string `env:"SERVER_ADDRESS"`
	BaseURL         string `env:"BASE_URL"`
	FileStoragePath string `env:"FILE_STORAGE_PATH"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	SQLitePath      string `env:"SQLITE_PATH"`
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	LogLevel        string `env:"LOG_LEVEL"`

	LogEndpoint string `env:"LOG_ENDPOINT"`
	AccessToken string `env:"ACCESS_TOKEN"`
	LogStack    string `env:"LOG_STACK" envDefault:"backend"`

	DefaultValidity int           `env:"DEFAULT_VALIDITY" envDefault:"30"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseFlags reads .env, the environment and the command line. Environment values win
// over flags.
func ParseFlags() (*Config, error) {
	dotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.ServerAddress, "a", getDefaultServerAddress(), "Address of the server")
	flag.StringVar(&cfg.BaseURL, "b", getDefaultBaseURL(), "Base URL for short URLs")
	flag.StringVar(&cfg.FileStoragePath, "f", "", "Path to the JSON storage file")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "PostgreSQL connection string")
	flag.StringVar(&cfg.SQLitePath, "s", "", "Path to the SQLite database")
	flag.StringVar(&cfg.RedisAddr, "r", "", "Redis address")
	flag.StringVar(&cfg.LogLevel, "l", getDefaultLogLevel(), "Log level")
	flag.StringVar(&cfg.LogEndpoint, "log-endpoint", remotelog.DefaultEndpoint, "Remote log service endpoint")

	flag.Parse()

	overrideIfSet(&cfg.ServerAddress, envCfg.ServerAddress)
	overrideIfSet(&cfg.BaseURL, envCfg.BaseURL)
	overrideIfSet(&cfg.FileStoragePath, envCfg.FileStoragePath)
	overrideIfSet(&cfg.DatabaseDSN, envCfg.DatabaseDSN)
	overrideIfSet(&cfg.SQLitePath, envCfg.SQLitePath)
	overrideIfSet(&cfg.RedisAddr, envCfg.RedisAddr)
	overrideIfSet(&cfg.LogLevel, envCfg.LogLevel)
	overrideIfSet(&cfg.LogEndpoint, envCfg.LogEndpoint)

	// The access token is often kept only in .env.
	if cfg.AccessToken == "" {
		cfg.AccessToken = dotenv.GetString("ACCESS_TOKEN")
	}

	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideIfSet(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.ParseRequestURI(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL %q must be an absolute http(s) URL", c.BaseURL)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.LogStack != remotelog.StackBackend && c.LogStack != remotelog.StackFrontend {
		return fmt.Errorf("log stack must be %q or %q, got %q", remotelog.StackBackend, remotelog.StackFrontend, c.LogStack)
	}
	if c.DefaultValidity <= 0 {
		return fmt.Errorf("default validity must be positive, got %d", c.DefaultValidity)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}

	if c.BaseURL == "" {
		c.BaseURL = getDefaultBaseURL()
	}

	if c.LogLevel == "" {
		c.LogLevel = getDefaultLogLevel()
	}

	if c.LogEndpoint == "" {
		c.LogEndpoint = remotelog.DefaultEndpoint
	}
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultBaseURL() string {
	return "http://localhost:8080"
}

func getDefaultLogLevel() string {
	return "info"
}
