// Package config loads auction settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/live-auction/go/internal/auctionlog"
	"github.com/mcdev12/live-auction/go/internal/bidder"
	"github.com/mcdev12/live-auction/go/internal/live"
)

// Backend names the store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendWorkbook Backend = "workbook"
	BackendSheets   Backend = "sheets"
	BackendPostgres Backend = "postgres"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Retry     RetryConfig     `yaml:"retry"`
	Auction   AuctionConfig   `yaml:"auction"`
	Projector ProjectorConfig `yaml:"projector"`
	Server    ServerConfig    `yaml:"server"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Backend  Backend        `yaml:"backend"`
	Tables   live.Tables    `yaml:"tables"`
	Workbook WorkbookConfig `yaml:"workbook"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type WorkbookConfig struct {
	Path string `yaml:"path"`
}

type SheetsConfig struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	BaseURL         string        `yaml:"base_url"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	Timeout         time.Duration `yaml:"timeout"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL      string `yaml:"url"` // takes precedence over the fields below
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

type AuctionConfig struct {
	DefaultTimer   int         `yaml:"default_timer"`
	BidMode        bidder.Mode `yaml:"bid_mode"`
	ReplayAttempts int         `yaml:"replay_attempts"`
}

type ProjectorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type NATSConfig struct {
	Enabled                    bool `yaml:"enabled"`
	auctionlog.JetStreamConfig `yaml:",inline"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendMemory,
			Tables:  live.DefaultTables(),
			Workbook: WorkbookConfig{
				Path: "auction.xlsx",
			},
			Sheets: SheetsConfig{
				RequestsPerSec: 1,
				Burst:          5,
				Timeout:        15 * time.Second,
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "postgres",
				Database: "auction",
				SSLMode:  "disable",
			},
		},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  time.Second,
		},
		Auction: AuctionConfig{
			DefaultTimer: 30,
			BidMode:      bidder.ModeLastWriteWins,
		},
		Projector: ProjectorConfig{
			PollInterval: time.Second,
		},
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		NATS: NATSConfig{
			JetStreamConfig: auctionlog.DefaultJetStreamConfig(),
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads an optional .env file, then path (if non-empty) over the
// defaults, then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Store.Tables = cfg.Store.Tables.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Store.Backend = Backend(strings.ToLower(getEnv("AUCTION_STORE_BACKEND", string(c.Store.Backend))))
	c.Store.Workbook.Path = getEnv("AUCTION_WORKBOOK_PATH", c.Store.Workbook.Path)
	c.Store.Sheets.SpreadsheetID = getEnv("AUCTION_SPREADSHEET_ID", c.Store.Sheets.SpreadsheetID)
	c.Store.Sheets.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Store.Sheets.CredentialsFile)

	pg := &c.Store.Postgres
	pg.URL = getEnv("DATABASE_URL", pg.URL)
	pg.Host = getEnv("DB_HOST", pg.Host)
	pg.Port = getEnvAsInt("DB_PORT", pg.Port)
	pg.User = getEnv("DB_USER", pg.User)
	pg.Password = getEnv("DB_PASSWORD", pg.Password)
	pg.Database = getEnv("DB_NAME", pg.Database)
	pg.SSLMode = getEnv("DB_SSLMODE", pg.SSLMode)

	c.Retry.Attempts = getEnvAsInt("AUCTION_RETRY_ATTEMPTS", c.Retry.Attempts)
	c.Retry.Backoff = getEnvAsDuration("AUCTION_RETRY_BACKOFF", c.Retry.Backoff)

	c.Auction.DefaultTimer = getEnvAsInt("AUCTION_DEFAULT_TIMER", c.Auction.DefaultTimer)
	c.Auction.BidMode = bidder.Mode(getEnv("AUCTION_BID_MODE", string(c.Auction.BidMode)))
	c.Auction.ReplayAttempts = getEnvAsInt("AUCTION_REPLAY_ATTEMPTS", c.Auction.ReplayAttempts)

	c.Projector.PollInterval = getEnvAsDuration("PROJECTOR_POLL_INTERVAL", c.Projector.PollInterval)

	c.Server.Port = getEnv("PORT", c.Server.Port)

	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Console = getEnvAsBool("LOG_CONSOLE", c.Log.Console)
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendWorkbook:
		if c.Store.Workbook.Path == "" {
			return errors.New("store.workbook.path is required for the workbook backend")
		}
	case BackendSheets:
		if c.Store.Sheets.SpreadsheetID == "" {
			return errors.New("store.sheets.spreadsheet_id is required for the sheets backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.URL == "" && c.Store.Postgres.Host == "" {
			return errors.New("store.postgres needs a url or host")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if _, err := bidder.SubmitterFor(c.Auction.BidMode); err != nil {
		return err
	}
	if c.Auction.DefaultTimer <= 0 {
		return fmt.Errorf("auction.default_timer must be positive, got %d", c.Auction.DefaultTimer)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be positive, got %d", c.Retry.Attempts)
	}
	if c.Projector.PollInterval <= 0 {
		return errors.New("projector.poll_interval must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer environment value")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-boolean environment value")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration environment value")
	}
	return defaultValue
}
