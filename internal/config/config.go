package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"linguaporta/internal/validation"
)

// Storage backends understood by Store.Backend.
const (
	BackendSQL    = "sql"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// StoreConfig selects the answer grid and names its two partitions.
type StoreConfig struct {
	Backend              string `mapstructure:"backend"`
	WordMeaningPartition string `mapstructure:"word_meaning_partition"`
	FillBlankPartition   string `mapstructure:"fill_blank_partition"`
	AutoProvision        bool   `mapstructure:"auto_provision"`
}

// DatabaseConfig is used by the sql backend.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // sqlite, postgres, pgx or mysql
	Path            string        `mapstructure:"path"` // sqlite file
	URL             string        `mapstructure:"url"`  // postgres/mysql connection string
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SheetsConfig is used by the sheets backend.
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"` // service account JSON; empty means application default credentials
}

// LogConfig configures the zap logger and optional rotating file output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RateLimitConfig bounds requests per client IP. Requests <= 0 disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load reads configuration from an optional .env file, an optional config file and the environment.
// configPath may be empty, in which case CONFIG_FILE or ./config/config.yaml is tried.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names the service accepted before the config file existed.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("database.path", "DATABASE_PATH", "DB_PATH")
	_ = v.BindEnv("sheets.spreadsheet_id", "SHEETS_SPREADSHEET_ID", "SPREADSHEET_ID")
	_ = v.BindEnv("sheets.credentials_file", "SHEETS_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("env", "APP_ENV", "ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("store.backend", BackendSQL)
	v.SetDefault("store.word_meaning_partition", "単語の意味")
	v.SetDefault("store.fill_blank_partition", "空所補充")
	v.SetDefault("store.auto_provision", true)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./linguaporta.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "")

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Validate checks the settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQL, BackendSheets, BackendMemory:
	default:
		return validation.ValidationError{Field: "store.backend", Message: fmt.Sprintf("unsupported backend %q", c.Store.Backend)}
	}

	if c.Store.Backend == BackendSheets && strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
		return validation.ValidationError{Field: "sheets.spreadsheet_id", Message: "spreadsheet id is required for the sheets backend"}
	}

	if err := validation.ValidatePartitionNames(c.Store.WordMeaningPartition, c.Store.FillBlankPartition); err != nil {
		return err
	}

	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return validation.ValidationError{Field: "rate_limit.window", Message: "window must be positive"}
	}

	return nil
}
