package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the captracker engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database password, Discord bot token) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional; backs the roster cache when set)
	Redis RedisConfig `yaml:"redis"`

	// RuneMetrics profile feed configuration
	RuneMetrics RuneMetricsConfig `yaml:"runemetrics"`

	// Clan hiscores roster feed configuration
	Roster RosterConfig `yaml:"roster"`

	// Discord notification configuration
	Discord DiscordConfig `yaml:"discord"`

	// Sync behaviour
	Sync SyncConfig `yaml:"sync"`

	// RulesSeedPath points to an optional YAML file with global rules that
	// are inserted at startup if absent. Empty disables seeding.
	RulesSeedPath string `yaml:"rules_seed_path" env:"RULES_SEED_PATH" env-default:""`

	// MigrationsPath is the directory holding SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"captracker"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"captracker"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds optional Redis configuration. An empty host means the
// in-memory cache is used instead.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RuneMetricsConfig holds settings for the RuneMetrics profile feed.
type RuneMetricsConfig struct {
	BaseURL        string        `yaml:"base_url" env:"RUNEMETRICS_BASE_URL" env-default:"https://apps.runescape.com/runemetrics"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"RUNEMETRICS_CONNECT_TIMEOUT" env-default:"15s"`
	Timeout        time.Duration `yaml:"timeout" env:"RUNEMETRICS_TIMEOUT" env-default:"25s"`
	MaxActivities  int           `yaml:"max_activities" env:"RUNEMETRICS_MAX_ACTIVITIES" env-default:"20"`
}

// RosterConfig holds settings for the clan hiscores roster feed.
type RosterConfig struct {
	BaseURL  string        `yaml:"base_url" env:"ROSTER_BASE_URL" env-default:"https://secure.runescape.com/m=clan-hiscores"`
	Timeout  time.Duration `yaml:"timeout" env:"ROSTER_TIMEOUT" env-default:"25s"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"ROSTER_CACHE_TTL" env-default:"2m"`
}

// DiscordConfig holds Discord notification settings.
// The bot token is a secret and only comes from the environment.
type DiscordConfig struct {
	BaseURL  string        `yaml:"base_url" env:"DISCORD_BASE_URL" env-default:"https://discord.com/api/v10"`
	BotToken string        `yaml:"-" env:"DISCORD_BOT_TOKEN"`
	Timeout  time.Duration `yaml:"timeout" env:"DISCORD_TIMEOUT" env-default:"25s"`
}

// SyncConfig holds ingestion behaviour settings.
type SyncConfig struct {
	// RefreshInterval is the minimum age of the newest XP snapshot before a
	// manual refresh actually hits the upstream feed again.
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"SYNC_REFRESH_INTERVAL" env-default:"15m"`
	// BackfillBatchLimit caps how many unclassified activities one backfill
	// pass processes per clan.
	BackfillBatchLimit int `yaml:"backfill_batch_limit" env:"SYNC_BACKFILL_BATCH_LIMIT" env-default:"1000"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used by tests and environments without a config file.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return cfg, nil
}
