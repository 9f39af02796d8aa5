package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Submission  SubmissionConfig  `yaml:"submission"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	// CatalogPath points at a YAML course/achievement catalog; empty uses the embedded one
	CatalogPath string `yaml:"catalog_path"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Env          string        `yaml:"env"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Type           string `yaml:"type"` // "sqlite" or "postgres"
	DSN            string `yaml:"dsn"`
	Path           string `yaml:"path"` // For SQLite: file path
	MaxConnections int    `yaml:"max_connections"`
}

// RedisConfig enables the shared leaderboard cache and cross-instance fan-out when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Channel  string        `yaml:"channel"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RatingBand maps scores at or above MinScore to Label
type RatingBand struct {
	MinScore int    `yaml:"min_score"`
	Label    string `yaml:"label"`
}

type ScoringConfig struct {
	MaxPossibleScore int          `yaml:"max_possible_score"`
	PassingScore     int          `yaml:"passing_score"`
	Ratings          []RatingBand `yaml:"ratings"`
}

type SubmissionConfig struct {
	MaxConflictRetries int `yaml:"max_conflict_retries"`
}

type LeaderboardConfig struct {
	RefreshInterval          time.Duration `yaml:"refresh_interval"`
	IncludeAchievementPoints bool          `yaml:"include_achievement_points"`
}

// Load reads .env, then the YAML file named by PROGRESS_CONFIG (default config.yaml),
// then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(getEnv("PROGRESS_CONFIG", "config.yaml"))
}

// LoadFrom loads configuration from the given YAML path, if it exists
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Env:          "development",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Type:           "sqlite",
			Path:           "./data/progress.db",
			MaxConnections: 20,
		},
		Redis: RedisConfig{
			Channel:  "leaderboard",
			CacheTTL: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Scoring: ScoringConfig{
			MaxPossibleScore: 1000,
			PassingScore:     70,
			Ratings: []RatingBand{
				{MinScore: 90, Label: "Excellent"},
				{MinScore: 80, Label: "Very good"},
				{MinScore: 70, Label: "Good"},
				{MinScore: 50, Label: "Fair"},
				{MinScore: 0, Label: "Needs support"},
			},
		},
		Submission: SubmissionConfig{
			MaxConflictRetries: 3,
		},
		Leaderboard: LeaderboardConfig{
			RefreshInterval:          5 * time.Second,
			IncludeAchievementPoints: true,
		},
	}
}

// applyEnv overrides configuration with environment variables
func (c *Config) applyEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if env := os.Getenv("ENV"); env != "" {
		c.Server.Env = env
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		c.Database.Path = path
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if ch := os.Getenv("REDIS_CHANNEL"); ch != "" {
		c.Redis.Channel = ch
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if retries := os.Getenv("SUBMISSION_MAX_CONFLICT_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.Submission.MaxConflictRetries = r
		}
	}
	if interval := os.Getenv("LEADERBOARD_REFRESH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Leaderboard.RefreshInterval = d
		}
	}
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		c.CatalogPath = path
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("sqlite requires a path or dsn")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Scoring.MaxPossibleScore <= 0 {
		return fmt.Errorf("max possible score must be positive")
	}
	if c.Scoring.PassingScore < 0 || c.Scoring.PassingScore > 100 {
		return fmt.Errorf("passing score must be between 0 and 100")
	}
	if err := ValidateRatings(c.Scoring.Ratings); err != nil {
		return err
	}

	if c.Submission.MaxConflictRetries < 1 {
		return fmt.Errorf("max conflict retries must be at least 1")
	}
	if c.Leaderboard.RefreshInterval <= 0 {
		return fmt.Errorf("leaderboard refresh interval must be positive")
	}
	return nil
}

// ValidateRatings checks that bands are five strictly descending inclusive lower bounds ending at 0
func ValidateRatings(bands []RatingBand) error {
	if len(bands) != 5 {
		return fmt.Errorf("expected 5 rating bands, got %d", len(bands))
	}
	for i, b := range bands {
		if b.Label == "" {
			return fmt.Errorf("rating band %d has no label", i)
		}
		if i > 0 && b.MinScore >= bands[i-1].MinScore {
			return fmt.Errorf("rating bands must be strictly descending")
		}
	}
	if bands[len(bands)-1].MinScore != 0 {
		return fmt.Errorf("last rating band must start at 0")
	}
	if bands[0].MinScore > 100 {
		return fmt.Errorf("rating band above 100")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
