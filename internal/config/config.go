// Package config loads and validates the archivesync service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeoutSeconds is the default HTTP read timeout in seconds
	DefaultReadTimeoutSeconds = 10
	// DefaultWriteTimeoutSeconds is the default HTTP write timeout in seconds
	DefaultWriteTimeoutSeconds = 30
	// DefaultShutdownTimeoutSeconds is the default shutdown timeout in seconds
	DefaultShutdownTimeoutSeconds = 30
)

type Config struct {
	Debug      bool             `yaml:"debug"` // Controls log level and format
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Worker     WorkerConfig     `yaml:"worker"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g. ":8075"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ArchiveConfig configures the external repository backend.
type ArchiveConfig struct {
	URL            string        `yaml:"url"`             // Archive API base URL
	Username       string        `yaml:"username"`        // API credentials
	Password       string        `yaml:"password"`        //
	IdentifierBase string        `yaml:"identifier_base"` // Joined with the PID to build archive URIs
	Timeout        time.Duration `yaml:"timeout"`         // Request timeout (default: 30s)
}

// VocabularyConfig configures the concept-lookup service used to resolve
// role URIs to relator codes.
type VocabularyConfig struct {
	URL       string        `yaml:"url"`        // Lookup service base URL
	Timeout   time.Duration `yaml:"timeout"`    // Request timeout (default: 5s)
	CacheSize int           `yaml:"cache_size"` // LRU entries (default: 512)
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // Default: 5s
	BatchSize    int           `yaml:"batch_size"`    // Default: 50
	PushTimeout  time.Duration `yaml:"push_timeout"`  // Default: 2m
}

// StorageConfig locates the media binaries on disk.
type StorageConfig struct {
	MediaDir string `yaml:"media_dir"` // Default: ./media
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate checks the server configuration and sets defaults.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		c.Address = ":8075"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Archive.URL == "" {
		return errors.New("archive.url is required")
	}
	if c.Archive.IdentifierBase == "" {
		return errors.New("archive.identifier_base is required")
	}
	if c.Vocabulary.URL == "" {
		return errors.New("vocabulary.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %v", c.Worker.PollInterval)
	}
	return nil
}

// setDefaults sets default values for configuration fields
func setDefaults(cfg *Config) {
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Archive.Timeout == 0 {
		cfg.Archive.Timeout = 30 * time.Second
	}
	if cfg.Vocabulary.Timeout == 0 {
		cfg.Vocabulary.Timeout = 5 * time.Second
	}
	if cfg.Vocabulary.CacheSize == 0 {
		cfg.Vocabulary.CacheSize = 512
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 5 * time.Second
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 50
	}
	if cfg.Worker.PushTimeout == 0 {
		cfg.Worker.PushTimeout = 2 * time.Minute
	}
	if cfg.Storage.MediaDir == "" {
		cfg.Storage.MediaDir = "./media"
	}
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(cfg *Config) {
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("POSTGRES_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if archiveURL := os.Getenv("ARCHIVE_URL"); archiveURL != "" {
		cfg.Archive.URL = archiveURL
	}
	if archivePassword := os.Getenv("ARCHIVE_PASSWORD"); archivePassword != "" {
		cfg.Archive.Password = archivePassword
	}
	if vocabURL := os.Getenv("VOCABULARY_URL"); vocabURL != "" {
		cfg.Vocabulary.URL = vocabURL
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.Auth.JWTSecret = jwtSecret
	}
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server config validation: %w", err)
	}

	if port := os.Getenv("ARCHIVESYNC_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean. Returns true for "true",
// "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
