package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultSessionTTL          = 15 * time.Minute
	defaultExplorePageSize     = 4
	defaultHomePostsCount      = 3
	defaultMaxUploadSizeMB     = 10
	defaultAuthRateLimitPerMin = 15
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`
	// postgres, DatabaseURL has precedence over host/port/name when set
	DatabaseURL    string `toml:"database_url"`
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	// redis (sessions, rate limiting)
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// uploaded post images
	UploadsPath     string `toml:"uploads_path"`
	MaxUploadSizeMB int64  `toml:"max_upload_size_mb"`
	// sessions
	SessionTTL   Duration `toml:"session_ttl"`
	SecureCookie bool     `toml:"secure_cookie"`
	// feed
	ExplorePageSize int `toml:"explore_page_size"`
	HomePostsCount  int `toml:"home_posts_count"`
	// login & register POST requests allowed per minute
	AuthRateLimitAllowedPerMin int `toml:"auth_rate_limit_allowed_per_min"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

// Duration wraps time.Duration so it can be written as "15m" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration [%s]: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Toml struct {
	Development *Config `toml:"development"`
	Production  *Config `toml:"production"`
	DockerDev   *Config `toml:"dockerdev"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	cfg.Environment = strings.ToLower(env)
	return cfg, nil
}

func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}
	return fromToml(&tomlConfig, env)
}

// Parse reads the config from TOML text instead of a file
func Parse(env, tomlText string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.Decode(tomlText, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}
	return fromToml(&tomlConfig, env)
}

func fromToml(tomlConfig *Toml, env string) (*Config, error) {
	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = defaultSessionTTL
	}
	if c.ExplorePageSize <= 0 {
		c.ExplorePageSize = defaultExplorePageSize
	}
	if c.HomePostsCount <= 0 {
		c.HomePostsCount = defaultHomePostsCount
	}
	if c.MaxUploadSizeMB <= 0 {
		c.MaxUploadSizeMB = defaultMaxUploadSizeMB
	}
	if c.AuthRateLimitAllowedPerMin <= 0 {
		c.AuthRateLimitAllowedPerMin = defaultAuthRateLimitPerMin
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be set")
	}
	if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "") {
		return errors.New("either database_url or postgres host, port and db name must be set")
	}
	if c.UploadsPath == "" {
		return errors.New("uploads_path must be set")
	}
	return nil
}

func (c *Config) MaxUploadSizeBytes() int64 {
	return c.MaxUploadSizeMB << 20
}
