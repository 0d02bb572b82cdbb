package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/agripost/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Content   ContentConfig   `yaml:"content"`
	Publisher PublisherConfig `yaml:"publisher"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	Mode           string `yaml:"mode"`
	CertFile       string `yaml:"cert_file"`
	KeyFile        string `yaml:"key_file"`
	AuthTOTPSecret string `yaml:"auth_totp_secret"`
}

type DatabaseConfig struct {
	// Type is one of memory, postgres or sqlite.
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
	Path     string `yaml:"path"`
}

type SchedulerConfig struct {
	Enabled        *bool  `yaml:"enabled"`
	TickInterval   string `yaml:"tick_interval"`
	PublishTimeout string `yaml:"publish_timeout"`
	StatsInterval  string `yaml:"stats_interval"`
	// MaxConcurrent bounds in-flight publish tasks; 0 means no limit.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// IsEnabled treats a missing key as enabled.
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type ContentConfig struct {
	DefaultLocale string `yaml:"default_locale"`
}

type PublisherConfig struct {
	RatePerSecond int                       `yaml:"rate_per_second"`
	DryRun        bool                      `yaml:"dry_run"`
	Platforms     map[string]PlatformConfig `yaml:"platforms"`
}

type PlatformConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type AnalyticsConfig struct {
	StrictPlatforms bool                       `yaml:"strict_platforms"`
	Benchmarks      map[string]BenchmarkConfig `yaml:"benchmarks"`
}

type BenchmarkConfig struct {
	EngagementRate float64 `yaml:"engagement_rate"`
	WeeklyPosts    int     `yaml:"weekly_posts"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5334
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "memory"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "agripost.db"
	}
	if cfg.Scheduler.TickInterval == "" {
		cfg.Scheduler.TickInterval = "1m"
	}
	if cfg.Scheduler.PublishTimeout == "" {
		cfg.Scheduler.PublishTimeout = "30s"
	}
	if cfg.Scheduler.StatsInterval == "" {
		cfg.Scheduler.StatsInterval = "5m"
	}
	if cfg.Content.DefaultLocale == "" {
		cfg.Content.DefaultLocale = "en"
	}
	if cfg.Publisher.RatePerSecond == 0 {
		cfg.Publisher.RatePerSecond = 5
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "agripost"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "agripost"
	}
	if cfg.Analytics.Benchmarks == nil {
		cfg.Analytics.Benchmarks = DefaultBenchmarks()
	}
}

// DefaultBenchmarks are typical organic engagement rates (percent) and
// weekly posting targets for farm and food accounts.
func DefaultBenchmarks() map[string]BenchmarkConfig {
	return map[string]BenchmarkConfig{
		"twitter":   {EngagementRate: 1.0, WeeklyPosts: 14},
		"facebook":  {EngagementRate: 1.5, WeeklyPosts: 5},
		"instagram": {EngagementRate: 3.0, WeeklyPosts: 7},
		"linkedin":  {EngagementRate: 2.0, WeeklyPosts: 3},
	}
}
