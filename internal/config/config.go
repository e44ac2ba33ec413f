package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Hermes    HermesConfig    `yaml:"hermes"`
	Collector CollectorConfig `yaml:"collector"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Recalc    RecalcConfig    `yaml:"recalc"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

// CollectorConfig points at the upstream data collection service. An empty
// URL means factor data is read from the database instead.
type CollectorConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type ScoringConfig struct {
	Weights           ScoringWeights `yaml:"weights"`
	FactorTimeoutMs   int            `yaml:"factor_timeout_ms"`
	StalenessHours    int            `yaml:"staleness_hours"`
	HighSampleDensity int            `yaml:"high_sample_density"`
	MaxBatchSize      int            `yaml:"max_batch_size"`
	BatchConcurrency  int            `yaml:"batch_concurrency"`
}

// ScoringWeights are integer percentages and must sum to 100.
type ScoringWeights struct {
	RoadConditions    int `yaml:"road_conditions"`
	AccidentProne     int `yaml:"accident_prone"`
	SharpTurns        int `yaml:"sharp_turns"`
	BlindSpots        int `yaml:"blind_spots"`
	TwoWayTraffic     int `yaml:"two_way_traffic"`
	TrafficDensity    int `yaml:"traffic_density"`
	WeatherConditions int `yaml:"weather_conditions"`
	EmergencyServices int `yaml:"emergency_services"`
	NetworkCoverage   int `yaml:"network_coverage"`
	Amenities         int `yaml:"amenities"`
	SecurityIssues    int `yaml:"security_issues"`
}

type RecalcConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMs      int  `yaml:"interval_ms"`
	StaleAfterHours int  `yaml:"stale_after_hours"`
	BatchLimit      int  `yaml:"batch_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) FactorTimeout() time.Duration {
	return time.Duration(c.Scoring.FactorTimeoutMs) * time.Millisecond
}

func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Scoring.StalenessHours) * time.Hour
}

func (c *Config) CollectorTimeout() time.Duration {
	return time.Duration(c.Collector.TimeoutMs) * time.Millisecond
}

func (c *Config) RecalcInterval() time.Duration {
	return time.Duration(c.Recalc.IntervalMs) * time.Millisecond
}

func (c *Config) RecalcStaleAfter() time.Duration {
	return time.Duration(c.Recalc.StaleAfterHours) * time.Hour
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Collector: CollectorConfig{
			TimeoutMs: 4000,
		},
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				RoadConditions:    20,
				AccidentProne:     15,
				SharpTurns:        10,
				BlindSpots:        10,
				TwoWayTraffic:     10,
				TrafficDensity:    15,
				WeatherConditions: 5,
				EmergencyServices: 5,
				NetworkCoverage:   5,
				Amenities:         2,
				SecurityIssues:    3,
			},
			FactorTimeoutMs:   5000,
			StalenessHours:    24,
			HighSampleDensity: 50,
			MaxBatchSize:      10,
			BatchConcurrency:  4,
		},
		Recalc: RecalcConfig{
			Enabled:         true,
			IntervalMs:      300000,
			StaleAfterHours: 24,
			BatchLimit:      10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyEnv(cfg *Config) {
	envInt("ROUTERISK_PORT", &cfg.Server.Port)
	envInt("ROUTERISK_METRICS_PORT", &cfg.Server.MetricsPort)
	envString("ROUTERISK_ADMIN_TOKEN", &cfg.Server.AdminToken)
	envInt("ROUTERISK_RATE_LIMIT_PER_MINUTE", &cfg.Server.RateLimitPerMinute)
	envString("ROUTERISK_DATABASE_URL", &cfg.Database.URL)
	envString("ROUTERISK_HERMES_URL", &cfg.Hermes.URL)
	envString("ROUTERISK_COLLECTOR_URL", &cfg.Collector.URL)
	envString("ROUTERISK_COLLECTOR_TOKEN", &cfg.Collector.Token)
	envInt("ROUTERISK_FACTOR_TIMEOUT_MS", &cfg.Scoring.FactorTimeoutMs)
	envInt("ROUTERISK_MAX_BATCH_SIZE", &cfg.Scoring.MaxBatchSize)
	envInt("ROUTERISK_RECALC_INTERVAL_MS", &cfg.Recalc.IntervalMs)
	if v := os.Getenv("ROUTERISK_RECALC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recalc.Enabled = b
		}
	}
	envString("ROUTERISK_LOG_LEVEL", &cfg.Logging.Level)
	envString("ROUTERISK_LOG_FORMAT", &cfg.Logging.Format)
}
