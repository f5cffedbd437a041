package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig                `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig              `yaml:"database" envconfig:"DATABASE"`
	Archive    ArchiveConfig               `yaml:"archive" envconfig:"ARCHIVE"`
	Schedule   ScheduleConfig              `yaml:"schedule" envconfig:"SCHEDULE"`
	Simulation m.SimulationRequestSettings `yaml:"simulation" envconfig:"SIMULATION"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" envconfig:"ADDR"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// DatabaseConfig points at the run history store. An empty connection string
// runs the service without persistence.
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string" envconfig:"CONNECTION_STRING"`
}

// ArchiveConfig points at the local sqlite event archive. An empty path means
// events are dropped.
type ArchiveConfig struct {
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

// ScheduleConfig drives the background top-up and retention jobs. Cron specs
// include a seconds field.
type ScheduleConfig struct {
	Enabled          bool   `yaml:"enabled" envconfig:"ENABLED"`
	TopUpCron        string `yaml:"top_up_cron" envconfig:"TOP_UP_CRON"`
	RetentionCron    string `yaml:"retention_cron" envconfig:"RETENTION_CRON"`
	TopUpTrials      int    `yaml:"top_up_trials" envconfig:"TOP_UP_TRIALS"`
	FreshnessMinutes int    `yaml:"freshness_minutes" envconfig:"FRESHNESS_MINUTES"`
	MaxAgeDays       int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
	RunOnStart       bool   `yaml:"run_on_start" envconfig:"RUN_ON_START"`
}

func (s ScheduleConfig) Freshness() time.Duration {
	return time.Duration(s.FreshnessMinutes) * time.Minute
}

func (s ScheduleConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeDays) * 24 * time.Hour
}

// Load reads the config file at path when it exists and applies environment
// variable overrides on top, so env beats file beats defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process("MC", cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration the service runs with when nothing else
// is provided: canonical simulation settings, no persistence, no schedule.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Schedule: ScheduleConfig{
			Enabled:          false,
			TopUpCron:        "0 0 * * * *",
			RetentionCron:    "0 15 3 * * *",
			TopUpTrials:      1000,
			FreshnessMinutes: 30,
			MaxAgeDays:       30,
			RunOnStart:       false,
		},
		Simulation: m.DefaultSimulationSettings(),
	}
}

// Validate checks the fields main cannot limp along without. Simulation
// settings are validated per run by the controller.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("server.allowed_origins needs at least one entry")
	}

	if c.Schedule.Enabled {
		if c.Database.ConnectionString == "" {
			return fmt.Errorf("schedule.enabled requires database.connection_string, top ups continue a persisted series")
		}
		if c.Schedule.TopUpCron == "" {
			return fmt.Errorf("schedule.top_up_cron is required when the schedule is enabled")
		}
		if c.Schedule.RetentionCron == "" {
			return fmt.Errorf("schedule.retention_cron is required when the schedule is enabled")
		}
		if c.Schedule.TopUpTrials < 2 {
			return fmt.Errorf("schedule.top_up_trials must be at least 2, got %d", c.Schedule.TopUpTrials)
		}
		if c.Schedule.FreshnessMinutes < 0 {
			return fmt.Errorf("schedule.freshness_minutes must not be negative, got %d", c.Schedule.FreshnessMinutes)
		}
		if c.Schedule.MaxAgeDays < 1 {
			return fmt.Errorf("schedule.max_age_days must be at least 1, got %d", c.Schedule.MaxAgeDays)
		}
	}

	return nil
}
