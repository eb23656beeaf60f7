// Package config loads the scheduler's runtime configuration the way the
// teacher's node daemon does: a YAML file located via viper, overridable
// by RAPST_-prefixed environment variables, with defaults applied before
// the file is even read.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// SchedulerConfig carries the CP and heuristic tuning knobs threaded
// through to pkg/simulator.Config.
type SchedulerConfig struct {
	Strategy         string  `yaml:"strategy" mapstructure:"strategy"`
	TimeLimitSeconds float64 `yaml:"time_limit_seconds" mapstructure:"time_limit_seconds"`
	Sigma            int     `yaml:"sigma" mapstructure:"sigma"`
	Alpha            int     `yaml:"alpha" mapstructure:"alpha"`
	BreakSymmetries  bool    `yaml:"break_symmetries" mapstructure:"break_symmetries"`
	Horizon          int     `yaml:"horizon" mapstructure:"horizon"`
}

// LoggingConfig controls logrus's level and formatter.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "text" or "json"
}

// IOConfig points at the process/resource description inputs and the
// schedule document output.
type IOConfig struct {
	ProcessFile  string `yaml:"process_file" mapstructure:"process_file"`
	ResourceFile string `yaml:"resource_file" mapstructure:"resource_file"`
	OutputFile   string `yaml:"output_file" mapstructure:"output_file"`
}

// Config is the top-level configuration object, unmarshaled from YAML by
// Load.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	IO        IOConfig        `yaml:"io" mapstructure:"io"`
}

func defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Strategy:         "HEURISTIC",
			TimeLimitSeconds: 30,
			Sigma:            0,
			Alpha:            0,
			BreakSymmetries:  false,
			Horizon:          0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configFile (or, if empty, searches ./config.yaml,
// $HOME/.ra-pst-scheduler/config.yaml and /etc/ra-pst-scheduler/config.yaml)
// through viper, overlays RAPST_-prefixed environment variables, and
// validates the result. A config file that does not exist leaves the
// defaults in place.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	cfg := defaults()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.ra-pst-scheduler")
		}
		v.AddConfigPath("/etc/ra-pst-scheduler")
	}

	v.SetEnvPrefix("RAPST")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration names a supported strategy and
// carries sane numeric bounds.
func (c *Config) Validate() error {
	switch c.Scheduler.Strategy {
	case "HEURISTIC", "SINGLE_INSTANCE_CP", "SINGLE_INSTANCE_CP_WARM", "ALL_INSTANCE_CP", "ALL_INSTANCE_CP_WARM":
	default:
		return fmt.Errorf("config: unknown scheduler.strategy %q", c.Scheduler.Strategy)
	}
	if c.Scheduler.TimeLimitSeconds <= 0 {
		return fmt.Errorf("config: scheduler.time_limit_seconds must be positive")
	}
	if c.Scheduler.Sigma < 0 {
		return fmt.Errorf("config: scheduler.sigma must not be negative")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Save writes cfg back out as YAML via viper.
func (c *Config) Save(filename string) error {
	v := viper.New()
	v.Set("scheduler", c.Scheduler)
	v.Set("logging", c.Logging)
	v.Set("io", c.IO)
	return v.WriteConfigAs(filename)
}
