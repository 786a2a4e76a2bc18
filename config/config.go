// Package config loads runtime configuration from an optional
// opscrew-config JSON file and OPSCREW_* environment overrides, with sane
// defaults for everything.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	// Provider selects the model backend: openai, anthropic or mock.
	Provider string `mapstructure:"provider"`

	Model         string  `mapstructure:"model"`
	PlanningModel string  `mapstructure:"planning_model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`

	EscalationThreshold float64 `mapstructure:"escalation_threshold"`

	LearningDir string `mapstructure:"learning_dir"`
	DataDir     string `mapstructure:"data_dir"`

	MaxDecisions       int `mapstructure:"max_decisions"`
	MaxOverrides       int `mapstructure:"max_overrides"`
	EventLogCap        int `mapstructure:"event_log_cap"`
	CompletedWorkflows int `mapstructure:"completed_workflows"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "mock")
	v.SetDefault("model", "")
	v.SetDefault("planning_model", "")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("escalation_threshold", 0.6)
	v.SetDefault("learning_dir", "data/learning")
	v.SetDefault("data_dir", "data")
	v.SetDefault("max_decisions", 500)
	v.SetDefault("max_overrides", 100)
	v.SetDefault("event_log_cap", 200)
	v.SetDefault("completed_workflows", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration. cfgFile names an explicit file; when empty, an
// opscrew-config.json is searched in the working directory and $HOME, and a
// missing file just means defaults. Environment variables prefixed OPSCREW_
// override either source.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("OPSCREW")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("opscrew-config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown provider %q (want openai, anthropic or mock)", c.Provider)
	}
	if c.EscalationThreshold < 0 || c.EscalationThreshold > 1 {
		return fmt.Errorf("escalation_threshold %v out of range [0, 1]", c.EscalationThreshold)
	}
	return nil
}
