// Package config loads the Parlo service configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	AI struct {
		BaseURL         string `mapstructure:"base_url"`
		APIKey          string `mapstructure:"api_key"`
		Model           string `mapstructure:"model"`
		ExtractionModel string `mapstructure:"extraction_model"`
	} `mapstructure:"ai"`
	Scheduler struct {
		Enabled     bool          `mapstructure:"enabled"`
		CronSpec    string        `mapstructure:"cron_spec"`
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"scheduler"`
	MCP struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"mcp"`
}

// Load reads configuration from config.yaml (working dir or ./config)
// and the environment. Env vars use the PARLO prefix with underscores,
// e.g. PARLO_AI_API_KEY overrides ai.api_key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("PARLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "file:parlo.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.extraction_model", "gpt-4o-mini")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron_spec", "*/10 * * * *")
	v.SetDefault("scheduler.idle_timeout", 72*time.Hour)
	v.SetDefault("mcp.enabled", false)
}
