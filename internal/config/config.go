// Package config handles process-level configuration for cmd/aipgw: the
// settings the enforcement core itself doesn't own (spec.md §6's "No
// CLI, network port, or persisted state is owned by the core").
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds settings read from viper's built-in defaults, a config
// file, and environment variables, in that ascending precedence order.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Policy PolicyConfig `mapstructure:"policy"`
}

// LogConfig controls the process-wide zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// AuditConfig selects where audit events are written.
type AuditConfig struct {
	Destination string `mapstructure:"destination"` // "stdout" or a file path
}

// PolicyConfig names the default policy document the CLI loads when one
// isn't given on the command line.
type PolicyConfig struct {
	DefaultPath string `mapstructure:"default_path"`
}

// Load reads configuration from path if non-empty, otherwise from an
// optional aipgw.yaml in the standard locations. Environment variables
// (prefix AIPGW_) override file values, and defaults fill the rest.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	} else {
		v.SetConfigName("aipgw")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/aipgw")
		v.AddConfigPath("$HOME/.aipgw")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	v.SetEnvPrefix("AIPGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("audit.destination", "stdout")
	v.SetDefault("policy.default_path", "policy.yaml")
}
