// Package cli holds the configuration and exit handling of the relkit command.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/syssam/relkit/dialect"
)

const maxWalkDepth = 25

// Config is the relkit command configuration, read from relkit.yaml and
// RELKIT_* environment variables.
type Config struct {
	// Spec is the subset specification file.
	Spec string `mapstructure:"spec"`

	Database DatabaseConfig `mapstructure:"database"`

	Resolve ResolveConfig `mapstructure:"resolve"`
}

// DatabaseConfig holds the connection settings.
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
	// Debug logs every statement.
	Debug bool `mapstructure:"debug"`
	// SlowThreshold logs statements slower than the threshold.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// ResolveConfig holds resolver settings.
type ResolveConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// LoadConfig loads the configuration with the precedence env > config file >
// defaults. Flags are applied by the commands on top of it. It returns the
// path of the config file, which is empty when none was found.
func LoadConfig(explicitPath string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RELKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spec", "subsets.yaml")

	v.SetDefault("database.dialect", dialect.Postgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("resolve.concurrency", 1)
}

func (c *Config) validate() error {
	switch c.Database.Dialect {
	case dialect.Postgres, dialect.MySQL, dialect.SQLite:
	default:
		return fmt.Errorf("unsupported dialect %q", c.Database.Dialect)
	}
	if c.Resolve.Concurrency < 1 {
		return fmt.Errorf("resolve.concurrency must be positive, got %d", c.Resolve.Concurrency)
	}
	return nil
}

// findConfigFile returns explicitPath if it exists. Otherwise it walks up
// from the working directory looking for relkit.yaml or relkit.yml, and stops
// at a .git entry or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	for range maxWalkDepth {
		for _, name := range []string{"relkit.yaml", "relkit.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
