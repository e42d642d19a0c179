package lib

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gookit/validate"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/viper"
)

// Config holds the settings shared by all commands.
type Config struct {
	GraphiteRoot        string        `mapstructure:"graphite-root"`
	WhisperDir          string        `mapstructure:"whisper-dir" validate:"required"`
	ListsDir            string        `mapstructure:"lists-dir"`
	Schemas             string        `mapstructure:"schemas" validate:"required"`
	Aggregation         string        `mapstructure:"aggregation"`
	ResizeCommand       string        `mapstructure:"resize-command" validate:"required"`
	ResizeTimeout       time.Duration `mapstructure:"resize-timeout"`
	Backup              bool          `mapstructure:"backup"`
	DryRun              bool          `mapstructure:"dry-run"`
	ListRefreshInterval time.Duration `mapstructure:"list-refresh-interval"`
	LogLevel            string        `mapstructure:"log-level" validate:"required|in:debug,info,warn,error"`
	LogFormat           string        `mapstructure:"log-format" validate:"required|in:console,json"`
	MetricsTextfile     string        `mapstructure:"metrics-textfile"`
}

// SetDefaults registers the defaults that do not depend on the graphite root.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("resize-timeout", 10*time.Minute)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
}

// LoadConfig decodes v into a Config. Paths that are not set explicitly are
// derived from graphite-root the way a Graphite install lays them out.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if root := conf.GraphiteRoot; root != "" {
		storage := filepath.Join(root, "storage")
		setIfEmpty(&conf.WhisperDir, filepath.Join(storage, "whisper"))
		setIfEmpty(&conf.ListsDir, filepath.Join(storage, "lists"))
		setIfEmpty(&conf.Schemas, filepath.Join(root, "conf", "storage-schemas.conf"))
		setIfEmpty(&conf.Aggregation, filepath.Join(root, "conf", "storage-aggregation.conf"))
		// resize-command is shell quoted, the derived path must stay one word
		setIfEmpty(&conf.ResizeCommand, shellquote.Join(filepath.Join(root, "bin", "whisper-resize.py")))
	}
	setIfEmpty(&conf.ResizeCommand, "whisper-resize.py")

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %w", v.Errors)
	}
	if c.ResizeTimeout < 0 {
		return fmt.Errorf("invalid configuration: resize-timeout must not be negative")
	}
	if c.ListRefreshInterval < 0 {
		return fmt.Errorf("invalid configuration: list-refresh-interval must not be negative")
	}
	return nil
}

func setIfEmpty(s *string, v string) {
	if *s == "" {
		*s = v
	}
}
