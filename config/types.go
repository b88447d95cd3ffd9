package config

import (
	"time"
)

// Config represents the complete configuration structure
type Config struct {
	GLPI     GLPIConfig              `mapstructure:"glpi"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Output   OutputConfig            `mapstructure:"output"`
	Searches map[string]SearchConfig `mapstructure:"searches"`

	// File is the config file that was read, empty when configured from the
	// environment only.
	File string `mapstructure:"-"`
}

// GLPIConfig holds GLPI API connection details
type GLPIConfig struct {
	URL                string        `mapstructure:"url"`
	AppToken           string        `mapstructure:"app_token"`
	UserToken          string        `mapstructure:"user_token"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// OutputConfig controls how command results are printed
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// SearchConfig is a saved search. Criteria use the same mapping layout as
// the --criteria flag; Where is an optional filter expression applied to
// the returned rows.
type SearchConfig struct {
	ItemType     string           `mapstructure:"itemtype" yaml:"itemtype"`
	Criteria     []map[string]any `mapstructure:"criteria" yaml:"criteria"`
	MetaCriteria []map[string]any `mapstructure:"metacriteria" yaml:"metacriteria"`
	ForceDisplay []any            `mapstructure:"forcedisplay" yaml:"forcedisplay"`
	Params       map[string]any   `mapstructure:"params" yaml:"params"`
	Where        string           `mapstructure:"where" yaml:"where"`
}
