package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/s0up4200/glpictl/glpi"
)

// EnvPrefix prefixes the environment variables overriding config keys,
// GLPICTL_GLPI_USER_TOKEN for glpi.user_token.
const EnvPrefix = "GLPICTL"

// Load loads the configuration from file and environment. Without an
// explicit path a missing config file is not an error, so a setup can rely
// on environment variables alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".glpictl"))
		}
		v.AddConfigPath("/etc/glpictl/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.File != "" {
		searches, err := loadSearches(cfg.File)
		if err != nil {
			return nil, err
		}
		if searches != nil {
			cfg.Searches = searches
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadSearches decodes the searches of a YAML or JSON config file again
// with a case preserving decoder. Viper lowercases map keys, which would
// rename saved searches and GLPI parameters such as giveItems. Other
// formats keep what viper decoded.
func loadSearches(path string) (map[string]SearchConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var file struct {
		Searches map[string]SearchConfig `yaml:"searches"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error unmarshaling searches: %w", err)
	}
	return file.Searches, nil
}

// setDefaults sets default configuration values. Every key gets one so
// that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("glpi.url", "")
	v.SetDefault("glpi.app_token", "")
	v.SetDefault("glpi.user_token", "")
	v.SetDefault("glpi.username", "")
	v.SetDefault("glpi.password", "")
	v.SetDefault("glpi.timeout", "30s")
	v.SetDefault("glpi.insecure_skip_verify", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	v.SetDefault("output.format", "table")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.GLPI.URL == "" {
		return fmt.Errorf("glpi.url is required")
	}

	hasToken := cfg.GLPI.UserToken != ""
	hasLogin := cfg.GLPI.Username != ""
	switch {
	case hasToken && hasLogin:
		return fmt.Errorf("glpi.user_token and glpi.username are mutually exclusive")
	case !hasToken && !hasLogin:
		return fmt.Errorf("glpi.user_token or glpi.username/glpi.password must be set")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.Output.Format != "table" && cfg.Output.Format != "json" {
		return fmt.Errorf("invalid output format: %s (must be 'table' or 'json')", cfg.Output.Format)
	}

	for name, search := range cfg.Searches {
		if search.ItemType == "" {
			return fmt.Errorf("searches.%s.itemtype is required", name)
		}
		if _, err := search.Query(); err != nil {
			return fmt.Errorf("searches.%s: %w", name, err)
		}
	}

	return nil
}

// Credentials returns the authentication configured for initSession
func (c GLPIConfig) Credentials() glpi.Credentials {
	if c.UserToken != "" {
		return glpi.UserToken(c.UserToken)
	}
	return glpi.BasicAuth(c.Username, c.Password)
}

// Options returns the client options derived from the connection settings
func (c GLPIConfig) Options() []glpi.Option {
	var opts []glpi.Option
	if c.InsecureSkipVerify {
		opts = append(opts, glpi.WithInsecureSkipVerify())
	}
	if c.Timeout > 0 {
		opts = append(opts, glpi.WithTimeout(c.Timeout))
	}
	return opts
}

// Query converts the saved search into a search query
func (s SearchConfig) Query() (glpi.SearchQuery, error) {
	criteria, err := glpi.ParseCriteria(s.Criteria)
	if err != nil {
		return glpi.SearchQuery{}, err
	}

	meta, err := glpi.ParseCriteria(s.MetaCriteria)
	if err != nil {
		return glpi.SearchQuery{}, err
	}

	display, err := glpi.ParseFieldList(s.ForceDisplay)
	if err != nil {
		return glpi.SearchQuery{}, err
	}

	return glpi.SearchQuery{
		Criteria:     criteria,
		MetaCriteria: meta,
		ForceDisplay: display,
		Params:       s.Params,
	}, nil
}
