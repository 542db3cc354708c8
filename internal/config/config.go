package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/rebeccahihi/pseudo/internal/entity"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/pseudo/")
	viper.AddConfigPath("$HOME/.pseudo/")

	// Environment variable overrides
	viper.SetEnvPrefix("PSEUDO")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.NER.Backend != "http" && config.NER.Backend != "onnx" && config.NER.Backend != "none" {
		return fmt.Errorf("invalid NER backend: %s (must be http, onnx, or none)", config.NER.Backend)
	}

	if config.NER.Backend == "http" && config.NER.Endpoint == "" {
		return fmt.Errorf("ner.endpoint is required when ner.backend is http")
	}

	if config.Pseudonym.RoleWindow <= 0 {
		return fmt.Errorf("pseudonym.role_window must be positive, got %d", config.Pseudonym.RoleWindow)
	}

	if config.Pseudonym.DateShiftRangeDays <= 0 {
		return fmt.Errorf("pseudonym.date_shift_range_days must be positive, got %d", config.Pseudonym.DateShiftRangeDays)
	}

	// Pattern overrides are compiled here so a malformed expression fails at
	// configuration time, never per document.
	for name, expr := range config.Pseudonym.PatternOverrides {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("%w: override %q: %v", entity.ErrPatternCompilation, name, err)
		}
	}

	return nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})

	return nil
}
