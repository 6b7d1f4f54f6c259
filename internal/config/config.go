package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all wslforge configuration.
type Config struct {
	// BaseName is the preferred instance name; the arbiter appends suffixes
	// on collision.
	BaseName string `mapstructure:"base_name"`

	// Username is the linux user inside the environment.
	Username string `mapstructure:"username"`

	// InstallMethod tags how this installation was produced.
	InstallMethod string `mapstructure:"install_method"`

	// NameAttempts bounds the arbiter's suffix probing. A safety bound
	// against a corrupted registry, not a semantic limit.
	NameAttempts int `mapstructure:"name_attempts"`

	// InstallRoot overrides install-root detection when set.
	InstallRoot string `mapstructure:"install_root"`

	// LogLevel is the zerolog level name (trace..error).
	LogLevel string `mapstructure:"log_level"`

	// CompressBackups gzips exported archives by default.
	CompressBackups bool `mapstructure:"compress_backups"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseName:        "wslforge",
		Username:        "dev",
		InstallMethod:   "package",
		NameAttempts:    100,
		LogLevel:        "info",
		CompressBackups: true,
	}
}

// Global holds the loaded configuration.
var Global *Config

// Load reads configuration from file, environment, and defaults. The config
// file is an optional config.yaml in the installation root.
func Load(installRoot string) error {
	defaults := DefaultConfig()
	viper.SetDefault("base_name", defaults.BaseName)
	viper.SetDefault("username", defaults.Username)
	viper.SetDefault("install_method", defaults.InstallMethod)
	viper.SetDefault("name_attempts", defaults.NameAttempts)
	viper.SetDefault("install_root", "")
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("compress_backups", defaults.CompressBackups)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(installRoot)

	// Environment variable support: WSLFORGE_BASE_NAME, WSLFORGE_LOG_LEVEL, etc.
	viper.SetEnvPrefix("WSLFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK - we use defaults
	}

	Global = &Config{}
	if err := viper.Unmarshal(Global); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if Global.NameAttempts < 1 {
		Global.NameAttempts = defaults.NameAttempts
	}
	return nil
}

// ConfigFileUsed returns the path of the config file being used, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
