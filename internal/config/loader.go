package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".lossim"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "LOSSIM"
)

// Load reads the configuration from path, or from ~/.lossim/config.yaml
// when path is empty. A missing default file yields the defaults.
// LOSSIM_* environment variables override file values
// (LOSSIM_SIMULATION_TABLE overrides simulation.table).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		dir, err := DirPath()
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		v.SetConfigName(configFile)
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Defaults mirror the original hardcoded run: ten sampled keys, backups
// next to the source table.
func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.table", "")
	v.SetDefault("simulation.key_field", "id")
	v.SetDefault("simulation.backup_table", "")
	v.SetDefault("simulation.sample_size", 10)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.batch_size", 500)
	v.SetDefault("simulation.verify", false)
	v.SetDefault("simulation.timeout", "0s")
	v.SetDefault("preferences.default_connection", "")
	v.SetDefault("preferences.log_format", "text")
	v.SetDefault("preferences.log_level", "info")
	v.SetDefault("preferences.tui", false)
}

// SaveConnection adds conn to cfg and to the profiles stored at path, or in
// ~/.lossim/config.yaml. Only the connections list of the file is rewritten:
// its other keys are kept as read, so the flags and environment overrides
// applied to cfg are never persisted. Profiles marked keyring have their
// password moved to the OS keyring first.
func SaveConnection(cfg *Config, conn Connection, path string) error {
	if conn.Keyring && conn.Password != "" {
		if err := StorePassword(&conn); err != nil {
			return err
		}
	}
	cfg.AddConnection(conn)

	if path == "" {
		dir, err := DirPath()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	var stored Config
	if err := v.Unmarshal(&stored); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	stored.AddConnection(conn)
	v.Set("connections", stored.Connections)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		if c := cfg.FindConnection(cfg.Preferences.DefaultConnection); c != nil {
			return c
		}
	}

	return &cfg.Connections[0]
}

// DirPath returns the directory holding the config file and logs.
func DirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
