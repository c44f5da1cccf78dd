package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig is the dinactl configuration file.
type FileConfig struct {
	General GeneralConfig `toml:"general"`
	Store   StoreConfig   `toml:"store"`
	Export  ExportConfig  `toml:"export"`
}

type GeneralConfig struct {
	UserID int64  `toml:"user_id"`
	Period string `toml:"period"`
}

type StoreConfig struct {
	Backend     string `toml:"backend"`
	SQLitePath  string `toml:"sqlite_path"`
	DatabaseURL string `toml:"database_url,omitempty"`
}

type ExportConfig struct {
	Bucket  string `toml:"bucket,omitempty"`
	Prefix  string `toml:"prefix"`
	Region  string `toml:"region"`
	Profile string `toml:"profile,omitempty"`
}

func DefaultFileConfig() FileConfig {
	return FileConfig{
		General: GeneralConfig{Period: "1y"},
		Store:   StoreConfig{Backend: "sqlite", SQLitePath: "./data/dinamifin.db"},
		Export:  ExportConfig{Prefix: "snapshots", Region: "eu-west-1"},
	}
}

// FileConfigDir returns the XDG config directory of dinactl.
func FileConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dinamifin")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dinamifin")
}

func FileConfigPath() string {
	return filepath.Join(FileConfigDir(), "config.toml")
}

// LoadFile reads path, returning defaults when it does not exist. An empty
// path means FileConfigPath.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		path = FileConfigPath()
	}
	cfg := DefaultFileConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveFile writes cfg to path, creating its directory.
func SaveFile(path string, cfg FileConfig) error {
	if path == "" {
		path = FileConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Apply overlays the file's store settings on an env-loaded Config so
// dinactl can reuse the server's backend wiring.
func (f FileConfig) Apply(c *Config) {
	if f.Store.Backend != "" {
		c.DataBackend = f.Store.Backend
	}
	if f.Store.SQLitePath != "" {
		c.SQLiteDBPath = f.Store.SQLitePath
	}
	if f.Store.DatabaseURL != "" {
		c.DatabaseURL = f.Store.DatabaseURL
	}
	if f.Export.Region != "" && c.AWSRegion == "" {
		c.AWSRegion = f.Export.Region
	}
}
