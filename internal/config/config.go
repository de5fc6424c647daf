package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	TranscriptRoot string `toml:"transcript_root"`
	CatalogPath    string `toml:"catalog_path"`
	DefaultLimit   int    `toml:"default_limit"`
	DefaultContext int    `toml:"default_context"`
	Workers        int    `toml:"workers"`
	LogLevel       string `toml:"log_level"`
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TranscriptRoot: filepath.Join(home, ".claude", "projects"),
		CatalogPath:    filepath.Join(home, ".config", "recall", "catalog.db"),
		DefaultLimit:   20,
		DefaultContext: 2,
		Workers:        0, // 0 = available parallelism
		LogLevel:       "warn",
	}

	cfgPath := filepath.Join(home, ".config", "recall", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// expand ~ in paths
	cfg.TranscriptRoot = expandHome(cfg.TranscriptRoot, home)
	cfg.CatalogPath = expandHome(cfg.CatalogPath, home)

	return cfg, nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
