package playground

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/playground-harness/pkg/bundler"
)

// Config is the optional playground.config.yaml in a project's root dir.
//
//	base: /app/
//	build:
//	  outDir: dist
//	  watch: true
//	server:
//	  port: 9600
type Config struct {
	Base  string      `yaml:"base"`
	Build BuildConfig `yaml:"build"`
	// Server settings apply to the dev server only.
	Server ServerConfig `yaml:"server"`
}

// BuildConfig holds build settings.
type BuildConfig struct {
	OutDir string `yaml:"outDir"`
	Watch  bool   `yaml:"watch"`
}

// ServerConfig holds dev server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Base:  bundler.DefaultBase,
		Build: BuildConfig{OutDir: bundler.DefaultOutDir},
	}
}

// LoadConfig reads path, falling back to defaults when it does not exist.
// Fields absent from the file keep their defaults.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if ok, _ := afero.Exists(fs, path); !ok {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Base == "" {
		cfg.Base = bundler.DefaultBase
	}
	if cfg.Build.OutDir == "" {
		cfg.Build.OutDir = bundler.DefaultOutDir
	}
	return cfg, nil
}
