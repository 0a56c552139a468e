// Package config loads taskmesh settings from YAML. A project-local
// .taskmesh/config.yaml takes precedence over ~/.taskmesh/config.yaml;
// when neither exists the defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rlanders/taskmesh/internal/cpm"
)

const (
	dirName  = ".taskmesh"
	fileName = "config.yaml"
)

// Config is the full settings tree. Zero values are filled in by
// Default before any file is read, so a partial file only overrides
// the keys it names.
type Config struct {
	Database Database         `yaml:"database"`
	Scoring  cpm.ScoreWeights `yaml:"scoring"`
	Features Features         `yaml:"features"`
	Claude   Claude           `yaml:"claude"`
	LogLevel string           `yaml:"log_level"`
}

type Database struct {
	Path string `yaml:"path"`
}

// Features toggles optional behavior. All default to on.
type Features struct {
	Notifications bool `yaml:"notifications"`
	Inference     bool `yaml:"inference"`
	TimeTracking  bool `yaml:"time_tracking"`
}

type Claude struct {
	Model string `yaml:"model"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Database: Database{Path: filepath.Join(dirName, "tasks.db")},
		Scoring:  cpm.DefaultScoreWeights(),
		Features: Features{
			Notifications: true,
			Inference:     true,
			TimeTracking:  true,
		},
		Claude:   Claude{Model: "claude-sonnet-4-20250514"},
		LogLevel: "info",
	}
}

// Load reads the first config file found, searching the working
// directory then the home directory. A missing file is not an error;
// a malformed one is.
func Load() (Config, error) {
	for _, path := range searchPaths() {
		cfg, err := LoadFile(path)
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	return Default(), nil
}

// LoadFile reads one specific config file, merging it over defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{filepath.Join(dirName, fileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, dirName, fileName))
	}
	return paths
}
