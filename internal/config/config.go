// Package config holds the server configuration file and the per-task
// runtime settings overlay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 8090
	DefaultMaxConcurrent = 3
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Downloads DownloadsConfig `yaml:"downloads"`
	YTDLP     YTDLPConfig     `yaml:"ytdlp"`
	Defaults  Settings        `yaml:"defaults"`
	StateDir  string          `yaml:"state_dir"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DownloadsConfig struct {
	Dir           string `yaml:"dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

type YTDLPConfig struct {
	BinaryPath string `yaml:"binary_path"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	JSRuntime  string `yaml:"js_runtime"`
}

// Load reads the YAML config at path. A missing file is not an error: the
// defaults apply, so a bare `vidbee-server serve` works out of the box.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultPort
	}
	if c.Downloads.MaxConcurrent <= 0 {
		c.Downloads.MaxConcurrent = DefaultMaxConcurrent
	}
	if strings.TrimSpace(c.Downloads.Dir) == "" {
		c.Downloads.Dir = filepath.Join(home, "Downloads")
	} else {
		c.Downloads.Dir = ResolvePath(c.Downloads.Dir, home)
	}
	if strings.TrimSpace(c.StateDir) == "" {
		c.StateDir = filepath.Join(home, ".vidbee")
	} else {
		c.StateDir = ResolvePath(c.StateDir, home)
	}
	c.Defaults.DownloadDir = ResolvePath(c.Defaults.DownloadDir, home)
	c.Defaults.CookiesFile = ResolvePath(c.Defaults.CookiesFile, home)
	c.Defaults.ConfigFile = ResolvePath(c.Defaults.ConfigFile, home)
}

// ResolvePath expands a leading ~ against the given home directory and makes
// the result absolute. It takes home explicitly so resolution never leans on
// ambient process state.
func ResolvePath(raw, home string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		p = filepath.Join(home, p[2:])
	}
	// Relative paths anchor to the home directory, not the process working
	// directory, so the same config file resolves identically wherever the
	// daemon is started from.
	if !filepath.IsAbs(p) {
		p = filepath.Join(home, p)
	}
	return filepath.Clean(p)
}
