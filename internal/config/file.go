// Package config handles whichsocial configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/whichsocial/annotator"
	"github.com/hazyhaar/whichsocial/guard"
	"github.com/hazyhaar/whichsocial/livepage"
)

// Config is the top-level whichsocial configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store"`
	Browser   BrowserConfig    `yaml:"browser"`
	Annotator annotator.Config `yaml:"annotator"`
	Server    ServerConfig     `yaml:"server"`
}

// StoreConfig selects where settings live.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// Remote is the base URL of a whichsocial -serve instance. It takes
	// precedence over Path.
	Remote string `yaml:"remote"`
	// WatchInterval is how often a live session polls Path for changes.
	// Negative disables polling.
	WatchInterval time.Duration `yaml:"watch_interval"`
	// TraceSQL logs every statement through the sqlite-trace driver.
	TraceSQL bool `yaml:"trace_sql"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	ResourceBlocking []string `yaml:"resource_blocking"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
}

// ServerConfig controls the settings HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if _, err := livepage.ParseMode(cfg.Browser.Stealth); err != nil {
		return nil, fmt.Errorf("config: browser.stealth: %w", err)
	}
	if cfg.Store.Remote != "" {
		if _, err := guard.ValidatePageURL(cfg.Store.Remote); err != nil {
			return nil, fmt.Errorf("config: store.remote: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "whichsocial.db"
	}
	c.Store.Remote = strings.TrimRight(c.Store.Remote, "/")
	if c.Store.WatchInterval == 0 {
		c.Store.WatchInterval = time.Second
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"fonts", "media"}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8089"
	}
}

// LivePage returns the browser manager configuration. XvfbDisplay is only
// used in headful mode.
func (b BrowserConfig) LivePage() livepage.Config {
	mode, _ := livepage.ParseMode(b.Stealth)
	return livepage.Config{
		RemoteURL:        b.Remote,
		Mode:             mode,
		ResourceBlocking: b.ResourceBlocking,
		XvfbDisplay:      b.XvfbDisplay,
	}
}
