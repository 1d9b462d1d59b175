// Package livepage runs the annotator against a page open in Chrome. The
// page DOM is mirrored into a dom.Document through an injected bridge
// script talking to Go over a CDP runtime binding; the engine's own writes
// on the mirror are replayed into the page.
package livepage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Mode selects how Chrome runs.
type Mode int

const (
	Headless Mode = iota // rod headless + stealth
	Headful              // visible window, on Xvfb when DISPLAY is unset
)

// ParseMode maps "headless" and "headful" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "headless":
		return Headless, nil
	case "headful":
		return Headful, nil
	}
	return Headless, fmt.Errorf("livepage: unknown browser mode %q", s)
}

// Config selects where Chrome comes from and how its pages load.
type Config struct {
	// RemoteURL is the DevTools WebSocket of an already running Chrome.
	// When empty a local Chrome is launched.
	RemoteURL string

	Mode Mode

	// ResourceBlocking names request types failed before they load:
	// images, fonts, media, stylesheets or any CDP resource type.
	ResourceBlocking []string

	// XvfbDisplay is the display started for headful mode. Empty uses the
	// current DISPLAY and starts nothing.
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process or remote connection.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	display *display
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome, or attaches to Config.RemoteURL, and connects rod
// to it. Calling Start again returns the connected browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return nil, fmt.Errorf("livepage: manager is closed")
	case m.browser != nil:
		return m.browser, nil
	}

	controlURL := m.cfg.RemoteURL
	if controlURL == "" {
		u, err := m.launch(ctx)
		if err != nil {
			return nil, err
		}
		controlURL = u
	} else {
		m.cfg.Logger.Info("livepage: attaching to remote chrome", "url", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return nil, fmt.Errorf("livepage: connect %s: %w", controlURL, err)
	}
	m.browser = b
	return b, nil
}

// launch starts a local Chrome and returns its DevTools URL. Headful mode
// with XvfbDisplay set renders into a virtual display started first.
func (m *Manager) launch(ctx context.Context) (string, error) {
	headful := m.cfg.Mode == Headful
	l := launcher.New().Context(ctx).
		Headless(!headful).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080")

	if headful && m.cfg.XvfbDisplay != "" {
		d, err := startDisplay(ctx, m.cfg.XvfbDisplay, m.cfg.Logger)
		if err != nil {
			return "", err
		}
		m.display = d
		l = l.Env(append(os.Environ(), d.env())...)
	}

	u, err := l.Launch()
	if err != nil {
		m.display.stop()
		m.display = nil
		return "", fmt.Errorf("livepage: launch chrome: %w", err)
	}
	m.lnch = l
	m.cfg.Logger.Info("livepage: chrome launched", "url", u, "headful", headful)
	return u, nil
}

// Browser returns the connected browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close shuts Chrome down along with any display it started. A closed
// Manager cannot be restarted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.display.stop()
	m.display = nil
	return err
}
