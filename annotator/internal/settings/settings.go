// Package settings reads the per-page configuration and reads and writes
// the site selection through a store.Store. Keys and value shapes are shared
// with the settings collaborator.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/whichsocial/store"
)

const (
	ProvidersKey  = "social-providers"
	DisableAllKey = "disable-which-social"
	ColorKey      = "saved-social-color"
)

// DefaultColor is the indicator background installed by the settings
// collaborator on first run.
const DefaultColor = "#008000"

// DefaultProviders is the vocabulary installed on first run.
var DefaultProviders = []string{
	"Google", "Facebook", "Microsoft", "GitHub", "Instagram", "Snapchat",
	"Discord", "Apple", "Amazon", "Solana", "LinkedIn", "Twitter",
}

// SiteDisableKey is the toggle disabling the engine on host.
func SiteDisableKey(host string) string { return "disable-this-site-" + host }

// SelectionKey is the key holding the site selection of host.
func SelectionKey(host string) string { return host + "_social" }

// Site reads and writes the settings of one hostname.
type Site struct {
	st   store.Store
	host string
}

// ForHost returns the settings of host.
func ForHost(st store.Store, host string) *Site {
	return &Site{st: st, host: host}
}

// Host returns the hostname.
func (s *Site) Host() string { return s.host }

func (s *Site) raw(ctx context.Context, key string) (any, bool, error) {
	v, ok, err := s.st.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("settings: get %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var out any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, false, fmt.Errorf("settings: decode %s: %w", key, err)
	}
	return out, out != nil, nil
}

// Disabled reports whether either the global or the site toggle is set.
// Toggles are truthy JSON values.
func (s *Site) Disabled(ctx context.Context) (bool, error) {
	for _, key := range []string{SiteDisableKey(s.host), DisableAllKey} {
		v, ok, err := s.raw(ctx, key)
		if err != nil {
			return false, err
		}
		if ok && truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case nil:
		return false
	}
	return true
}

// Providers returns the vocabulary. An absent key yields nil.
func (s *Site) Providers(ctx context.Context) ([]string, error) {
	v, ok, err := s.st.Get(ctx, ProvidersKey)
	if err != nil {
		return nil, fmt.Errorf("settings: get %s: %w", ProvidersKey, err)
	}
	if !ok {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		return nil, fmt.Errorf("settings: decode %s: %w", ProvidersKey, err)
	}
	return names, nil
}

// Color returns the indicator background color, DefaultColor when unset.
func (s *Site) Color(ctx context.Context) (string, error) {
	v, ok, err := s.raw(ctx, ColorKey)
	if err != nil {
		return DefaultColor, err
	}
	c, isString := v.(string)
	if !ok || !isString || strings.TrimSpace(c) == "" {
		return DefaultColor, nil
	}
	return strings.TrimSpace(c), nil
}

type selection struct {
	Provider string `json:"provider"`
}

// Selection returns the provider last used on the site. A missing key, a
// null value or an empty provider mean no selection.
func (s *Site) Selection(ctx context.Context) (string, bool, error) {
	key := SelectionKey(s.host)
	v, ok, err := s.st.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	var sel *selection
	if err := json.Unmarshal([]byte(v), &sel); err != nil {
		return "", false, fmt.Errorf("settings: decode %s: %w", key, err)
	}
	if sel == nil || sel.Provider == "" {
		return "", false, nil
	}
	return sel.Provider, true, nil
}

// SaveSelection records provider as the site selection, replacing any
// previous one.
func (s *Site) SaveSelection(ctx context.Context, provider string) error {
	key := SelectionKey(s.host)
	b, err := json.Marshal(selection{Provider: provider})
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", key, err)
	}
	if err := s.st.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}
