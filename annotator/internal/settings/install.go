package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/whichsocial/store"
)

// Install writes the first-run vocabulary and color. Keys that already hold
// a value are left alone.
func Install(ctx context.Context, st store.Store) error {
	if _, ok, err := st.Get(ctx, ProvidersKey); err != nil {
		return fmt.Errorf("settings: get %s: %w", ProvidersKey, err)
	} else if !ok {
		if err := SetProviders(ctx, st, DefaultProviders); err != nil {
			return err
		}
	}
	if _, ok, err := st.Get(ctx, ColorKey); err != nil {
		return fmt.Errorf("settings: get %s: %w", ColorKey, err)
	} else if !ok {
		b, _ := json.Marshal(DefaultColor)
		if err := st.Set(ctx, ColorKey, string(b)); err != nil {
			return fmt.Errorf("settings: set %s: %w", ColorKey, err)
		}
	}
	return nil
}

// SetProviders replaces the vocabulary. Blank names are dropped, as are
// case-insensitive repeats of an earlier name.
func SetProviders(ctx context.Context, st store.Store, names []string) error {
	seen := make(map[string]bool, len(names))
	list := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		list = append(list, n)
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("settings: encode %s: %w", ProvidersKey, err)
	}
	if err := st.Set(ctx, ProvidersKey, string(b)); err != nil {
		return fmt.Errorf("settings: set %s: %w", ProvidersKey, err)
	}
	return nil
}

// ClearSelection forgets the site selection. A null value is written, the
// way the settings collaborator clears it.
func (s *Site) ClearSelection(ctx context.Context) error {
	key := SelectionKey(s.host)
	if err := s.st.Set(ctx, key, "null"); err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}
