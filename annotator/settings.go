package annotator

import (
	"context"
	"slices"

	"github.com/hazyhaar/whichsocial/annotator/internal/settings"
	"github.com/hazyhaar/whichsocial/store"
)

// DefaultProviders returns the first-run vocabulary.
func DefaultProviders() []string { return slices.Clone(settings.DefaultProviders) }

// InstallDefaults writes the first-run vocabulary and color into st unless
// they are already set.
func InstallDefaults(ctx context.Context, st store.Store) error {
	return settings.Install(ctx, st)
}

// SetProviders replaces the vocabulary stored in st.
func SetProviders(ctx context.Context, st store.Store, names []string) error {
	return settings.SetProviders(ctx, st, names)
}

// Selection returns the provider last used on host.
func Selection(ctx context.Context, st store.Store, host string) (string, bool, error) {
	return settings.ForHost(st, host).Selection(ctx)
}

// ClearSelection forgets the provider last used on host.
func ClearSelection(ctx context.Context, st store.Store, host string) error {
	return settings.ForHost(st, host).ClearSelection(ctx)
}

// SaveSelection records provider as the one last used on host.
func SaveSelection(ctx context.Context, st store.Store, host, provider string) error {
	return settings.ForHost(st, host).SaveSelection(ctx, provider)
}
