package livepage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is a rod page prepared for mirroring: stealth applied, optional
// resource blocking, navigated and loaded.
type Tab struct {
	Page    *rod.Page
	PageURL string
	router  *rod.HijackRouter
}

// OpenTab creates a tab on the manager's browser and loads pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("livepage: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Mode == Headless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("livepage: create tab: %w", err)
	}

	t := &Tab{Page: page, PageURL: pageURL, router: blockResources(page, mgr.cfg.ResourceBlocking)}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("livepage: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("livepage: wait load timeout", "url", pageURL, "error", err)
	}
	return t, nil
}

// Close stops request interception and closes the page.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// Reload reloads the page. A session attached through Watch re-attaches once
// the new document has loaded.
func (t *Tab) Reload(ctx context.Context) error {
	if err := t.Page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("livepage: reload %s: %w", t.PageURL, err)
	}
	return nil
}
