// Package registry instruments candidate elements with a click listener
// that records the visitor's provider choice, once per element.
package registry

import (
	"context"
	"log/slog"
	"weak"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator/internal/scan"
	"github.com/hazyhaar/whichsocial/dom"
)

// SelectFunc records provider as the site selection.
type SelectFunc func(ctx context.Context, provider string) error

// Registry remembers every element given a click listener. The set only
// grows for the lifetime of the page.
type Registry struct {
	doc      *dom.Document
	onSelect SelectFunc
	logger   *slog.Logger
	seen     map[weak.Pointer[html.Node]]struct{}
}

// New returns an empty Registry for doc.
func New(doc *dom.Document, onSelect SelectFunc, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		doc:      doc,
		onSelect: onSelect,
		logger:   logger,
		seen:     make(map[weak.Pointer[html.Node]]struct{}),
	}
}

// Register attaches a click listener to each candidate whose element is not
// yet registered and returns those candidates. When a batch names the same
// element twice, the first provider wins. ctx is used by the listeners.
func (r *Registry) Register(ctx context.Context, cands []scan.Candidate) []scan.Candidate {
	var added []scan.Candidate
	for _, c := range cands {
		el := c.Element()
		if el == nil {
			continue
		}
		if _, ok := r.seen[c.Ref()]; ok {
			continue
		}
		r.seen[c.Ref()] = struct{}{}
		provider := c.Provider
		r.doc.AddEventListener(el, "click", func(dom.Event) {
			if err := r.onSelect(ctx, provider); err != nil {
				r.logger.Warn("registry: save selection", "provider", provider, "error", err)
				return
			}
			r.logger.Debug("registry: selection recorded", "provider", provider, "host", r.doc.Hostname())
		})
		added = append(added, c)
	}
	return added
}

// Registered reports whether n already has a listener.
func (r *Registry) Registered(n *html.Node) bool {
	_, ok := r.seen[weak.Make(n)]
	return ok
}

// Len returns the number of registered elements.
func (r *Registry) Len() int { return len(r.seen) }
