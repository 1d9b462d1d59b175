// Package reactor watches the page body and re-runs the annotation pipeline
// when the DOM grows, when the annotated element is removed, when inline
// styles change around a deferred element, and after viewport resizes.
package reactor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator/internal/indicator"
	"github.com/hazyhaar/whichsocial/dom"
)

// Pipeline is what the reactor drives.
type Pipeline interface {
	// Grow scans root for new candidates, registers them and retries the
	// indicator.
	Grow(ctx context.Context, root *html.Node)
	// Retry retries the indicator over the known candidates.
	Retry(ctx context.Context)
	Hide()
	ObservingWithin(root *html.Node) bool
	Annotated() *html.Node
}

// Options configures a Reactor.
type Options struct {
	// SettleDelay is the wait between a resize and the retry.
	SettleDelay time.Duration
	// AfterFunc schedules f after d. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
	// Post runs a task on the page's event loop. Required for Resize.
	Post func(task func(ctx context.Context))
	Logger *slog.Logger
}

// Reactor owns the two body observers of a page.
type Reactor struct {
	doc  *dom.Document
	p    Pipeline
	opts Options

	growth *dom.Observer
	styles *dom.Observer
}

// New returns a detached Reactor.
func New(doc *dom.Document, p Pipeline, opts Options) *Reactor {
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reactor{doc: doc, p: p, opts: opts}
}

// Attach starts observing the body. ctx is handed to the pipeline from the
// observer callbacks.
func (r *Reactor) Attach(ctx context.Context) {
	body := r.doc.Body()
	if body == nil || r.growth != nil {
		return
	}
	r.growth = r.doc.Observe(body, dom.ObserveOptions{ChildList: true, Subtree: true}, func(recs []dom.Record) {
		r.onChildList(ctx, recs)
	})
	r.styles = r.doc.Observe(body, dom.ObserveOptions{Attributes: true, Subtree: true, AttributeFilter: []string{"style"}}, func(recs []dom.Record) {
		r.onStyle(ctx, recs)
	})
}

// Detach stops both observers.
func (r *Reactor) Detach() {
	if r.growth != nil {
		r.growth.Disconnect()
		r.styles.Disconnect()
		r.growth, r.styles = nil, nil
	}
}

func (r *Reactor) onChildList(ctx context.Context, recs []dom.Record) {
	var grown []*html.Node
	for _, rec := range recs {
		if len(rec.Added) > 0 && !anyCaption(rec.Added) {
			if covered(grown, rec.Target) {
				continue
			}
			grown = append(grown, rec.Target)
			r.p.Grow(ctx, rec.Target)
			continue
		}
		if len(rec.Removed) > 0 && anyIndicator(rec.Removed) {
			r.opts.Logger.Debug("reactor: annotated element removed")
			r.p.Hide()
		}
	}
}

func (r *Reactor) onStyle(ctx context.Context, recs []dom.Record) {
	for _, rec := range recs {
		t := rec.Target
		if t == nil || t.Type != html.ElementNode {
			continue
		}
		if r.p.ObservingWithin(t) || dom.Contains(t, r.p.Annotated()) {
			r.p.Retry(ctx)
			return
		}
	}
}

// Resize removes the indicator at once and retries once the layout
// settled. Every call schedules its own retry.
func (r *Reactor) Resize() {
	r.p.Hide()
	post := r.opts.Post
	if post == nil {
		return
	}
	p := r.p
	r.opts.AfterFunc(r.opts.SettleDelay, func() {
		post(func(ctx context.Context) { p.Retry(ctx) })
	})
}

func anyCaption(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.ElementNode && dom.HasClass(n, indicator.CaptionClass) {
			return true
		}
	}
	return false
}

func anyIndicator(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.ElementNode && dom.AnyByClass(n, indicator.ProviderClass) {
			return true
		}
	}
	return false
}

func covered(roots []*html.Node, n *html.Node) bool {
	for _, r := range roots {
		if dom.Contains(r, n) {
			return true
		}
	}
	return false
}
