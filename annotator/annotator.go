// Package annotator runs the sign-in indicator engine against one page.
//
// An Annotator owns every piece of per-page state: the registered and
// deferred element sets, the candidate list and the single logical thread
// all of it is touched from. Other goroutines hand work to that thread with
// Post. After each task the pending mutation records are delivered to the
// page observers until the document is quiet.
package annotator

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator/internal/contrast"
	"github.com/hazyhaar/whichsocial/annotator/internal/indicator"
	"github.com/hazyhaar/whichsocial/annotator/internal/reactor"
	"github.com/hazyhaar/whichsocial/annotator/internal/registry"
	"github.com/hazyhaar/whichsocial/annotator/internal/scan"
	"github.com/hazyhaar/whichsocial/annotator/internal/settings"
	"github.com/hazyhaar/whichsocial/dom"
	"github.com/hazyhaar/whichsocial/idgen"
	"github.com/hazyhaar/whichsocial/kit"
	"github.com/hazyhaar/whichsocial/store"
)

// CSS custom properties set on the document element.
const (
	ColorProperty     = "--which-social-color"
	TextColorProperty = "--which-social-text-color"
)

// Annotator is the engine of one page. Use New, then Setup and Run.
type Annotator struct {
	doc    *dom.Document
	site   *settings.Site
	cfg    Config
	logger *slog.Logger
	id     string

	tasks chan func(ctx context.Context)
	done  chan struct{}

	active   bool
	pattern  *scan.Pattern
	registry *registry.Registry
	ctrl     *indicator.Controller
	reactor  *reactor.Reactor
	cands    []scan.Candidate

	// The site selection is read once at Setup and then follows clicks;
	// writes go through saves, off the loop.
	selected    string
	hasSelected bool
	saves       *saver
}

// New returns an Annotator for doc reading its settings from st.
func New(doc *dom.Document, st store.Store, cfg Config, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	id := idgen.New()
	return &Annotator{
		doc:    doc,
		site:   settings.ForHost(st, doc.Hostname()),
		cfg:    cfg,
		logger: logger.With("session", id, "host", doc.Hostname()),
		id:     id,
		tasks:  make(chan func(ctx context.Context), cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// ID returns the page session ID.
func (a *Annotator) ID() string { return a.id }

// Document returns the page.
func (a *Annotator) Document() *dom.Document { return a.doc }

// Active reports whether Setup enabled the engine.
func (a *Annotator) Active() bool { return a.active }

// Setup reads the toggles, color and vocabulary, paints the color
// properties, scans the whole body and starts reacting to mutations. It
// reports whether the engine is active. Call it from the goroutine that
// owns the document, before Run or from a posted task.
func (a *Annotator) Setup(ctx context.Context) bool {
	if a.active {
		return true
	}
	disabled, err := a.site.Disabled(ctx)
	if err != nil {
		a.logger.Warn("annotator: read toggles", "error", err)
		return false
	}
	if disabled {
		a.logger.Info("annotator: disabled for this site")
		return false
	}

	color, err := a.site.Color(ctx)
	if err != nil {
		a.logger.Warn("annotator: read color", "error", err)
	}
	fg, err := contrast.PickForeground(color)
	if err != nil {
		a.logger.Warn("annotator: invalid color", "color", color, "error", err)
	}
	if de := a.doc.DocumentElement(); de != nil {
		a.doc.SetStyle(de, ColorProperty, color)
		a.doc.SetStyle(de, TextColorProperty, string(fg))
	}

	providers, err := a.site.Providers(ctx)
	if err != nil {
		a.logger.Warn("annotator: read providers", "error", err)
	}
	a.pattern = scan.NewPattern(providers)
	if len(a.pattern.Providers()) == 0 {
		a.logger.Info("annotator: empty vocabulary")
		return false
	}

	a.selected, a.hasSelected, err = a.site.Selection(ctx)
	if err != nil {
		a.logger.Warn("annotator: read selection", "error", err)
	}
	a.saves = &saver{save: a.site.SaveSelection, logger: a.logger}
	a.registry = registry.New(a.doc, a.choose, a.logger)
	a.ctrl = indicator.New(a.doc, a.selection, a.cfg.Caption, a.logger)
	a.reactor = reactor.New(a.doc, pipeline{a}, reactor.Options{
		SettleDelay: a.cfg.SettleDelay,
		AfterFunc:   a.cfg.AfterFunc,
		Post:        a.Post,
		Logger:      a.logger,
	})
	a.active = true

	// Observers attach after the color writes so those are not seen as
	// page churn.
	a.doc.Settle(a.cfg.MaxDeliveryRounds)
	a.reactor.Attach(ctx)
	if body := a.doc.Body(); body != nil {
		a.apply(ctx, body)
	}
	a.logger.Info("annotator: active", "providers", len(a.pattern.Providers()), "candidates", len(a.cands))
	return true
}

// choose records a click on a candidate of provider and queues the write.
func (a *Annotator) choose(ctx context.Context, provider string) error {
	a.selected, a.hasSelected = provider, true
	a.saves.enqueue(ctx, provider)
	return nil
}

func (a *Annotator) selection(context.Context) (string, bool, error) {
	return a.selected, a.hasSelected, nil
}

// apply scans root, registers what is new and retries the indicator.
func (a *Annotator) apply(ctx context.Context, root *html.Node) {
	added := a.registry.Register(ctx, scan.Extract(a.doc, root, a.pattern))
	a.cands = append(a.cands, added...)
	outcome := a.ctrl.TryAnnotate(ctx, a.cands)
	if len(added) > 0 {
		a.logger.Debug("annotator: candidates registered", "added", len(added), "total", len(a.cands), "outcome", outcome.String())
	}
}

// Post queues task for the event loop. It blocks while the queue is full
// and drops the task once Run has returned.
func (a *Annotator) Post(task func(ctx context.Context)) {
	select {
	case a.tasks <- task:
	case <-a.done:
	}
}

// Run executes posted tasks until ctx is done. Run must be the only
// goroutine touching the document while it runs.
func (a *Annotator) Run(ctx context.Context) error {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			if a.reactor != nil {
				a.reactor.Detach()
			}
			return ctx.Err()
		case task := <-a.tasks:
			a.run(ctx, task)
		}
	}
}

// Drain runs queued tasks on the calling goroutine until the queue is
// empty, waits for pending selection writes and returns how many tasks ran.
func (a *Annotator) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case task := <-a.tasks:
			a.run(ctx, task)
			n++
		default:
			a.checkpoint()
			if a.saves != nil {
				a.saves.wait()
			}
			return n
		}
	}
}

func (a *Annotator) run(ctx context.Context, task func(ctx context.Context)) {
	task(kit.WithSessionID(ctx, a.id))
	a.checkpoint()
}

// checkpoint delivers pending mutation records until quiet.
func (a *Annotator) checkpoint() {
	if left := a.doc.Settle(a.cfg.MaxDeliveryRounds); left > 0 {
		a.logger.Warn("annotator: mutation checkpoint did not settle", "pending", left, "rounds", a.cfg.MaxDeliveryRounds)
	}
}

// Resize reacts to a viewport resize. Call it on the loop.
func (a *Annotator) Resize() {
	if a.active {
		a.reactor.Resize()
	}
}

// Candidates returns the candidates found so far, in discovery order.
func (a *Annotator) Candidates() []scan.Candidate {
	return slices.Clone(a.cands)
}

// Annotated returns the element carrying the indicator, or nil.
func (a *Annotator) Annotated() *html.Node {
	if !a.active {
		return nil
	}
	return a.ctrl.Annotated()
}

// Deferred reports whether el is waiting to become visible.
func (a *Annotator) Deferred(el *html.Node) bool {
	return a.active && a.ctrl.Observing(el)
}

// pipeline is the view of an Annotator the reactor drives.
type pipeline struct{ a *Annotator }

func (p pipeline) Grow(ctx context.Context, root *html.Node) { p.a.apply(ctx, root) }

func (p pipeline) Retry(ctx context.Context) {
	p.a.ctrl.TryAnnotate(ctx, p.a.cands)
}

func (p pipeline) Hide() { p.a.ctrl.Hide() }

func (p pipeline) ObservingWithin(root *html.Node) bool { return p.a.ctrl.ObservingWithin(root) }

func (p pipeline) Annotated() *html.Node { return p.a.ctrl.Annotated() }
