// Package indicator paints the "recently used" marker and caption on the
// candidate matching the site selection, or defers it until the element can
// be seen.
package indicator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"weak"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator/internal/scan"
	"github.com/hazyhaar/whichsocial/dom"
)

// Class names shared with the page stylesheet.
const (
	ProviderClass  = "which-social-provider"
	ObservingClass = "which-social-potential-provider"
	ShownClass     = "which-social-message-shown"
	CaptionClass   = "which-social-message"
)

// SelectionFunc returns the persisted provider for the site.
type SelectionFunc func(ctx context.Context) (provider string, ok bool, err error)

// Outcome is the result of one TryAnnotate call.
type Outcome int

const (
	NoSelection Outcome = iota
	NoCandidate
	Deferred
	AlreadyShown
	Annotated
)

func (o Outcome) String() string {
	switch o {
	case NoSelection:
		return "no-selection"
	case NoCandidate:
		return "no-candidate"
	case Deferred:
		return "deferred"
	case AlreadyShown:
		return "already-shown"
	case Annotated:
		return "annotated"
	}
	return "unknown"
}

// Controller holds the ObservingSet of one page and the annotated element.
type Controller struct {
	doc       *dom.Document
	selection SelectionFunc
	caption   string
	logger    *slog.Logger

	observing map[weak.Pointer[html.Node]]struct{}
	annotated weak.Pointer[html.Node]
}

// New returns a Controller painting caption next to the selected candidate.
func New(doc *dom.Document, selection SelectionFunc, caption string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		doc:       doc,
		selection: selection,
		caption:   caption,
		logger:    logger,
		observing: make(map[weak.Pointer[html.Node]]struct{}),
	}
}

// TryAnnotate paints the indicator on the candidate whose provider is the
// site selection, if that element can be seen. Otherwise the element joins
// the ObservingSet and a later call retries it.
func (c *Controller) TryAnnotate(ctx context.Context, cands []scan.Candidate) Outcome {
	provider, ok, err := c.selection(ctx)
	if err != nil {
		c.logger.Warn("indicator: read selection", "host", c.doc.Hostname(), "error", err)
		return NoSelection
	}
	if !ok {
		return NoSelection
	}

	el := c.pick(cands, provider)
	if el == nil {
		return NoCandidate
	}

	visible := c.visible(el)
	if dom.HasClass(el, ShownClass) {
		if visible {
			return AlreadyShown
		}
		c.Hide()
	}
	if !visible {
		c.observing[weak.Make(el)] = struct{}{}
		c.doc.AddClass(el, ObservingClass)
		c.logger.Debug("indicator: deferred", "provider", provider)
		return Deferred
	}

	if cur := c.annotated.Value(); cur != nil && cur != el && dom.HasClass(cur, ShownClass) {
		c.Hide()
	}
	c.doc.AddClass(el, ProviderClass)
	c.doc.RemoveClass(el, ObservingClass)
	delete(c.observing, weak.Make(el))
	c.doc.AddClass(el, ShownClass)
	c.appendCaption(el)
	c.annotated = weak.Make(el)
	c.logger.Debug("indicator: annotated", "provider", provider, "host", c.doc.Hostname())
	return Annotated
}

// pick returns the first candidate for provider whose element is connected,
// else the first whose element is still alive.
func (c *Controller) pick(cands []scan.Candidate, provider string) *html.Node {
	var alive *html.Node
	for _, cand := range cands {
		if !strings.EqualFold(cand.Provider, provider) {
			continue
		}
		el := cand.Element()
		if el == nil {
			continue
		}
		if c.doc.Connected(el) {
			return el
		}
		if alive == nil {
			alive = el
		}
	}
	return alive
}

func (c *Controller) visible(el *html.Node) bool {
	if dom.Style(el, "display") == "none" || dom.Style(el, "visibility") == "hidden" {
		return false
	}
	_, ok := c.doc.Box(el)
	return ok
}

func (c *Controller) appendCaption(el *html.Node) {
	body := c.doc.Body()
	if body == nil {
		return
	}
	rect, _ := c.doc.Box(el)
	vp := c.doc.Viewport()

	caption := c.doc.CreateElement("div")
	c.doc.AppendChild(caption, c.doc.CreateText(c.caption))
	c.doc.SetAttr(caption, "class", CaptionClass)
	c.doc.SetStyle(caption, "--right", px(-vp.ScrollX+(vp.ClientWidth-rect.Right())))
	c.doc.SetStyle(caption, "--top", px(vp.ScrollY+rect.Top()+rect.Height))
	position := "absolute"
	if dom.Style(el, "position") == "fixed" {
		position = "fixed"
	}
	c.doc.SetStyle(caption, "position", position)
	c.doc.AppendChild(body, caption)
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// Hide removes every caption and strips the indicator classes from every
// element, including the annotated one when it was detached. The
// ObservingSet is left alone.
func (c *Controller) Hide() {
	if el := c.annotated.Value(); el != nil {
		c.doc.RemoveClass(el, ProviderClass, ShownClass)
	}
	root := c.doc.Root()
	for _, caption := range dom.ByClass(root, CaptionClass) {
		c.doc.Remove(caption)
	}
	for _, cls := range []string{ProviderClass, ShownClass} {
		for _, el := range dom.ByClass(root, cls) {
			c.doc.RemoveClass(el, ProviderClass, ShownClass)
		}
	}
	c.annotated = weak.Pointer[html.Node]{}
}

// Observing reports whether el is deferred.
func (c *Controller) Observing(el *html.Node) bool {
	_, ok := c.observing[weak.Make(el)]
	return ok
}

// ObservingWithin reports whether root is or contains a deferred element.
// Entries whose element was collected are dropped.
func (c *Controller) ObservingWithin(root *html.Node) bool {
	found := false
	for ref := range c.observing {
		el := ref.Value()
		if el == nil {
			delete(c.observing, ref)
			continue
		}
		if !found && dom.Contains(root, el) {
			found = true
		}
	}
	return found
}

// ObservingLen returns the size of the ObservingSet.
func (c *Controller) ObservingLen() int { return len(c.observing) }

// Annotated returns the element currently carrying the indicator, or nil.
func (c *Controller) Annotated() *html.Node {
	el := c.annotated.Value()
	if el == nil || !dom.HasClass(el, ShownClass) {
		return nil
	}
	return el
}
