package dom

import (
	"weak"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rect is a layout box in viewport coordinates, as returned by
// getBoundingClientRect.
type Rect struct {
	X, Y, Width, Height float64
}

// Top returns the top edge.
func (r Rect) Top() float64 { return r.Y }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Viewport describes the scroll offset and client size of the page.
type Viewport struct {
	ScrollX, ScrollY          float64
	ClientWidth, ClientHeight float64
}

// Layout answers rendering questions about nodes.
type Layout interface {
	// Box returns the layout box of n, and false when n is not rendered
	// (detached, or inside a display:none subtree).
	Box(n *html.Node) (Rect, bool)
	Viewport() Viewport
}

// SetLayout replaces the layout used by Box and Viewport.
func (d *Document) SetLayout(l Layout) {
	if l == nil {
		l = d.flow
	}
	d.layout = l
}

// Box delegates to the document's Layout.
func (d *Document) Box(n *html.Node) (Rect, bool) { return d.layout.Box(n) }

// Viewport delegates to the document's Layout.
func (d *Document) Viewport() Viewport { return d.layout.Viewport() }

// Flow returns the document's built-in layout.
func (d *Document) Flow() *FlowLayout { return d.flow }

// FlowLayout is the layout of a document with no rendering engine behind it.
// A node is rendered when it is connected and neither it nor an ancestor is
// hidden by an inline display:none or the hidden attribute. Boxes default to
// the zero rectangle and can be assigned with SetBox.
type FlowLayout struct {
	doc   *Document
	boxes map[weak.Pointer[html.Node]]Rect
	vp    Viewport
}

func newFlowLayout(d *Document) *FlowLayout {
	return &FlowLayout{
		doc:   d,
		boxes: make(map[weak.Pointer[html.Node]]Rect),
		vp:    Viewport{ClientWidth: 1280, ClientHeight: 800},
	}
}

// SetBox assigns the box reported for n while it is rendered.
func (f *FlowLayout) SetBox(n *html.Node, r Rect) {
	f.boxes[weak.Make(n)] = r
}

// SetViewport sets the reported viewport.
func (f *FlowLayout) SetViewport(vp Viewport) { f.vp = vp }

// Box implements Layout.
func (f *FlowLayout) Box(n *html.Node) (Rect, bool) {
	if n == nil || n.Type != html.ElementNode || !f.doc.Connected(n) {
		return Rect{}, false
	}
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if Style(p, "display") == "none" {
			return Rect{}, false
		}
		if _, hidden := Attr(p, "hidden"); hidden {
			return Rect{}, false
		}
		switch p.DataAtom {
		case atom.Template, atom.Script, atom.Style, atom.Head:
			return Rect{}, false
		}
	}
	return f.boxes[weak.Make(n)], true
}

// Viewport implements Layout.
func (f *FlowLayout) Viewport() Viewport { return f.vp }
