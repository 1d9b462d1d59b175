package livepage

import (
	"encoding/json"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/dom"
)

// evalFunc evaluates a JS function in the page and returns its result as
// JSON.
type evalFunc func(js string, args ...any) ([]byte, error)

// remoteLayout answers layout queries from the live page. Nodes the page
// does not know have no box.
type remoteLayout struct {
	m    *Mirror
	eval evalFunc
}

func (l *remoteLayout) Box(n *html.Node) (dom.Rect, bool) {
	id, ok := l.m.idOf(n)
	if !ok || !l.m.doc.Connected(n) {
		return dom.Rect{}, false
	}
	raw, err := l.eval(`(i) => window.__ws.box(i)`, id)
	if err != nil {
		l.m.logger.Debug("livepage: box query", "id", id, "error", err)
		return dom.Rect{}, false
	}
	var box *struct {
		X, Y, W, H float64
	}
	if err := json.Unmarshal(raw, &box); err != nil || box == nil {
		return dom.Rect{}, false
	}
	return dom.Rect{X: box.X, Y: box.Y, Width: box.W, Height: box.H}, true
}

func (l *remoteLayout) Viewport() dom.Viewport {
	raw, err := l.eval(`() => window.__ws.viewport()`)
	if err != nil {
		l.m.logger.Debug("livepage: viewport query", "error", err)
		return dom.Viewport{}
	}
	var vp struct {
		SX float64 `json:"sx"`
		SY float64 `json:"sy"`
		CW float64 `json:"cw"`
		CH float64 `json:"ch"`
	}
	if err := json.Unmarshal(raw, &vp); err != nil {
		return dom.Viewport{}
	}
	return dom.Viewport{ScrollX: vp.SX, ScrollY: vp.SY, ClientWidth: vp.CW, ClientHeight: vp.CH}
}
