package livepage

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/dom"
)

// Page as the bridge script would serialise it:
//
//	<html id=1><head id=2></head><body id=3><div id=4 class="modal"><button id=5>"Google" id=6</button></div></body></html>
const snapshotJSON = `{"i":1,"t":"html","c":[
	{"i":2,"t":"head"},
	{"i":3,"t":"body","c":[
		{"i":4,"t":"div","a":[["class","modal"]],"c":[
			{"i":5,"t":"button","c":[{"i":6,"x":"Google"}]}
		]}
	]}
]}`

type sink struct{ batches [][]op }

func (s *sink) send(ops []op) error {
	s.batches = append(s.batches, ops)
	return nil
}

func (s *sink) all() []op {
	var out []op
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func newTestMirror(t *testing.T) (*Mirror, *sink) {
	t.Helper()
	var snap wireNode
	if err := json.Unmarshal([]byte(snapshotJSON), &snap); err != nil {
		t.Fatal(err)
	}
	s := &sink{}
	m, err := newMirror("https://shop.example.com/login", &snap, s.send, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, s
}

func find(t *testing.T, m *Mirror, sel string) *html.Node {
	t.Helper()
	n := cascadia.Query(m.Document().Root(), cascadia.MustCompile(sel))
	if n == nil {
		t.Fatalf("no element %s", sel)
	}
	return n
}

func receive(t *testing.T, m *Mirror, msg string) {
	t.Helper()
	if err := m.Receive([]byte(msg)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
}

func TestNewMirror_Snapshot(t *testing.T) {
	m, _ := newTestMirror(t)
	d := m.Document()
	if d.Body() == nil || d.Hostname() != "shop.example.com" {
		t.Fatal("document should have a body and the page host")
	}
	btn := find(t, m, "div.modal > button")
	if id, ok := m.idOf(btn); !ok || id != 5 {
		t.Errorf("button id: got %d, want 5", id)
	}
	if btn.FirstChild == nil || btn.FirstChild.Data != "Google" {
		t.Error("button text not mirrored")
	}
}

func TestReceive_RemoteMutations(t *testing.T) {
	m, s := newTestMirror(t)
	d := m.Document()

	var origins []dom.Origin
	d.Observe(d.Body(), dom.ObserveOptions{ChildList: true, Attributes: true, Subtree: true}, func(recs []dom.Record) {
		for _, r := range recs {
			origins = append(origins, r.Origin)
		}
	})

	receive(t, m, `{"k":"mut","r":[
		{"op":"insert","p":3,"b":4,"n":{"i":7,"t":"a","a":[["href","/gh"]],"c":[{"i":8,"x":"GitHub"}]}},
		{"op":"attr","i":4,"k":"style","v":"display: none"},
		{"op":"attr","i":4,"k":"class","v":null}
	]}`)
	d.Settle(4)

	a := find(t, m, "body > a")
	if a.NextSibling != find(t, m, "div") {
		t.Error("link should be inserted before the modal")
	}
	div := find(t, m, "div")
	if dom.Style(div, "display") != "none" || dom.HasClass(div, "modal") {
		t.Errorf("div attributes: got %v", div.Attr)
	}
	for _, o := range origins {
		if o != dom.Remote {
			t.Fatalf("origin: got %v, want Remote", o)
		}
	}
	if len(origins) != 3 {
		t.Errorf("records: got %d, want 3", len(origins))
	}
	if len(s.all()) != 0 {
		t.Errorf("remote mutations echoed back: %+v", s.all())
	}

	receive(t, m, `{"k":"mut","r":[{"op":"remove","i":4},{"op":"text","i":8,"x":"Sign in with GitHub"}]}`)
	if d.Connected(div) {
		t.Error("div should be removed")
	}
	if a.FirstChild.Data != "Sign in with GitHub" {
		t.Errorf("text: got %q", a.FirstChild.Data)
	}
}

func TestReceive_MovePreservesIdentity(t *testing.T) {
	m, _ := newTestMirror(t)
	btn := find(t, m, "button")

	// The page moves the button to body, with a new child it gained meanwhile.
	receive(t, m, `{"k":"mut","r":[
		{"op":"remove","i":5},
		{"op":"insert","p":3,"b":0,"n":{"i":5,"t":"button","a":[["type","button"]],"c":[{"i":6,"x":"Google"},{"i":9,"t":"span"}]}}
	]}`)
	if got := find(t, m, "body > button"); got != btn {
		t.Fatal("moved button should be the same node")
	}
	if v, _ := dom.Attr(btn, "type"); v != "button" {
		t.Errorf("reconciled attribute: got %q", v)
	}
	if btn.LastChild == nil || btn.LastChild.Data != "span" {
		t.Error("reconciled children: span missing")
	}
}

func TestLocalMutations_Replayed(t *testing.T) {
	m, s := newTestMirror(t)
	d := m.Document()
	btn := find(t, m, "button")

	d.AddClass(btn, "which-social-provider")
	caption := d.CreateElement("div")
	d.AppendChild(caption, d.CreateText("Recently used on this site"))
	d.SetAttr(caption, "class", "which-social-message")
	d.AppendChild(d.Body(), caption)
	d.Settle(4)

	ops := s.all()
	if len(ops) != 2 {
		t.Fatalf("ops: got %d (%+v), want 2", len(ops), ops)
	}
	if ops[0].Op != opAttr || ops[0].I != 5 || ops[0].K != "class" || ops[0].V == nil || *ops[0].V != "which-social-provider" {
		t.Errorf("class op: got %+v", ops[0])
	}
	ins := ops[1]
	if ins.Op != opInsert || ins.P != 3 || ins.B != 0 || ins.N == nil || ins.N.I >= 0 {
		t.Fatalf("insert op: got %+v", ins)
	}
	if len(ins.N.C) != 1 || ins.N.C[0].X == nil || ins.N.C[0].I >= 0 {
		t.Errorf("caption child: got %+v", ins.N.C)
	}

	s.batches = nil
	d.Remove(caption)
	d.RemoveClass(btn, "which-social-provider")
	d.Settle(4)
	ops = s.all()
	if len(ops) != 2 || ops[0].Op != opRemove || ops[0].I != ins.N.I {
		t.Fatalf("remove op: got %+v", ops)
	}
	if ops[1].Op != opAttr || ops[1].V == nil || *ops[1].V != "" {
		t.Errorf("class clear op: got %+v", ops[1])
	}
}

func TestEvents_ListenAndDispatch(t *testing.T) {
	m, s := newTestMirror(t)
	d := m.Document()
	btn := find(t, m, "button")

	clicks := 0
	d.AddEventListener(btn, "click", func(dom.Event) { clicks++ })
	d.AddEventListener(d.Body(), "click", func(dom.Event) {})
	ops := s.all()
	if len(ops) != 1 || ops[0].Op != opListen || ops[0].E != "click" {
		t.Fatalf("listen ops: got %+v, want one click listen", ops)
	}

	receive(t, m, `{"k":"event","e":"click","i":6}`)
	receive(t, m, `{"k":"event","e":"click","i":99}`)
	if clicks != 1 {
		t.Errorf("clicks: got %d, want 1", clicks)
	}
}

func TestReceive_Resize(t *testing.T) {
	m, _ := newTestMirror(t)
	resized := 0
	m.OnResize(func() { resized++ })
	receive(t, m, `{"k":"resize"}`)
	if resized != 1 {
		t.Errorf("resize callbacks: got %d, want 1", resized)
	}
	if err := m.Receive([]byte(`{"k":"bogus"}`)); err == nil {
		t.Error("unknown kind should fail")
	}
	if err := m.Receive([]byte(`not json`)); err == nil {
		t.Error("invalid payload should fail")
	}
}

func TestRemoteLayout(t *testing.T) {
	m, _ := newTestMirror(t)
	var calls []string
	l := &remoteLayout{m: m, eval: func(js string, args ...any) ([]byte, error) {
		calls = append(calls, fmt.Sprint(args...))
		switch {
		case len(args) == 1 && args[0] == int64(5):
			return []byte(`{"x":10,"y":20,"w":100,"h":30}`), nil
		case len(args) == 1:
			return []byte(`null`), nil
		}
		return []byte(`{"sx":0,"sy":50,"cw":1280,"ch":720}`), nil
	}}

	r, ok := l.Box(find(t, m, "button"))
	if !ok || r.Right() != 110 || r.Height != 30 {
		t.Errorf("Box(button): got %+v %v", r, ok)
	}
	if _, ok := l.Box(find(t, m, "div")); ok {
		t.Error("Box(div): null result should mean no box")
	}
	if _, ok := l.Box(m.Document().CreateElement("p")); ok {
		t.Error("Box on a node unknown to the page should be false")
	}
	if vp := l.Viewport(); vp.ScrollY != 50 || vp.ClientWidth != 1280 {
		t.Errorf("Viewport: got %+v", vp)
	}
	if len(calls) != 3 {
		t.Errorf("evals: got %d, want 3", len(calls))
	}
}

func TestBlocklist(t *testing.T) {
	b := newBlocklist([]string{"fonts", " Media ", "XHR", ""})
	for typ, want := range map[proto.NetworkResourceType]bool{
		proto.NetworkResourceTypeFont:     true,
		proto.NetworkResourceTypeMedia:    true,
		proto.NetworkResourceTypeImage:    false,
		proto.NetworkResourceTypeXHR:      true,
		proto.NetworkResourceTypeDocument: false,
	} {
		if got := b.blocks(typ); got != want {
			t.Errorf("blocks(%q): got %v, want %v", typ, got, want)
		}
	}
	if len(newBlocklist(nil)) != 0 {
		t.Error("empty names should block nothing")
	}
}

func TestDisplaySocket(t *testing.T) {
	for name, want := range map[string]string{":99": "/tmp/.X11-unix/X99", ":1.0": "/tmp/.X11-unix/X1"} {
		if got, err := displaySocket(name); err != nil || got != want {
			t.Errorf("displaySocket(%q): got %q %v, want %q", name, got, err, want)
		}
	}
	for _, bad := range []string{"", "99", ":", ":x1", "host:0"} {
		if _, err := displaySocket(bad); err == nil {
			t.Errorf("displaySocket(%q): want error", bad)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("headful"); err != nil || m != Headful {
		t.Errorf("headful: got %v %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != Headless {
		t.Errorf("empty: got %v %v", m, err)
	}
	if _, err := ParseMode("xvfb"); err == nil {
		t.Error("unknown mode should fail")
	}
}
