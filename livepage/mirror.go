package livepage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"weak"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/dom"
)

// Mirror keeps a dom.Document in step with a live page. Page mutations are
// applied to the document with dom.Remote origin; every dom.Local mutation
// made on the document is encoded as an op and handed to send.
//
// A Mirror is owned by the event loop goroutine, like its document.
type Mirror struct {
	doc    *dom.Document
	send   func([]op) error
	logger *slog.Logger

	byID    map[int64]weak.Pointer[html.Node]
	ids     map[weak.Pointer[html.Node]]int64
	nextID  int64
	pruneAt int

	onResize  func()
	replay    *dom.Observer
	listening map[string]bool
}

// newMirror builds the document from the serialised documentElement.
func newMirror(pageURL string, snapshot *wireNode, send func([]op) error, logger *slog.Logger) (*Mirror, error) {
	if snapshot == nil || !snapshot.isElement() {
		return nil, fmt.Errorf("livepage: snapshot has no document element")
	}
	doc, err := dom.FromNode(&html.Node{Type: html.DocumentNode}, pageURL)
	if err != nil {
		return nil, fmt.Errorf("livepage: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{
		doc:     doc,
		send:    send,
		logger:  logger,
		byID:    make(map[int64]weak.Pointer[html.Node]),
		ids:     make(map[weak.Pointer[html.Node]]int64),
		pruneAt: 1024,

		listening: make(map[string]bool),
	}
	doc.AppendChild(doc.Root(), m.materialize(snapshot))

	m.replay = doc.Observe(doc.Root(), dom.ObserveOptions{
		ChildList: true, Attributes: true, CharacterData: true, Subtree: true,
	}, m.onRecords)
	doc.OnListen(func(_ *html.Node, typ string) {
		if m.listening[typ] {
			return
		}
		m.listening[typ] = true
		m.push([]op{{Op: opListen, E: typ}})
	})
	return m, nil
}

// Document returns the mirrored document.
func (m *Mirror) Document() *dom.Document { return m.doc }

// OnResize sets the callback run when the page body is resized.
func (m *Mirror) OnResize(fn func()) { m.onResize = fn }

func (m *Mirror) lookup(id int64) *html.Node {
	if id == 0 {
		return nil
	}
	return m.byID[id].Value()
}

func (m *Mirror) bind(n *html.Node, id int64) {
	ref := weak.Make(n)
	m.byID[id] = ref
	m.ids[ref] = id
	if len(m.byID) >= m.pruneAt {
		m.prune()
	}
}

// prune drops entries of collected nodes.
func (m *Mirror) prune() {
	for id, ref := range m.byID {
		if ref.Value() == nil {
			delete(m.byID, id)
			delete(m.ids, ref)
		}
	}
	m.pruneAt = max(1024, 2*len(m.byID))
}

// idOf returns the ID of n, and false when the page does not know n.
func (m *Mirror) idOf(n *html.Node) (int64, bool) {
	id, ok := m.ids[weak.Make(n)]
	return id, ok
}

// materialize returns the node for w: the known node brought in line with
// w, or a new detached one.
func (m *Mirror) materialize(w *wireNode) *html.Node {
	if n := m.lookup(w.I); n != nil {
		m.reconcile(n, w)
		return n
	}
	var n *html.Node
	if w.isElement() {
		n = m.doc.CreateElement(w.T)
		for _, kv := range w.A {
			m.doc.SetAttr(n, kv[0], kv[1])
		}
		for i := range w.C {
			m.doc.AppendChild(n, m.materialize(&w.C[i]))
		}
	} else {
		data := ""
		if w.X != nil {
			data = *w.X
		}
		n = m.doc.CreateText(data)
	}
	m.bind(n, w.I)
	return n
}

func (m *Mirror) reconcile(n *html.Node, w *wireNode) {
	if !w.isElement() {
		if w.X != nil {
			m.doc.SetText(n, *w.X)
		}
		return
	}
	want := make(map[string]bool, len(w.A))
	for _, kv := range w.A {
		want[kv[0]] = true
		m.doc.SetAttr(n, kv[0], kv[1])
	}
	var stale []string
	for _, a := range n.Attr {
		if a.Namespace == "" && !want[a.Key] {
			stale = append(stale, a.Key)
		}
	}
	for _, k := range stale {
		m.doc.RemoveAttr(n, k)
	}

	cursor := n.FirstChild
	for i := range w.C {
		c := m.materialize(&w.C[i])
		if c == cursor {
			cursor = cursor.NextSibling
			continue
		}
		m.doc.InsertBefore(n, c, cursor)
	}
	for cursor != nil {
		next := cursor.NextSibling
		m.doc.Remove(cursor)
		cursor = next
	}
}

// Receive handles one message from the bridge script.
func (m *Mirror) Receive(payload []byte) error {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("livepage: decode message: %w", err)
	}
	switch msg.K {
	case kindMutations:
		m.doc.WithOrigin(dom.Remote, func() {
			for i := range msg.R {
				m.applyRemote(&msg.R[i])
			}
		})
	case kindEvent:
		if n := m.lookup(msg.I); n != nil {
			m.doc.Dispatch(n, msg.E)
		}
	case kindResize:
		if m.onResize != nil {
			m.onResize()
		}
	default:
		return fmt.Errorf("livepage: unknown message kind %q", msg.K)
	}
	return nil
}

func (m *Mirror) applyRemote(o *op) {
	switch o.Op {
	case opInsert:
		parent := m.lookup(o.P)
		if parent == nil || o.N == nil {
			return
		}
		child := m.materialize(o.N)
		ref := m.lookup(o.B)
		if ref != nil && ref.Parent != parent {
			ref = nil
		}
		m.doc.InsertBefore(parent, child, ref)
	case opRemove:
		if n := m.lookup(o.I); n != nil {
			m.doc.Remove(n)
		}
	case opAttr:
		n := m.lookup(o.I)
		if n == nil {
			return
		}
		if o.V == nil {
			m.doc.RemoveAttr(n, o.K)
		} else {
			m.doc.SetAttr(n, o.K, *o.V)
		}
	case opText:
		if n := m.lookup(o.I); n != nil && o.X != nil {
			m.doc.SetText(n, *o.X)
		}
	default:
		m.logger.Debug("livepage: unknown op from page", "op", o.Op)
	}
}

// onRecords encodes local records, reading the current state of each target
// so that a batch replays to the state the document is in now.
func (m *Mirror) onRecords(recs []dom.Record) {
	var ops []op
	for _, rec := range recs {
		if rec.Origin != dom.Local {
			continue
		}
		switch rec.Type {
		case dom.ChildList:
			for _, n := range rec.Removed {
				if id, ok := m.idOf(n); ok {
					ops = append(ops, op{Op: opRemove, I: id})
				}
			}
			pid, ok := m.idOf(rec.Target)
			if !ok {
				continue
			}
			for _, n := range rec.Added {
				if n.Parent != rec.Target {
					continue
				}
				w := m.serialize(n)
				ops = append(ops, op{Op: opInsert, P: pid, B: m.knownNext(n), N: &w})
			}
		case dom.Attributes:
			id, ok := m.idOf(rec.Target)
			if !ok {
				continue
			}
			o := op{Op: opAttr, I: id, K: rec.AttributeName}
			if v, has := dom.Attr(rec.Target, rec.AttributeName); has {
				o.V = strptr(v)
			}
			ops = append(ops, o)
		case dom.CharacterData:
			if id, ok := m.idOf(rec.Target); ok {
				ops = append(ops, op{Op: opText, I: id, X: strptr(rec.Target.Data)})
			}
		}
	}
	m.push(ops)
}

func (m *Mirror) push(ops []op) {
	if len(ops) == 0 || m.send == nil {
		return
	}
	if err := m.send(ops); err != nil {
		m.logger.Warn("livepage: replay to page", "ops", len(ops), "error", err)
	}
}

// serialize encodes n for the page, assigning negative IDs to nodes the
// page has never seen.
func (m *Mirror) serialize(n *html.Node) wireNode {
	id, ok := m.idOf(n)
	if !ok {
		m.nextID--
		id = m.nextID
		m.bind(n, id)
	}
	w := wireNode{I: id}
	if n.Type == html.TextNode {
		w.X = strptr(n.Data)
		return w
	}
	w.T = n.Data
	for _, a := range n.Attr {
		if a.Namespace == "" {
			w.A = append(w.A, [2]string{a.Key, a.Val})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode || c.Type == html.TextNode {
			w.C = append(w.C, m.serialize(c))
		}
	}
	return w
}

func (m *Mirror) knownNext(n *html.Node) int64 {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if id, ok := m.idOf(s); ok {
			return id
		}
	}
	return 0
}

// Close stops replaying local mutations.
func (m *Mirror) Close() {
	m.replay.Disconnect()
	m.doc.OnListen(nil)
}
