// Package dom is the in-process page model the annotation engine runs
// against. A Document wraps a golang.org/x/net/html tree and adds the host
// capabilities a browser would provide: mutation records delivered in
// batches to observers, click listeners, inline style and class manipulation,
// and layout queries through a pluggable Layout.
//
// A Document is not safe for concurrent use. Every call must come from the
// goroutine that owns the page (the annotator event loop).
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"weak"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a mutable DOM tree plus the host state attached to it.
type Document struct {
	root *html.Node
	url  *url.URL

	origin    Origin
	observers []*Observer

	listeners map[weak.Pointer[html.Node]]map[string][]func(Event)
	onListen  func(n *html.Node, typ string)

	flow   *FlowLayout
	layout Layout
}

// New returns an empty document (html, head, body) for the page at rawURL.
func New(rawURL string) (*Document, error) {
	return Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"), rawURL)
}

// Parse builds a document from HTML markup.
func Parse(r io.Reader, rawURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse HTML: %w", err)
	}
	return FromNode(root, rawURL)
}

// FromNode wraps an existing tree. root must be an html.DocumentNode.
func FromNode(root *html.Node, rawURL string) (*Document, error) {
	if root == nil || root.Type != html.DocumentNode {
		return nil, fmt.Errorf("dom: root is not a document node")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dom: parse page URL: %w", err)
	}
	d := &Document{
		root:      root,
		url:       u,
		listeners: make(map[weak.Pointer[html.Node]]map[string][]func(Event)),
	}
	d.flow = newFlowLayout(d)
	d.layout = d.flow
	return d, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the page URL.
func (d *Document) URL() *url.URL { return d.url }

// Hostname returns the host part of the page URL, without port.
func (d *Document) Hostname() string { return d.url.Hostname() }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Body returns the <body> element, or nil for a frameset document.
func (d *Document) Body() *html.Node {
	de := d.DocumentElement()
	if de == nil {
		return nil
	}
	for c := de.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// ResolveURL resolves href against the page URL.
func (d *Document) ResolveURL(href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return d.url.ResolveReference(ref), nil
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// Connected reports whether n is attached to this document.
func (d *Document) Connected(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	if root == nil {
		return false
	}
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AppendChild appends child to parent, detaching it first if needed.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref. A nil ref appends.
// A child that already has a parent is moved.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil || child == ref {
		return
	}
	if ref != nil && ref.Parent != parent {
		return
	}
	if Contains(child, parent) {
		return
	}
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.InsertBefore(child, ref)
	d.queue(Record{
		Type:     ChildList,
		Target:   parent,
		Added:    []*html.Node{child},
		Previous: child.PrevSibling,
		Next:     child.NextSibling,
	})
}

// Remove detaches n from its parent. Detached nodes are ignored.
func (d *Document) Remove(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	prev, next := n.PrevSibling, n.NextSibling
	parent.RemoveChild(n)
	d.queue(Record{
		Type:     ChildList,
		Target:   parent,
		Removed:  []*html.Node{n},
		Previous: prev,
		Next:     next,
	})
}

// SetAttr sets attribute key to val. Writing the current value is a no-op.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return
			}
			old := a.Val
			n.Attr[i].Val = val
			d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.queue(Record{Type: Attributes, Target: n, AttributeName: key})
}

// RemoveAttr removes attribute key from n.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
}

// SetText replaces the data of a text node.
func (d *Document) SetText(n *html.Node, data string) {
	if n == nil || n.Type != html.TextNode || n.Data == data {
		return
	}
	old := n.Data
	n.Data = data
	d.queue(Record{Type: CharacterData, Target: n, OldValue: old})
}
