package scan

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// Kind classifies tree nodes for the scanner.
type Kind int

const (
	Other Kind = iota
	Element
	Text
)

// Tree is the read-only view of a node tree the scanner walks.
type Tree[N any] interface {
	Kind(n N) Kind
	Children(n N) iter.Seq[N]
	// Tag returns the lower-case element name.
	Tag(n N) string
	// Text returns the data of a text node.
	Text(n N) string
	Attr(n N, key string) (string, bool)
}

// Elements read for their alt text.
var altTags = map[string]bool{"img": true, "input": true, "area": true}

// Elements whose content is never rendered as text.
var opaqueTags = map[string]bool{"script": true, "style": true, "template": true, "noscript": true}

// Matches walks the descendants of root depth-first in document order and
// yields every text node whose trimmed text, and every img/input/area
// element whose trimmed alt, matches p, with the provider it names. root
// itself is not tested. The sequence is single-use and reads the tree
// lazily.
func Matches[N any](t Tree[N], root N, p *Pattern) iter.Seq2[N, string] {
	return func(yield func(N, string) bool) {
		var walk func(n N) bool
		walk = func(n N) bool {
			for c := range t.Children(n) {
				switch t.Kind(c) {
				case Text:
					if provider, ok := p.Match(t.Text(c)); ok {
						if !yield(c, provider) {
							return false
						}
					}
				case Element:
					tag := t.Tag(c)
					if altTags[tag] {
						if alt, ok := t.Attr(c, "alt"); ok && strings.TrimSpace(alt) != "" {
							if provider, ok := p.Match(alt); ok {
								if !yield(c, provider) {
									return false
								}
							}
						}
					}
					if opaqueTags[tag] {
						continue
					}
					if !walk(c) {
						return false
					}
				}
			}
			return true
		}
		walk(root)
	}
}

// HTMLTree adapts golang.org/x/net/html nodes to Tree.
type HTMLTree struct{}

func (HTMLTree) Kind(n *html.Node) Kind {
	switch n.Type {
	case html.ElementNode:
		return Element
	case html.TextNode:
		return Text
	}
	return Other
}

func (HTMLTree) Children(n *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		for c := n.FirstChild; c != nil; {
			// Read the sibling first so a consumer detaching c does not
			// end the walk.
			next := c.NextSibling
			if !yield(c) {
				return
			}
			c = next
		}
	}
}

func (HTMLTree) Tag(n *html.Node) string { return strings.ToLower(n.Data) }

func (HTMLTree) Text(n *html.Node) string { return n.Data }

func (HTMLTree) Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
