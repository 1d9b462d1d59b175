package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Closest returns the nearest ancestor-or-self of n matching sel, like
// Element.closest.
func Closest(n *html.Node, sel cascadia.Matcher) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && sel.Match(n) {
			return n
		}
	}
	return nil
}

// ParentElement returns the parent of n when it is an element.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// ByClass returns root and its descendants carrying class c, in document
// order.
func ByClass(root *html.Node, c string) []*html.Node {
	if root == nil {
		return nil
	}
	sel, err := cascadia.Compile("." + c)
	if err != nil {
		return nil
	}
	return sel.MatchAll(root)
}

// AnyByClass reports whether root or a descendant carries class c.
func AnyByClass(root *html.Node, c string) bool {
	if root == nil {
		return false
	}
	if HasClass(root, c) {
		return true
	}
	for ch := root.FirstChild; ch != nil; ch = ch.NextSibling {
		if AnyByClass(ch, c) {
			return true
		}
	}
	return false
}
