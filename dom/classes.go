package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	return slices.Contains(Classes(n), c)
}

// AddClass adds the given classes to n. Classes already present are kept in
// place; the attribute is only written when the list changes.
func (d *Document) AddClass(n *html.Node, classes ...string) {
	list := Classes(n)
	changed := false
	for _, c := range classes {
		if c != "" && !slices.Contains(list, c) {
			list = append(list, c)
			changed = true
		}
	}
	if changed {
		d.SetAttr(n, "class", strings.Join(list, " "))
	}
}

// RemoveClass removes the given classes from n.
func (d *Document) RemoveClass(n *html.Node, classes ...string) {
	list := Classes(n)
	kept := slices.DeleteFunc(slices.Clone(list), func(c string) bool {
		return slices.Contains(classes, c)
	})
	if len(kept) != len(list) {
		d.SetAttr(n, "class", strings.Join(kept, " "))
	}
}
