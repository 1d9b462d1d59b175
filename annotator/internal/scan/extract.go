package scan

import (
	"strings"
	"weak"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/whichsocial/dom"
)

// Candidate is an interactive element believed to start sign-in with
// Provider. The element is weakly held.
type Candidate struct {
	ref      weak.Pointer[html.Node]
	Provider string
}

// NewCandidate returns the candidate for element n.
func NewCandidate(n *html.Node, provider string) Candidate {
	return Candidate{ref: weak.Make(n), Provider: provider}
}

// Element returns the candidate's element, or nil once the host dropped it.
func (c Candidate) Element() *html.Node { return c.ref.Value() }

// Ref returns the weak reference to the element.
func (c Candidate) Ref() weak.Pointer[html.Node] { return c.ref }

var clickable = cascadia.MustCompile("button, a")

// denied lists, per lower-cased provider, destination hosts known not to be
// sign-in endpoints even though they do not contain the provider name.
var denied = map[string][]string{
	"google":    {"youtube.com", "goo.gl", "g.co"},
	"facebook":  {"fb.com", "fb.me", "fb.watch"},
	"twitter":   {"t.co", "x.com"},
	"linkedin":  {"lnkd.in"},
	"amazon":    {"amzn.to", "a.co"},
	"microsoft": {"aka.ms"},
	"discord":   {"discord.gg"},
	"apple":     {"apple.co"},
	"instagram": {"instagr.am"},
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Extract scans the descendants of root for provider labels and returns the
// element each one belongs to: the nearest button or link at or above the
// label's parent element, else the parent element. Links pointing at the
// provider's own site are dropped, since they are navigation rather than
// sign-in. Results are unique by (element, provider), in scan order.
func Extract(doc *dom.Document, root *html.Node, p *Pattern) []Candidate {
	var out []Candidate
	seen := make(map[Candidate]bool)
	for hit, provider := range Matches[*html.Node](HTMLTree{}, root, p) {
		parent := dom.ParentElement(hit)
		if parent == nil {
			continue
		}
		el := dom.Closest(parent, clickable)
		if el == nil {
			el = parent
		}
		if !keep(doc, el, provider) {
			continue
		}
		c := NewCandidate(el, provider)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// keep fails open: anything but a link with a resolvable host is kept.
func keep(doc *dom.Document, el *html.Node, provider string) bool {
	if el.DataAtom != atom.A {
		return true
	}
	href, ok := dom.Attr(el, "href")
	if !ok {
		return true
	}
	u, err := doc.ResolveURL(href)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	name := strings.ToLower(provider)
	if strings.Contains(host, name) {
		return false
	}
	for _, d := range denied[name] {
		if hostIs(host, d) {
			return false
		}
	}
	return true
}
