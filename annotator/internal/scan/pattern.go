// Package scan finds sign-in affordances in a DOM tree: a text scanner
// yields nodes whose text or alt matches a provider pattern, and the
// extractor maps each hit to the interactive element it labels.
package scan

import (
	"regexp"
	"strings"
)

// Pattern matches a provider vocabulary against short labels such as
// "Sign in with Google" or "GitHub".
type Pattern struct {
	re    *regexp.Regexp
	canon map[string]string
	names []string
}

// NewPattern compiles the pattern for providers. Entries are matched
// case-insensitively; duplicates collapse to the first spelling. An empty
// vocabulary yields a pattern that matches nothing.
func NewPattern(providers []string) *Pattern {
	p := &Pattern{canon: make(map[string]string)}
	var quoted []string
	for _, name := range providers {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := p.canon[key]; dup {
			continue
		}
		p.canon[key] = name
		p.names = append(p.names, name)
		quoted = append(quoted, regexp.QuoteMeta(name))
	}
	if len(quoted) == 0 {
		return p
	}
	p.re = regexp.MustCompile(`(?i)(?:(?:(?:(?:Log|Sign) ?(?:in|up))|Continue) with |^)(` +
		strings.Join(quoted, "|") +
		`)(?: (?:Log|Sign) ?(?:in|up))?\.?$`)
	return p
}

// Providers returns the deduplicated vocabulary in order.
func (p *Pattern) Providers() []string { return p.names }

// Match returns the canonical provider named by label, after trimming.
func (p *Pattern) Match(label string) (string, bool) {
	if p == nil || p.re == nil {
		return "", false
	}
	m := p.re.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return "", false
	}
	name, ok := p.canon[strings.ToLower(m[1])]
	return name, ok
}
