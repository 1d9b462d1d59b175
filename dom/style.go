package dom

import (
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type declaration struct {
	property  string
	value     string
	important bool
}

// parseInline parses a style attribute. douceur handles regular CSS; its
// scanner does not tokenise custom property names ("--x"), so declarations
// containing them go through the plain splitter, as does any list douceur
// returns with an empty value.
func parseInline(style string) []declaration {
	if strings.TrimSpace(style) == "" {
		return nil
	}
	if !strings.Contains(style, "--") {
		if out, ok := parseDouceur(style); ok {
			return out
		}
	}
	return splitInline(style)
}

// parseDouceur reads style through douceur. The last declaration loses its
// value unless it is terminated, so a ";" is appended first.
func parseDouceur(style string) ([]declaration, bool) {
	if !strings.HasSuffix(strings.TrimSpace(style), ";") {
		style += ";"
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return nil, false
	}
	out := make([]declaration, 0, len(decls))
	for _, d := range decls {
		if d == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		if prop == "" {
			continue
		}
		value := strings.TrimSpace(d.Value)
		if value == "" {
			return nil, false
		}
		out = append(out, declaration{property: prop, value: value, important: d.Important})
	}
	return out, true
}

func splitInline(style string) []declaration {
	var out []declaration
	for _, part := range strings.Split(style, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.TrimSpace(kv[0])
		if !strings.HasPrefix(prop, "--") {
			prop = strings.ToLower(prop)
		}
		if prop == "" {
			continue
		}
		value := strings.TrimSpace(kv[1])
		important := false
		if lower := strings.ToLower(value); strings.HasSuffix(lower, "!important") {
			important = true
			value = strings.TrimSpace(value[:len(value)-len("!important")])
		}
		if value == "" {
			continue
		}
		out = append(out, declaration{property: prop, value: value, important: important})
	}
	return out
}

func renderInline(decls []declaration) string {
	var sb strings.Builder
	for i, d := range decls {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.property)
		sb.WriteString(": ")
		sb.WriteString(d.value)
		if d.important {
			sb.WriteString(" !important")
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// Style returns the lower-cased inline style value of prop on n ("" when
// unset). The last declaration wins, as in a browser.
func Style(n *html.Node, prop string) string {
	v, _ := Attr(n, "style")
	if !strings.HasPrefix(prop, "--") {
		prop = strings.ToLower(prop)
	}
	val := ""
	for _, d := range parseInline(v) {
		if d.property == prop {
			val = d.value
		}
	}
	return strings.ToLower(val)
}

// SetStyle sets the inline declaration prop: value on n. An empty value
// removes the declaration.
func (d *Document) SetStyle(n *html.Node, prop, value string) {
	cur, _ := Attr(n, "style")
	decls := parseInline(cur)
	if !strings.HasPrefix(prop, "--") {
		prop = strings.ToLower(prop)
	}

	out := decls[:0:0]
	found := false
	for _, decl := range decls {
		if decl.property != prop {
			out = append(out, decl)
			continue
		}
		if value != "" && !found {
			out = append(out, declaration{property: prop, value: value})
			found = true
		}
	}
	if value != "" && !found {
		out = append(out, declaration{property: prop, value: value})
	}

	rendered := renderInline(out)
	if rendered == "" {
		if _, ok := Attr(n, "style"); ok {
			d.RemoveAttr(n, "style")
		}
		return
	}
	d.SetAttr(n, "style", rendered)
}
