package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator"
	"github.com/hazyhaar/whichsocial/dom"
	"github.com/hazyhaar/whichsocial/store"
)

// candidateLine is one line of -scan output.
type candidateLine struct {
	Provider  string `json:"provider"`
	Tag       string `json:"tag"`
	Text      string `json:"text,omitempty"`
	Href      string `json:"href,omitempty"`
	Annotated bool   `json:"annotated,omitempty"`
}

// scanPage runs the engine once over the markup in r against an in-memory
// store and writes one JSON line per candidate to w.
func scanPage(ctx context.Context, r io.Reader, pageURL string, providers []string, selected string, cfg annotator.Config, w io.Writer, logger *slog.Logger) error {
	doc, err := dom.Parse(r, pageURL)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	st := &store.Memory{}
	if len(providers) > 0 {
		if err := annotator.SetProviders(ctx, st, providers); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	if err := annotator.InstallDefaults(ctx, st); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if selected != "" {
		if err := annotator.SaveSelection(ctx, st, doc.Hostname(), selected); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}

	ann := annotator.New(doc, st, cfg, logger)
	ann.Post(func(ctx context.Context) { ann.Setup(ctx) })
	ann.Drain(ctx)

	enc := json.NewEncoder(w)
	marked := ann.Annotated()
	for _, c := range ann.Candidates() {
		el := c.Element()
		if el == nil {
			continue
		}
		line := candidateLine{
			Provider:  c.Provider,
			Tag:       el.Data,
			Text:      textOf(el),
			Annotated: el == marked,
		}
		line.Href, _ = dom.Attr(el, "href")
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("scan: write: %w", err)
		}
	}
	return nil
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
