package dom

import (
	"weak"

	"golang.org/x/net/html"
)

// Event is delivered to listeners registered with AddEventListener.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node
}

// AddEventListener registers fn for events of typ on n. Listeners are keyed
// by a weak reference: the registration never keeps n alive.
func (d *Document) AddEventListener(n *html.Node, typ string, fn func(Event)) {
	key := weak.Make(n)
	byType := d.listeners[key]
	if byType == nil {
		byType = make(map[string][]func(Event))
		d.listeners[key] = byType
	}
	byType[typ] = append(byType[typ], fn)
	if d.onListen != nil {
		d.onListen(n, typ)
	}
}

// OnListen sets a hook called for every AddEventListener. Mirrors use it to
// bind the same event type on the live page.
func (d *Document) OnListen(hook func(n *html.Node, typ string)) {
	d.onListen = hook
}

// Listening reports whether n has at least one listener for typ.
func (d *Document) Listening(n *html.Node, typ string) bool {
	return len(d.listeners[weak.Make(n)][typ]) > 0
}

// Dispatch fires an event of typ at target and bubbles it up the ancestor
// chain. It returns the number of listeners invoked.
func (d *Document) Dispatch(target *html.Node, typ string) int {
	called := 0
	for n := target; n != nil; n = n.Parent {
		fns := d.listeners[weak.Make(n)][typ]
		for _, fn := range fns {
			fn(Event{Type: typ, Target: target, CurrentTarget: n})
			called++
		}
	}
	return called
}
