package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// RecordType is the kind of change a Record describes.
type RecordType int

const (
	ChildList RecordType = iota + 1
	Attributes
	CharacterData
)

func (t RecordType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	case CharacterData:
		return "characterData"
	}
	return "unknown"
}

// Origin tells who performed a mutation.
type Origin int

const (
	// Local mutations are made by code running against the Document itself.
	Local Origin = iota
	// Remote mutations were applied on behalf of a live page being mirrored.
	Remote
)

// Record is one DOM mutation, shaped like a browser MutationRecord.
type Record struct {
	Type          RecordType
	Target        *html.Node
	Added         []*html.Node
	Removed       []*html.Node
	Previous      *html.Node
	Next          *html.Node
	AttributeName string
	OldValue      string
	Origin        Origin
}

// ObserveOptions selects which records an Observer receives.
type ObserveOptions struct {
	ChildList       bool
	Attributes      bool
	CharacterData   bool
	Subtree         bool
	AttributeFilter []string
}

// Observer queues the records matching its options until the next delivery.
type Observer struct {
	doc     *Document
	root    *html.Node
	opts    ObserveOptions
	fn      func([]Record)
	pending []Record
	done    bool
}

// Observe registers fn for mutations under root. Records are queued as they
// happen and handed to fn in batches by Deliver.
func (d *Document) Observe(root *html.Node, opts ObserveOptions, fn func([]Record)) *Observer {
	o := &Observer{doc: d, root: root, opts: opts, fn: fn}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops o from receiving records and drops its queue.
func (o *Observer) Disconnect() {
	o.done = true
	o.pending = nil
	o.doc.observers = slices.DeleteFunc(o.doc.observers, func(x *Observer) bool { return x == o })
}

// TakeRecords empties and returns o's queue without calling its callback.
func (o *Observer) TakeRecords() []Record {
	recs := o.pending
	o.pending = nil
	return recs
}

func (o *Observer) wants(rec Record) bool {
	switch rec.Type {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
		if len(o.opts.AttributeFilter) > 0 && !slices.Contains(o.opts.AttributeFilter, rec.AttributeName) {
			return false
		}
	case CharacterData:
		if !o.opts.CharacterData {
			return false
		}
	default:
		return false
	}
	if o.opts.Subtree {
		return Contains(o.root, rec.Target)
	}
	return rec.Target == o.root
}

// WithOrigin runs fn with every mutation it performs tagged as origin.
func (d *Document) WithOrigin(origin Origin, fn func()) {
	prev := d.origin
	d.origin = origin
	defer func() { d.origin = prev }()
	fn()
}

func (d *Document) queue(rec Record) {
	rec.Origin = d.origin
	for _, o := range d.observers {
		if o.wants(rec) {
			o.pending = append(o.pending, rec)
		}
	}
}

// Pending returns the number of queued, undelivered records.
func (d *Document) Pending() int {
	n := 0
	for _, o := range d.observers {
		n += len(o.pending)
	}
	return n
}

// Deliver hands every observer its queued batch, in registration order, and
// returns the number of records delivered. Records produced by the callbacks
// stay queued for the next call.
func (d *Document) Deliver() int {
	total := 0
	for _, o := range slices.Clone(d.observers) {
		if o.done || len(o.pending) == 0 {
			continue
		}
		batch := o.pending
		o.pending = nil
		total += len(batch)
		o.fn(batch)
	}
	return total
}

// Settle delivers until no record is pending or maxRounds deliveries were
// made. It returns the number of records still pending.
func (d *Document) Settle(maxRounds int) int {
	for i := 0; i < maxRounds; i++ {
		if d.Deliver() == 0 {
			return 0
		}
	}
	return d.Pending()
}
