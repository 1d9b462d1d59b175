package livepage

// wireNode is a serialised DOM node exchanged with the bridge script. Page
// nodes carry positive IDs assigned by the script; nodes created on the Go
// side carry negative IDs.
type wireNode struct {
	I int64       `json:"i"`
	T string      `json:"t,omitempty"`
	A [][2]string `json:"a,omitempty"`
	C []wireNode  `json:"c,omitempty"`
	X *string     `json:"x,omitempty"`
}

func (w *wireNode) isElement() bool { return w.T != "" }

// Op names shared with the bridge script.
const (
	opInsert = "insert"
	opRemove = "remove"
	opAttr   = "attr"
	opText   = "text"
	opListen = "listen"
)

// op is one mutation, page to Go or Go to page.
type op struct {
	Op string    `json:"op"`
	I  int64     `json:"i,omitempty"`
	P  int64     `json:"p,omitempty"`
	B  int64     `json:"b,omitempty"`
	N  *wireNode `json:"n,omitempty"`
	K  string    `json:"k,omitempty"`
	// V is the attribute value; null removes the attribute.
	V *string `json:"v"`
	X *string `json:"x,omitempty"`
	E string  `json:"e,omitempty"`
}

// Message kinds sent by the bridge script.
const (
	kindMutations = "mut"
	kindEvent     = "event"
	kindResize    = "resize"
)

type message struct {
	K string `json:"k"`
	R []op   `json:"r,omitempty"`
	E string `json:"e,omitempty"`
	I int64  `json:"i,omitempty"`
}

func strptr(s string) *string { return &s }
