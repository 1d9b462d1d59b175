// Package idgen generates the identifiers used by whichsocial: annotator
// session IDs, HTTP trace IDs and the randomised names of CDP bindings.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Bytes at or above this bound are rejected so every symbol is equally
// likely (252 = 7*36).
const tokenBound = 256 - 256%len(base36)

// Generator produces unique string identifiers.
type Generator func() string

// New returns a time-ordered RFC 9562 version 7 UUID.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Token returns a Generator of lowercase base-36 tokens of n symbols,
// usable inside JavaScript identifiers and HTTP headers.
func Token(n int) Generator {
	return func() string {
		out := make([]byte, 0, n)
		buf := make([]byte, n+n/4+1)
		for len(out) < n {
			if _, err := rand.Read(buf); err != nil {
				panic("idgen: crypto/rand: " + err.Error())
			}
			for _, b := range buf {
				if int(b) < tokenBound && len(out) < n {
					out = append(out, base36[int(b)%len(base36)])
				}
			}
		}
		return string(out)
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string { return prefix + gen() }
}
