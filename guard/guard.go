// Package guard provides the input checks shared by the CLI and the
// settings HTTP surface: page URL validation, store key validation and
// bounded reads.
package guard

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"
)

// MaxKeyLen bounds store keys. Keys embed a hostname (at most 253 bytes)
// plus a short prefix or suffix.
const MaxKeyLen = 300

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrUnsafeScheme is returned when a page URL is not http or https.
var ErrUnsafeScheme = errors.New("guard: only http and https schemes are allowed")

// ErrInvalidKey is returned for keys the store does not accept.
var ErrInvalidKey = errors.New("guard: invalid store key")

// ValidatePageURL checks that rawURL can be opened as a page: http or https
// with a hostname.
func ValidatePageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("guard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("guard: URL has no host")
	}
	return u, nil
}

// ValidateKey accepts the keys settings are stored under: letters, digits
// and the punctuation hostnames and key affixes use (. - _ :).
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLen {
		return fmt.Errorf("%w: length %d", ErrInvalidKey, len(key))
	}
	for _, r := range key {
		if !isKeyChar(r) {
			return fmt.Errorf("%w: character %q", ErrInvalidKey, r)
		}
	}
	return nil
}

func isKeyChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' || r == ':'
}

// LimitedReadAll reads at most maxBytes from r and fails when there is more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("guard: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}
