package shield

import "net/http"

// Headers maps response header names to the value set on every response.
type Headers map[string]string

// DefaultHeaders suits a JSON API that is never framed, sniffed nor cached.
func DefaultHeaders() Headers {
	return Headers{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
}

// SecurityHeaders sets hs on every response before the handler runs, so a
// handler may still override one of them.
func SecurityHeaders(hs Headers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dst := w.Header()
			for k, v := range hs {
				dst.Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
