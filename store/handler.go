package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/whichsocial/guard"
	"github.com/hazyhaar/whichsocial/shield"
)

// Handler serves st over HTTP for the settings collaborator:
//
//	GET    /kv/{key}   200 with the JSON value, 404 when absent
//	PUT    /kv/{key}   body is the JSON value, 204
//	DELETE /kv/{key}   204
//	GET    /health
func Handler(st Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{st: st, logger: logger}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(validKey)
		r.Get("/kv/{key}", h.get)
		r.Put("/kv/{key}", h.put)
		r.Delete("/kv/{key}", h.delete)
	})
	return r
}

// validKey rejects keys the store does not hold with 400.
func validKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := guard.ValidateKey(keyParam(r)); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type handler struct {
	st     Store
	logger *slog.Logger
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	v, ok, err := h.st.Get(r.Context(), key)
	if err != nil {
		shield.GetLogger(r.Context()).Error("store: get", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, v)
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be JSON"})
		return
	}
	if err := h.st.Set(r.Context(), key, compact(body)); err != nil {
		shield.GetLogger(r.Context()).Error("store: set", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	h.logger.Info("store: set", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)
	if err := h.st.Delete(r.Context(), key); err != nil {
		shield.GetLogger(r.Context()).Error("store: delete", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	h.logger.Info("store: delete", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// keyParam returns the unescaped {key} segment. chi routes on the raw path
// when the request carries escapes.
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	if k, err := url.PathUnescape(raw); err == nil {
		return k
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
