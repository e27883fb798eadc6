package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	cacheaside "github.com/eugener/cacheaside/internal"
)

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// handleDeleteKey deletes a raw cache key. Keys are not checked against
// the known prefixes.
func (s *server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.deps.Keys.Delete(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

// pathParam returns the named URL parameter decoded exactly once. chi matches
// against RawPath when the request carries one, leaving params escaped;
// otherwise they are already decoded from Path.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	dec, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s", cacheaside.ErrBadRequest, name)
	}
	return dec, nil
}
