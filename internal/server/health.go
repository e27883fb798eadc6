package server

import (
	"log/slog"
	"net/http"
)

var (
	healthBody   = []byte(`{"ok":true}` + "\n")
	readyBody    = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain; charset=utf-8"}
)

// handleHealth reports liveness only; it never touches a store.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = jsonCT
	w.Write(healthBody)
}

// handleReadyz reports whether both the cache store and the record store
// answer a ping.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, readyBody
	if check := s.deps.ReadyCheck; check != nil {
		if err := check(r.Context()); err != nil {
			slog.LogAttrs(r.Context(), slog.LevelWarn, "readiness check failed",
				slog.String("error", err.Error()),
			)
			status, body = http.StatusServiceUnavailable, notReadyBody
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(status)
	w.Write(body)
}
