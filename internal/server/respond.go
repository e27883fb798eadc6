package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	cacheaside "github.com/eugener/cacheaside/internal"
)

// maxBody caps request bodies. Every accepted payload is a small flat object.
const maxBody = 64 << 10

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(errType, msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = errType
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, cacheaside.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cacheaside.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, cacheaside.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cacheaside.ErrWrongType):
		return http.StatusConflict
	case errors.Is(err, cacheaside.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

// internalErrorBody is written when a response value cannot be encoded.
var internalErrorBody = []byte(`{"error":{"message":"internal error","type":"internal_error"}}` + "\n")

// writeJSON encodes v before committing the status so an encoding failure
// still yields a 500 instead of an empty 2xx.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		status, body = http.StatusInternalServerError, internalErrorBody
	} else {
		body = append(body, '\n')
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(body)
}

// writeError maps err to a status and writes a sanitized message. Client
// errors carry their own message; everything else is logged server-side and
// reported generically so store internals never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusNotFound:
		writeJSON(w, status, errorResponse("not_found", "not found"))
	case http.StatusBadRequest:
		writeJSON(w, status, errorResponse("invalid_request_error", err.Error()))
	case http.StatusUnprocessableEntity:
		writeJSON(w, status, errorResponse("validation_error", err.Error()))
	case http.StatusConflict:
		writeJSON(w, status, errorResponse("conflict", "key holds a value of a different type"))
	case http.StatusServiceUnavailable:
		slog.LogAttrs(r.Context(), slog.LevelError, "store unavailable",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", cacheaside.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, errorResponse("service_unavailable", "cache store unavailable"))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "internal error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", cacheaside.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, errorResponse("internal_error", "internal error"))
	}
}

// readJSON reads a bounded request body and checks that it is well-formed
// JSON. On failure it writes a 400 and returns ok=false.
func readJSON(w http.ResponseWriter, r *http.Request) (gjson.Result, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("invalid_request_error", "request body too large"))
			return gjson.Result{}, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid_request_error", "invalid request body"))
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid_request_error", "malformed JSON"))
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(body), true
}

func (s *server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse("not_found", "route not found"))
}

func (s *server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse("invalid_request_error", "method not allowed"))
}
