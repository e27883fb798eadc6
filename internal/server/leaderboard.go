package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	cacheaside "github.com/eugener/cacheaside/internal"
)

type topResponse struct {
	Top []cacheaside.RankedEntry `json:"top"`
}

func (s *server) handleAddScore(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}
	if !body.IsObject() {
		writeError(w, r, fmt.Errorf("%w: body must be a JSON object", cacheaside.ErrInvalidInput))
		return
	}
	userID, err := idField(body, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	delta := body.Get("delta")
	if delta.Type != gjson.Number {
		writeError(w, r, fmt.Errorf("%w: delta must be a number", cacheaside.ErrInvalidInput))
		return
	}

	res, err := s.deps.Leaderboard.AddScore(r.Context(), userID, delta.Num)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleTop(w http.ResponseWriter, r *http.Request) {
	// Out-of-range integers saturate to MinInt64/MaxInt64 and are then
	// clamped by the service like any other n.
	n, err := strconv.ParseInt(chi.URLParam(r, "n"), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		writeError(w, r, fmt.Errorf("%w: n must be an integer", cacheaside.ErrInvalidInput))
		return
	}
	top, err := s.deps.Leaderboard.Top(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topResponse{Top: top})
}
