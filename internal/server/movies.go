package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	cacheaside "github.com/eugener/cacheaside/internal"
)

type upsertResponse struct {
	OK   bool              `json:"ok"`
	Data *cacheaside.Movie `json:"data"`
}

func (s *server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Movies.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleUpsertMovie(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}
	m, err := parseMovie(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Movies.Upsert(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, upsertResponse{OK: true, Data: out})
}

// parseMovie checks the movie schema: id string or number, title non-empty
// string, year integer.
func parseMovie(body gjson.Result) (*cacheaside.Movie, error) {
	if !body.IsObject() {
		return nil, fmt.Errorf("%w: body must be a JSON object", cacheaside.ErrInvalidInput)
	}
	id, err := idField(body, "id")
	if err != nil {
		return nil, err
	}

	title := body.Get("title")
	if title.Type != gjson.String || title.Str == "" {
		return nil, fmt.Errorf("%w: title must be a non-empty string", cacheaside.ErrInvalidInput)
	}

	year := body.Get("year")
	if year.Type != gjson.Number || year.Num != math.Trunc(year.Num) ||
		year.Num < math.MinInt32 || year.Num > math.MaxInt32 {
		return nil, fmt.Errorf("%w: year must be an integer", cacheaside.ErrInvalidInput)
	}

	return &cacheaside.Movie{ID: id, Title: title.Str, Year: int(year.Num)}, nil
}

// idField reads an identifier that may be sent as a string or a number.
// Numbers are coerced to their shortest decimal form.
func idField(body gjson.Result, name string) (string, error) {
	v := body.Get(name)
	switch v.Type {
	case gjson.String:
		if v.Str == "" {
			return "", fmt.Errorf("%w: %s must not be empty", cacheaside.ErrInvalidInput, name)
		}
		return v.Str, nil
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string or number", cacheaside.ErrInvalidInput, name)
	}
}
