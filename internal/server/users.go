package server

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	cacheaside "github.com/eugener/cacheaside/internal"
)

func (s *server) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, ok := readJSON(w, r)
	if !ok {
		return
	}
	fields, err := parsePatch(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Profiles.Patch(r.Context(), id, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// parsePatch turns a flat JSON object into ordered profile fields.
// Nested objects and arrays are rejected.
func parsePatch(body gjson.Result) ([]cacheaside.Field, error) {
	if !body.IsObject() {
		return nil, fmt.Errorf("%w: body must be a JSON object", cacheaside.ErrBadRequest)
	}

	var (
		fields []cacheaside.Field
		err    error
	)
	body.ForEach(func(key, value gjson.Result) bool {
		f := cacheaside.Field{Name: key.String()}
		switch value.Type {
		case gjson.String:
			f.Value = cacheaside.StringValue(value.Str)
		case gjson.True:
			f.Value = cacheaside.BoolValue(true)
		case gjson.False:
			f.Value = cacheaside.BoolValue(false)
		case gjson.Number:
			f.Value = cacheaside.NumberValue(value.Raw)
		case gjson.Null:
			f.Value = cacheaside.NullValue()
		default:
			err = fmt.Errorf("%w: field %q must be a scalar", cacheaside.ErrBadRequest, f.Name)
			return false
		}
		fields = append(fields, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: patch has no fields", cacheaside.ErrBadRequest)
	}
	return fields, nil
}
