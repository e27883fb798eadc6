package cacheaside

import "errors"

// Sentinel errors for the cache-aside domain.
var (
	ErrNotFound         = errors.New("not found")
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrWrongType        = errors.New("wrong key type")
)
