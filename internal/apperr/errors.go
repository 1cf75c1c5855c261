package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoPosts  = errors.New("build produced no posts")
)
