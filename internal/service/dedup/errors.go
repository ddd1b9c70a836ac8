package dedup

import "errors"

var (
	ErrRepointFailed       = errors.New("re-pointing dependents failed")
	ErrRepointerName       = errors.New("re-pointer name is required")
	ErrDuplicateRepointer  = errors.New("re-pointer already registered")
	ErrInvalidDependentRef = errors.New("invalid dependent table reference")
)
