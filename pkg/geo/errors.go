package geo

import "errors"

var (
	// ErrConfiguration is wrapped by every failure to construct a boundary,
	// a query shape or a tree configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is wrapped by failures of query arguments, reported
	// before any traversal happens.
	ErrValidation = errors.New("validation error")
)
