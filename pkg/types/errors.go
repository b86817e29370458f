package types

import "errors"

// Domain errors shared by the transport and search layers
var (
	ErrUnknownEndpoint  = errors.New("unknown search endpoint")
	ErrFilterNotAllowed = errors.New("filter not supported by endpoint")
	ErrInvalidPage      = errors.New("page must be >= 1")
	ErrEmptyQuery       = errors.New("query cannot be empty")
)
