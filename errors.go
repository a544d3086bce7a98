package storagegate

import "errors"

var (
	// ErrNotFound is returned when a group, pending object or endpoint is not in the catalog
	ErrNotFound = errors.New("not found")
	// ErrObjectNotFound is returned when a download is requested for a key absent from the object store
	ErrObjectNotFound = errors.New("object not found")
	// ErrAccessDenied is returned for unknown domains and tenant mismatches
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState is returned when an operation conflicts with a group's lifecycle state
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstream is returned when the object store or catalog call fails
	ErrUpstream = errors.New("upstream failure")
	// ErrUnauthenticated is returned when the caller identity cannot be established
	ErrUnauthenticated = errors.New("unauthenticated")
)
