package keybackend

import "errors"

// ErrCredentialNotFound is returned when no credential has the requested name.
var ErrCredentialNotFound = errors.New("credential not found")
