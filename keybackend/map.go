// Package keybackend resolves the named S3 credentials referenced by storage endpoints.
package keybackend

import "fmt"

// MapCredentialStore retrieves credentials from an in-memory map.
// Suitable for configuration file-based credential storage.
type MapCredentialStore struct {
	creds map[string]Credential
}

// NewMapCredentialStore creates a map-based credential store keyed by credential name.
func NewMapCredentialStore(creds map[string]Credential) *MapCredentialStore {
	return &MapCredentialStore{creds: creds}
}

// Lookup retrieves the credential with the given name.
func (s *MapCredentialStore) Lookup(name string) (Credential, error) {
	c, found := s.creds[name]
	if !found {
		return Credential{}, fmt.Errorf("lookup %q: %w", name, ErrCredentialNotFound)
	}
	return c, nil
}

// Names returns the names of all stored credentials.
func (s *MapCredentialStore) Names() []string {
	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	return names
}
