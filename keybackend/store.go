package keybackend

// CredentialsConfig holds configuration for loading named credentials.
type CredentialsConfig struct {
	Inline []Credential `mapstructure:"inline"` // Inline credentials from config
	File   string       `mapstructure:"file"`   // Path to JSON file containing credentials
}

// NewCredentialStore creates a credential store from the given configuration.
// It loads credentials from both inline config and file (if specified),
// merging them into a single store. File credentials take precedence over
// inline ones if there are duplicates.
func NewCredentialStore(cfg CredentialsConfig) (*MapCredentialStore, error) {
	creds := make(map[string]Credential)

	for _, c := range cfg.Inline {
		if c.complete() {
			creds[c.Name] = c
		}
	}

	if cfg.File != "" {
		fileCreds, err := LoadCredentialsFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for name, c := range fileCreds {
			creds[name] = c
		}
	}

	return NewMapCredentialStore(creds), nil
}
