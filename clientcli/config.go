package clientcli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the default gateway URL.
const DefaultEndpoint = "http://localhost:8000"

// Environment variables read by ConfigFromEnv and friends.
const (
	EnvEndpoint   = "STORAGEGATE_ENDPOINT"
	EnvToken      = "STORAGEGATE_TOKEN"
	EnvDomain     = "STORAGEGATE_DOMAIN"
	EnvProject    = "STORAGEGATE_PROJECT"
	EnvProfile    = "STORAGEGATE_PROFILE"
	EnvConfigPath = "STORAGEGATE_CLI_CONFIG"
)

// Profile is one named gateway connection. Domain and ProjectID are the
// static target used when a command names neither a domain nor a group.
type Profile struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token,omitempty"`
	Domain    string `yaml:"domain,omitempty"`
	ProjectID string `yaml:"project_id,omitempty"`
	Default   bool   `yaml:"default,omitempty"`
}

// ConfigFile is the on-disk list of profiles.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) index(name string) int {
	return slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Name == name })
}

// GetProfile returns the named profile, or the default one when name is empty.
func (c *ConfigFile) GetProfile(name string) (*Profile, error) {
	if name == "" {
		return c.GetDefaultProfile()
	}
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	i := c.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

// GetDefaultProfile returns the profile marked as default, or the first one.
func (c *ConfigFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	i := slices.IndexFunc(c.Profiles, func(p Profile) bool { return p.Default })
	return &c.Profiles[max(i, 0)], nil
}

// AddProfile appends p. Returns ErrProfileExists on a name clash.
func (c *ConfigFile) AddProfile(p Profile) error {
	if c.index(p.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// UpdateProfile replaces the profile with the same name.
func (c *ConfigFile) UpdateProfile(p Profile) error {
	i := c.index(p.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
	}
	c.Profiles[i] = p
	return nil
}

// RemoveProfile deletes the named profile.
func (c *ConfigFile) RemoveProfile(name string) error {
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.Profiles = slices.Delete(c.Profiles, i, i+1)
	return nil
}

// SetDefault marks one profile as default and clears the flag on the rest.
func (c *ConfigFile) SetDefault(name string) error {
	target := c.index(name)
	if target < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	for i := range c.Profiles {
		c.Profiles[i].Default = i == target
	}
	return nil
}

// ProfileNames lists profile names in file order.
func (c *ConfigFile) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Save writes the file with owner-only permissions, since profiles hold
// bearer tokens.
func (c *ConfigFile) Save(path string) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfigFile reads a profile file. A missing file yields an error
// wrapping os.ErrNotExist.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultConfigPath returns ~/.storagegate/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".storagegate", "config.yaml")
}

// Config is the resolved connection for one gateway plus the default
// static target.
type Config struct {
	Endpoint  string
	Token     string
	Domain    string
	ProjectID string
}

// WithDefaults returns a copy of the config with DefaultEndpoint filled in.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &cfg
}

// ValidateWithAuth checks that a bearer token is set.
func (c *Config) ValidateWithAuth() error {
	if c.Token == "" {
		return ErrTokenRequired
	}
	return nil
}

// DefaultLocation is the static target used when a command names none.
func (c *Config) DefaultLocation() Location {
	return Location{Domain: c.Domain, ProjectID: c.ProjectID}
}

// ConfigFromProfile converts a profile; nil yields an empty Config.
func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{
		Endpoint:  p.Endpoint,
		Token:     p.Token,
		Domain:    p.Domain,
		ProjectID: p.ProjectID,
	}
}

// ConfigFromEnv reads the STORAGEGATE_* client variables.
func ConfigFromEnv() *Config {
	return &Config{
		Endpoint:  os.Getenv(EnvEndpoint),
		Token:     os.Getenv(EnvToken),
		Domain:    os.Getenv(EnvDomain),
		ProjectID: os.Getenv(EnvProject),
	}
}

// ProfileFromEnv returns the profile name from STORAGEGATE_PROFILE.
func ProfileFromEnv() string {
	return os.Getenv(EnvProfile)
}

// ConfigPathFromEnv returns the config file path from STORAGEGATE_CLI_CONFIG.
func ConfigPathFromEnv() string {
	return os.Getenv(EnvConfigPath)
}

// MergeConfig merges configs left to right. Empty values never override.
func MergeConfig(configs ...*Config) *Config {
	result := &Config{}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		override(&result.Endpoint, cfg.Endpoint)
		override(&result.Token, cfg.Token)
		override(&result.Domain, cfg.Domain)
		override(&result.ProjectID, cfg.ProjectID)
	}
	return result
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
