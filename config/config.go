package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database"
	gatehttp "github.com/agdev/storagegate/http"
	"github.com/agdev/storagegate/keybackend"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for storagegate.
type Config struct {
	// Env is the deployment environment; it prefixes every storage key.
	Env      string                        `mapstructure:"env" validate:"required,excludesall=/"`
	Server   ServerConfig                  `mapstructure:"server"`
	Database database.Config               `mapstructure:"database"`
	Storage  StorageConfig                 `mapstructure:"storage"`
	Auth     AuthConfig                    `mapstructure:"auth"`
	Issuer   IssuerConfig                  `mapstructure:"issuer"`
	Domains  map[string]storagegate.Domain `mapstructure:"domains" validate:"required,min=1,dive"`
	CORS     gatehttp.CORSConfig           `mapstructure:"cors"`
	Log      LogConfig                     `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxBodyBytes    int64 `mapstructure:"max_body_bytes" validate:"min=0"`
	ShutdownTimeout int   `mapstructure:"shutdown_timeout" validate:"min=1"`
}

// StorageConfig describes the default storage endpoint and the credentials
// available to all endpoints.
type StorageConfig struct {
	DefaultEndpoint string `mapstructure:"default_endpoint" validate:"required"`
	URL             string `mapstructure:"url" validate:"omitempty,url"`
	Region          string `mapstructure:"region" validate:"required"`
	Bucket          string `mapstructure:"bucket" validate:"required"`
	CredentialRef   string `mapstructure:"credential_ref"`
	PathStyle       bool   `mapstructure:"path_style"`

	// AccessKey and SecretKey register an inline credential named
	// DefaultCredential for deployments configured purely from env.
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	Credentials keybackend.CredentialsConfig `mapstructure:"credentials"`
}

// DefaultCredential names the credential built from storage.access_key and
// storage.secret_key.
const DefaultCredential = "default"

// Endpoint returns the definition used to create the default endpoint when
// the catalog does not have it yet.
func (s StorageConfig) Endpoint() storagegate.StorageEndpoint {
	ref := s.CredentialRef
	if ref == "" && s.AccessKey != "" && s.SecretKey != "" {
		ref = DefaultCredential
	}
	return storagegate.StorageEndpoint{
		Name:          s.DefaultEndpoint,
		URL:           s.URL,
		Region:        s.Region,
		Bucket:        s.Bucket,
		CredentialRef: ref,
		Type:          "s3",
	}
}

// CredentialSources merges the env-provided key pair into the configured credentials.
func (s StorageConfig) CredentialSources() keybackend.CredentialsConfig {
	cfg := s.Credentials
	if s.AccessKey != "" && s.SecretKey != "" {
		cfg.Inline = append([]keybackend.Credential{{
			Name:      DefaultCredential,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
		}}, cfg.Inline...)
	}
	return cfg
}

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=16"`
	// TokenTTL is the default lifetime of tokens minted by the token command, in seconds.
	TokenTTL int `mapstructure:"token_ttl" validate:"min=1"`
}

// IssuerConfig tunes presigned URL issuance.
type IssuerConfig struct {
	DefaultExpires int `mapstructure:"default_expires" validate:"min=1,max=604800"`
	MaxRetries     int `mapstructure:"max_retries" validate:"min=0,max=10"`
	// RetryBaseMS is the first backoff interval of existence checks, in milliseconds.
	RetryBaseMS int `mapstructure:"retry_base_ms" validate:"min=1"`
}

// Core converts the issuer settings into the form the credential issuer takes.
func (c IssuerConfig) Core() storagegate.IssuerConfig {
	return storagegate.IssuerConfig{
		DefaultExpires: c.DefaultExpires,
		MaxRetries:     uint64(c.MaxRetries),
		RetryBase:      time.Duration(c.RetryBaseMS) * time.Millisecond,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type": "database.type",
	"db-dsn":  "database.dsn",
	"port":    "server.port",
	"env":     "env",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 30) // seconds

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "storagegate.db")

	v.SetDefault("storage.default_endpoint", "main")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "agdev")
	v.SetDefault("storage.path_style", true)
	v.SetDefault("storage.credential_ref", "")
	v.SetDefault("storage.credentials.file", "")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("auth.token_ttl", 3600)

	v.SetDefault("issuer.default_expires", storagegate.DefaultExpiresSeconds)
	v.SetDefault("issuer.max_retries", 3)
	v.SetDefault("issuer.retry_base_ms", 100)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})

	v.SetDefault("log.level", "info")
}

// bindLegacyEnv lets deployments keep the variable names used before the
// STORAGEGATE_ prefix existed.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("env", "STORAGEGATE_ENV", "PRODUCT_ENV")
	_ = v.BindEnv("storage.url", "STORAGEGATE_STORAGE_URL", "S3_ENDPOINT_URL")
	_ = v.BindEnv("storage.access_key", "STORAGEGATE_STORAGE_ACCESS_KEY", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGEGATE_STORAGE_SECRET_KEY", "S3_SECRET_KEY")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("STORAGEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Domains) == 0 {
		cfg.Domains = storagegate.DefaultDomains()
	}
	for name, d := range cfg.Domains {
		if d.Name == "" {
			d.Name = name
		}
		if d.Folder == "" {
			d.Folder = name
		}
		cfg.Domains[name] = d
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
