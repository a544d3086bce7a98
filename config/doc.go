// Package config provides configuration loading and validation for storagegate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (STORAGEGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with the STORAGEGATE_ prefix:
//   - server.port → STORAGEGATE_SERVER_PORT
//   - database.dsn → STORAGEGATE_DATABASE_DSN
//   - auth.jwt_secret → STORAGEGATE_AUTH_JWT_SECRET
//
// A few keys also accept unprefixed names: env (PRODUCT_ENV), storage.url
// (S3_ENDPOINT_URL), storage.access_key (S3_ACCESS_KEY) and storage.secret_key
// (S3_SECRET_KEY). The prefixed name wins when both are set.
//
// # Configuration Structure
//
//   - Env: deployment environment, the first segment of every storage key
//   - Server: port, request body limit, shutdown timeout
//   - Database: catalog backend type (sqlite, postgres) and DSN
//   - Storage: the default endpoint definition and named S3 credentials
//   - Auth: JWT secret and token lifetime
//   - Issuer: default URL expiry and existence-check retries
//   - Domains: domain name → folder (the client id allowed to write)
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// When no domains are configured the built-in agcore, agvideo and agimage
// domains are used. A configured domains map replaces them entirely.
package config
