package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/config"
	"github.com/agdev/storagegate/database"
	"github.com/agdev/storagegate/keybackend"
	"github.com/agdev/storagegate/s3store"
)

// app holds the wired core services of a running gateway.
type app struct {
	catalog  storagegate.Catalog
	gateway  *storagegate.Gateway
	groups   *storagegate.GroupManager
	endpoint storagegate.StorageEndpoint
	close    func()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *app) ping(ctx context.Context) error {
	if p, ok := a.catalog.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func newObjectStore(cfg *config.Config) (*s3store.Store, error) {
	creds, err := keybackend.NewCredentialStore(cfg.Storage.CredentialSources())
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	slog.Debug("credentials loaded", "names", creds.Names())

	return s3store.New(
		s3store.WithPathStyle(cfg.Storage.PathStyle),
		s3store.WithCredentials(creds),
	), nil
}

// buildApp connects the catalog, resolves the default endpoint and wires the
// gateway. Callers must call close on the result.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	catalog, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("connected to database", "type", cfg.Database.Type)

	fail := func(err error) (*app, error) {
		closeDB()
		return nil, err
	}

	endpoint, err := storagegate.EnsureEndpoint(ctx, catalog, cfg.Storage.Endpoint())
	if err != nil {
		return fail(fmt.Errorf("resolve default endpoint: %w", err))
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		return fail(err)
	}

	issuer := storagegate.NewCredentialIssuer(store, cfg.Issuer.Core())

	groups, err := storagegate.NewGroupManager(catalog, issuer, storagegate.NewKeyDeriver(cfg.Env), endpoint)
	if err != nil {
		return fail(fmt.Errorf("create group manager: %w", err))
	}

	gateway, err := storagegate.NewGateway(storagegate.NewAccessPolicy(cfg.Domains), groups, issuer)
	if err != nil {
		return fail(fmt.Errorf("create gateway: %w", err))
	}

	return &app{
		catalog:  catalog,
		gateway:  gateway,
		groups:   groups,
		endpoint: endpoint,
		close:    closeDB,
	}, nil
}
