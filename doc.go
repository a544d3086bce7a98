// Package storagegate issues time-limited presigned URLs for objects in
// S3-compatible blob stores and tracks dynamic object groups in a relational
// catalog.
//
// # Key Components
//
//   - KeyDeriver: maps static refs and group members to canonical storage keys
//   - AccessPolicy: domain-based read/write decisions
//   - GroupManager: creates dynamic object groups and registers pending objects
//   - CredentialIssuer: presigned PUT/GET URLs and direct uploads
//   - Gateway: the request flow combining all of the above
//   - Catalog: interface for catalog persistence (PostgreSQL, SQLite)
//   - ObjectStore: interface for the blob store (S3 via the s3store package)
//
// # Key Namespace
//
// Static objects live under
//
//	static/env=<ENV>[/project_id=<PID>][/user_id=<UID>]/domain=<DOMAIN>/<RELATIVE_KEY>
//
// Dynamic groups get a prefix computed once at creation
//
//	dynamic/env=<ENV>/project_id=<PID>/years=<YYYY>/months=<MM>/days=<DD>/domain=<DOMAIN>/category=<CATEGORY>/id=<ID>
//
// and each member is stored at <ENV>/<prefix>/<RELATIVE_KEY>. The group's
// manifest is written to <prefix>/manifest.json.
//
// # Example Usage
//
//	issuer := storagegate.NewCredentialIssuer(store, storagegate.IssuerConfig{})
//	groups, err := storagegate.NewGroupManager(catalog, issuer, storagegate.NewKeyDeriver("dev"), mainEndpoint)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gw, err := storagegate.NewGateway(storagegate.NewAccessPolicy(storagegate.DefaultDomains()), groups, issuer)
//
//	url, err := gw.StaticUploadURL(ctx, caller, ref, storagegate.UploadOptions{ContentType: "image/png"})
//
// See the http package for the REST API and the database package for catalog
// backends.
package storagegate
