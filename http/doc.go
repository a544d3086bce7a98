// Package http exposes the storage gateway over a REST API.
//
// All routes take and return JSON except the URL-issuing ones, which answer
// with the presigned URL as text/plain:
//
//	POST /static_object/upload       {ref, option}            -> URL
//	POST /static_object/download     {ref, option}            -> URL
//	POST /dynamic_object/new_group   {domain, project_id, ...} -> "group-id"
//	POST /dynamic_object/upload      {ref, option}            -> URL
//	POST /dynamic_object/download    {ref, option}            -> URL
//	GET  /dynamic_object/groups/{id}
//	POST /dynamic_object/groups/{id}/finalize
//	GET  /dynamic_object/groups/{id}/objects?limit=&cursor=
//	POST /dynamic_object/objects/{id}/validate
//	POST /webhook/minio
//	GET  /healthz
//
// Every route except the webhook and health check requires
// "Authorization: Bearer <jwt>"; AuthMiddleware resolves the token to a
// storagegate.Caller before the handler runs.
//
// Errors are reported as {"error": code, "message": text}. HandleError maps
// the storagegate sentinel errors to status codes:
//
//	ErrUnauthenticated 401 unauthenticated
//	ErrAccessDenied    403 access_denied
//	ErrObjectNotFound  404 object_not_found
//	ErrNotFound        404 not_found
//	ErrInvalidInput    400 invalid_input
//	ErrInvalidState    409 invalid_state
//	ErrUpstream        502 upstream_failure
//
// # Usage
//
//	verifier, _ := auth.NewVerifier(secret)
//	handler := http.NewHandler(&http.HandlerConfig{Verifier: verifier}, gateway)
//	server := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
package http
