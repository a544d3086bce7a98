// Package postgres implements storagegate.Catalog on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const (
	endpointColumns = `id, name, url, region, bucket, credential_ref, type, created_at`
	groupColumns    = `id, created_at, domain, user_id, project_id, category, common_prefix, finalized_at, storage_id`
	objectColumns   = `id, created_at, relative_key, purpose, group_id, storage_id, upload_validated_at, mime_type`
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row scanner) (storagegate.StorageEndpoint, error) {
	var ep storagegate.StorageEndpoint
	err := row.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.Region, &ep.Bucket, &ep.CredentialRef, &ep.Type, &ep.CreatedAt)
	ep.CreatedAt = ep.CreatedAt.UTC()
	return ep, err
}

func scanGroup(row scanner) (storagegate.DynamicObjectGroup, error) {
	var g storagegate.DynamicObjectGroup
	err := row.Scan(&g.ID, &g.CreatedAt, &g.Domain, &g.UserID, &g.ProjectID, &g.Category, &g.CommonPrefix, &g.FinalizedAt, &g.StorageID)
	g.CreatedAt = g.CreatedAt.UTC()
	g.FinalizedAt = utcPtr(g.FinalizedAt)
	return g, err
}

func scanObject(row scanner) (storagegate.PendingObject, error) {
	var o storagegate.PendingObject
	err := row.Scan(&o.ID, &o.CreatedAt, &o.RelativeKey, &o.Purpose, &o.GroupID, &o.StorageID, &o.UploadValidatedAt, &o.MimeType)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UploadValidatedAt = utcPtr(o.UploadValidatedAt)
	return o, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (r *Repo) GetEndpointByName(ctx context.Context, name string) (storagegate.StorageEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM storage_endpoints WHERE name = $1`

	ep, err := scanEndpoint(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %s: %w", name, storagegate.ErrNotFound)
		}
		return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %s: %w", name, err)
	}
	return ep, nil
}

func (r *Repo) GetEndpoint(ctx context.Context, id int64) (storagegate.StorageEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM storage_endpoints WHERE id = $1`

	ep, err := scanEndpoint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %d: %w", id, storagegate.ErrNotFound)
		}
		return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %d: %w", id, err)
	}
	return ep, nil
}

func (r *Repo) CreateEndpoint(ctx context.Context, ep storagegate.StorageEndpoint) (storagegate.StorageEndpoint, error) {
	if ep.Type == "" {
		ep.Type = "s3"
	}

	query := `
		INSERT INTO storage_endpoints (name, url, region, bucket, credential_ref, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + endpointColumns

	created, err := scanEndpoint(r.pool.QueryRow(ctx, query, ep.Name, ep.URL, ep.Region, ep.Bucket, ep.CredentialRef, ep.Type))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return storagegate.StorageEndpoint{}, fmt.Errorf("create endpoint %s: %w: name already exists", ep.Name, storagegate.ErrInvalidState)
		}
		return storagegate.StorageEndpoint{}, fmt.Errorf("create endpoint %s: %w", ep.Name, err)
	}
	return created, nil
}

func (r *Repo) ListEndpoints(ctx context.Context) ([]storagegate.StorageEndpoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+endpointColumns+` FROM storage_endpoints ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []storagegate.StorageEndpoint{}
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("list endpoints: scan: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list endpoints: rows: %w", err)
	}
	return endpoints, nil
}

func (r *Repo) CreateGroup(ctx context.Context, draft storagegate.DynamicObjectGroup, prefix storagegate.GroupPrefixFunc) (storagegate.DynamicObjectGroup, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO object_groups (id, created_at, domain, user_id, project_id, category, common_prefix, storage_id)
		VALUES ($1, $2, $3, $4, $5, $6, '', $7)
		RETURNING ` + groupColumns

	row, err := scanGroup(tx.QueryRow(ctx, insert,
		draft.ID, draft.CreatedAt, draft.Domain, draft.UserID, draft.ProjectID, draft.Category, draft.StorageID))
	if err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation:
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: endpoint %d: %w", draft.StorageID, storagegate.ErrNotFound)
		case codeUniqueViolation:
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group %s: %w: id already exists", draft.ID, storagegate.ErrInvalidState)
		}
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: insert: %w", err)
	}

	row.CommonPrefix = prefix(row)

	if _, err := tx.Exec(ctx, `UPDATE object_groups SET common_prefix = $2 WHERE id = $1`, row.ID, row.CommonPrefix); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: set prefix: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: commit: %w", err)
	}

	return row, nil
}

func (r *Repo) GetGroup(ctx context.Context, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	g, err := scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM object_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("get group: %w", storagegate.ErrNotFound)
		}
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (r *Repo) FinalizeGroup(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.DynamicObjectGroup, error) {
	query := `
		UPDATE object_groups
		SET finalized_at = $2
		WHERE id = $1 AND finalized_at IS NULL
		RETURNING ` + groupColumns

	g, err := scanGroup(r.pool.QueryRow(ctx, query, id, at))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}

	if _, err := r.GetGroup(ctx, id); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}
	return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group %s: %w: already finalized", id, storagegate.ErrInvalidState)
}

func (r *Repo) CreatePendingObject(ctx context.Context, obj storagegate.PendingObject) (storagegate.PendingObject, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes registration against FinalizeGroup.
	var finalizedAt *time.Time
	err = tx.QueryRow(ctx, `SELECT finalized_at FROM object_groups WHERE id = $1 FOR UPDATE`, obj.GroupID).Scan(&finalizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: group %s: %w", obj.GroupID, storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: lock group: %w", err)
	}
	if finalizedAt != nil {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: group %s: %w: finalized", obj.GroupID, storagegate.ErrInvalidState)
	}

	insert := `
		INSERT INTO pending_objects (id, created_at, relative_key, purpose, group_id, storage_id, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id, relative_key) DO NOTHING
		RETURNING ` + objectColumns

	created, err := scanObject(tx.QueryRow(ctx, insert,
		obj.ID, obj.CreatedAt, obj.RelativeKey, obj.Purpose, obj.GroupID, obj.StorageID, obj.MimeType))
	inserted := true
	if errors.Is(err, pgx.ErrNoRows) {
		inserted = false
		created, err = scanObject(tx.QueryRow(ctx,
			`SELECT `+objectColumns+` FROM pending_objects WHERE group_id = $1 AND relative_key = $2`,
			obj.GroupID, obj.RelativeKey))
	}
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: endpoint %d: %w", obj.StorageID, storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: commit: %w", err)
	}

	return created, inserted, nil
}

func (r *Repo) GetPendingObject(ctx context.Context, id uuid.UUID) (storagegate.PendingObject, error) {
	o, err := scanObject(r.pool.QueryRow(ctx, `SELECT `+objectColumns+` FROM pending_objects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.PendingObject{}, fmt.Errorf("get pending object: %w", storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, fmt.Errorf("get pending object: %w", err)
	}
	return o, nil
}

func (r *Repo) MarkUploadValidated(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.PendingObject, error) {
	query := `
		UPDATE pending_objects
		SET upload_validated_at = COALESCE(upload_validated_at, $2)
		WHERE id = $1
		RETURNING ` + objectColumns

	o, err := scanObject(r.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storagegate.PendingObject{}, fmt.Errorf("mark upload validated: %w", storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, fmt.Errorf("mark upload validated: %w", err)
	}
	return o, nil
}

func (r *Repo) ListPendingObjects(ctx context.Context, groupID uuid.UUID, q storagegate.ListQuery) (storagegate.PendingObjectPage, error) {
	after, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return storagegate.PendingObjectPage{}, fmt.Errorf("list pending objects: %w", err)
	}

	query := `
		SELECT ` + objectColumns + `
		FROM pending_objects
		WHERE group_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, groupID, after, internal.PageLimit(q.Limit))
	if err != nil {
		return storagegate.PendingObjectPage{}, fmt.Errorf("list pending objects: %w", err)
	}
	defer rows.Close()

	var items []storagegate.PendingObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return storagegate.PendingObjectPage{}, fmt.Errorf("list pending objects: scan: %w", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return storagegate.PendingObjectPage{}, fmt.Errorf("list pending objects: rows: %w", err)
	}

	return internal.BuildPage(items, q.Limit), nil
}
