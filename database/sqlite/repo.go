// Package sqlite implements storagegate.Catalog on SQLite using modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal"
)

const (
	endpointColumns = `id, name, url, region, bucket, credential_ref, type, created_at`
	groupColumns    = `id, created_at, domain, user_id, project_id, category, common_prefix, finalized_at, storage_id`
	objectColumns   = `id, created_at, relative_key, purpose, group_id, storage_id, upload_validated_at, mime_type`
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanEndpoint(row scanner) (storagegate.StorageEndpoint, error) {
	var ep storagegate.StorageEndpoint
	var createdAt string
	if err := row.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.Region, &ep.Bucket, &ep.CredentialRef, &ep.Type, &createdAt); err != nil {
		return storagegate.StorageEndpoint{}, err
	}

	var err error
	ep.CreatedAt, err = parseTime(createdAt)
	return ep, err
}

func scanGroup(row scanner) (storagegate.DynamicObjectGroup, error) {
	var g storagegate.DynamicObjectGroup
	var id, createdAt string
	var finalizedAt sql.NullString
	if err := row.Scan(&id, &createdAt, &g.Domain, &g.UserID, &g.ProjectID, &g.Category, &g.CommonPrefix, &finalizedAt, &g.StorageID); err != nil {
		return storagegate.DynamicObjectGroup{}, err
	}

	var err error
	if g.ID, err = uuid.Parse(id); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("parse uuid: %w", err)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return storagegate.DynamicObjectGroup{}, err
	}
	if g.FinalizedAt, err = parseTimePtr(finalizedAt); err != nil {
		return storagegate.DynamicObjectGroup{}, err
	}
	return g, nil
}

func scanObject(row scanner) (storagegate.PendingObject, error) {
	var o storagegate.PendingObject
	var id, groupID, createdAt string
	var validatedAt, mimeType sql.NullString
	if err := row.Scan(&id, &createdAt, &o.RelativeKey, &o.Purpose, &groupID, &o.StorageID, &validatedAt, &mimeType); err != nil {
		return storagegate.PendingObject{}, err
	}

	var err error
	if o.ID, err = uuid.Parse(id); err != nil {
		return storagegate.PendingObject{}, fmt.Errorf("parse uuid: %w", err)
	}
	if o.GroupID, err = uuid.Parse(groupID); err != nil {
		return storagegate.PendingObject{}, fmt.Errorf("parse group uuid: %w", err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return storagegate.PendingObject{}, err
	}
	if o.UploadValidatedAt, err = parseTimePtr(validatedAt); err != nil {
		return storagegate.PendingObject{}, err
	}
	if mimeType.Valid {
		o.MimeType = &mimeType.String
	}
	return o, nil
}

func sqliteCode(err error) int {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	code := sqliteCode(err)
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isForeignKeyViolation(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func (r *Repo) GetEndpointByName(ctx context.Context, name string) (storagegate.StorageEndpoint, error) {
	ep, err := scanEndpoint(r.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM storage_endpoints WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %s: %w", name, storagegate.ErrNotFound)
		}
		return storagegate.StorageEndpoint{}, fmt.Errorf("get endpoint %s: %w", name, err)
	}
	return ep, nil
}

func (r *Repo) GetEndpoint(ctx context.Context, id int64) (storagegate.StorageEndpoint, error) {
	ep, err := scanEndpoint(r.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM storage_endpoints WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		INSERT INTO storage_endpoints (name, url, region, bucket, credential_ref, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + endpointColumns

	created, err := scanEndpoint(r.db.QueryRowContext(ctx, query,
		ep.Name, ep.URL, ep.Region, ep.Bucket, ep.CredentialRef, ep.Type, formatTime(r.now())))
	if err != nil {
		if isUniqueViolation(err) {
			return storagegate.StorageEndpoint{}, fmt.Errorf("create endpoint %s: %w: name already exists", ep.Name, storagegate.ErrInvalidState)
		}
		return storagegate.StorageEndpoint{}, fmt.Errorf("create endpoint %s: %w", ep.Name, err)
	}
	return created, nil
}

func (r *Repo) ListEndpoints(ctx context.Context) ([]storagegate.StorageEndpoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+endpointColumns+` FROM storage_endpoints ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
		INSERT INTO object_groups (id, created_at, domain, user_id, project_id, category, common_prefix, storage_id)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)
		RETURNING ` + groupColumns

	row, err := scanGroup(tx.QueryRowContext(ctx, insert,
		draft.ID.String(), formatTime(draft.CreatedAt), draft.Domain, draft.UserID, draft.ProjectID, draft.Category, draft.StorageID))
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: endpoint %d: %w", draft.StorageID, storagegate.ErrNotFound)
		case isUniqueViolation(err):
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group %s: %w: id already exists", draft.ID, storagegate.ErrInvalidState)
		}
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: insert: %w", err)
	}

	row.CommonPrefix = prefix(row)

	if _, err := tx.ExecContext(ctx, `UPDATE object_groups SET common_prefix = ? WHERE id = ?`, row.CommonPrefix, row.ID.String()); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: set prefix: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("create group: commit: %w", err)
	}

	return row, nil
}

func (r *Repo) GetGroup(ctx context.Context, id uuid.UUID) (storagegate.DynamicObjectGroup, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM object_groups WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storagegate.DynamicObjectGroup{}, fmt.Errorf("get group: %w", storagegate.ErrNotFound)
		}
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (r *Repo) FinalizeGroup(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.DynamicObjectGroup, error) {
	query := `
		UPDATE object_groups
		SET finalized_at = ?
		WHERE id = ? AND finalized_at IS NULL
		RETURNING ` + groupColumns

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, formatTime(at), id.String()))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}

	if _, err := r.GetGroup(ctx, id); err != nil {
		return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group: %w", err)
	}
	return storagegate.DynamicObjectGroup{}, fmt.Errorf("finalize group %s: %w: already finalized", id, storagegate.ErrInvalidState)
}

func (r *Repo) CreatePendingObject(ctx context.Context, obj storagegate.PendingObject) (storagegate.PendingObject, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finalizedAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT finalized_at FROM object_groups WHERE id = ?`, obj.GroupID.String()).Scan(&finalizedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: group %s: %w", obj.GroupID, storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: load group: %w", err)
	}
	if finalizedAt.Valid {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: group %s: %w: finalized", obj.GroupID, storagegate.ErrInvalidState)
	}

	var mimeType any
	if obj.MimeType != nil {
		mimeType = *obj.MimeType
	}

	insert := `
		INSERT INTO pending_objects (id, created_at, relative_key, purpose, group_id, storage_id, mime_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, relative_key) DO NOTHING
		RETURNING ` + objectColumns

	created, err := scanObject(tx.QueryRowContext(ctx, insert,
		obj.ID.String(), formatTime(obj.CreatedAt), obj.RelativeKey, obj.Purpose, obj.GroupID.String(), obj.StorageID, mimeType))
	inserted := true
	if errors.Is(err, sql.ErrNoRows) {
		inserted = false
		created, err = scanObject(tx.QueryRowContext(ctx,
			`SELECT `+objectColumns+` FROM pending_objects WHERE group_id = ? AND relative_key = ?`,
			obj.GroupID.String(), obj.RelativeKey))
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: endpoint %d: %w", obj.StorageID, storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storagegate.PendingObject{}, false, fmt.Errorf("create pending object: commit: %w", err)
	}

	return created, inserted, nil
}

func (r *Repo) GetPendingObject(ctx context.Context, id uuid.UUID) (storagegate.PendingObject, error) {
	o, err := scanObject(r.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM pending_objects WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storagegate.PendingObject{}, fmt.Errorf("get pending object: %w", storagegate.ErrNotFound)
		}
		return storagegate.PendingObject{}, fmt.Errorf("get pending object: %w", err)
	}
	return o, nil
}

func (r *Repo) MarkUploadValidated(ctx context.Context, id uuid.UUID, at time.Time) (storagegate.PendingObject, error) {
	query := `
		UPDATE pending_objects
		SET upload_validated_at = COALESCE(upload_validated_at, ?)
		WHERE id = ?
		RETURNING ` + objectColumns

	o, err := scanObject(r.db.QueryRowContext(ctx, query, formatTimePtr(&at), id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		WHERE group_id = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, groupID.String(), after.String(), internal.PageLimit(q.Limit))
	if err != nil {
		return storagegate.PendingObjectPage{}, fmt.Errorf("list pending objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
