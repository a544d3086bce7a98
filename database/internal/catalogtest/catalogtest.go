// Package catalogtest is a conformance suite run against every
// storagegate.Catalog backend.
package catalogtest

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate"
)

// Factory returns an empty, migrated catalog.
type Factory func(t *testing.T) storagegate.Catalog

func Run(t *testing.T, newCatalog Factory) {
	t.Run("Endpoints", func(t *testing.T) { testEndpoints(t, newCatalog(t)) })
	t.Run("CreateGroup", func(t *testing.T) { testCreateGroup(t, newCatalog(t)) })
	t.Run("CreateGroupRollback", func(t *testing.T) { testCreateGroupRollback(t, newCatalog(t)) })
	t.Run("CreateGroupUnknownEndpoint", func(t *testing.T) { testCreateGroupUnknownEndpoint(t, newCatalog(t)) })
	t.Run("FinalizeGroup", func(t *testing.T) { testFinalizeGroup(t, newCatalog(t)) })
	t.Run("PendingObjects", func(t *testing.T) { testPendingObjects(t, newCatalog(t)) })
	t.Run("MarkUploadValidated", func(t *testing.T) { testMarkUploadValidated(t, newCatalog(t)) })
	t.Run("ListPendingObjects", func(t *testing.T) { testListPendingObjects(t, newCatalog(t)) })
	t.Run("ConcurrentRegistration", func(t *testing.T) { testConcurrentRegistration(t, newCatalog(t)) })
}

func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func prefixOf(g storagegate.DynamicObjectGroup) string {
	return fmt.Sprintf("dynamic/env=test/domain=%s/id=%s/created=%d", g.Domain, g.ID, g.CreatedAt.UnixMicro())
}

func mustEndpoint(t *testing.T, c storagegate.Catalog, name string) storagegate.StorageEndpoint {
	t.Helper()
	ep, err := c.CreateEndpoint(context.Background(), storagegate.StorageEndpoint{
		Name:   name,
		URL:    "http://localhost:9000",
		Region: "us-east-1",
		Bucket: "agdev",
	})
	require.NoError(t, err, "create endpoint")
	return ep
}

func mustGroup(t *testing.T, c storagegate.Catalog, ep storagegate.StorageEndpoint) storagegate.DynamicObjectGroup {
	t.Helper()
	g, err := c.CreateGroup(context.Background(), storagegate.DynamicObjectGroup{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: timestamp(),
		Domain:    "agcore",
		UserID:    "u1",
		ProjectID: "p1",
		Category:  "renders",
		StorageID: ep.ID,
	}, prefixOf)
	require.NoError(t, err, "create group")
	return g
}

func newObject(g storagegate.DynamicObjectGroup, key string) storagegate.PendingObject {
	return storagegate.PendingObject{
		ID:          uuid.Must(uuid.NewV7()),
		CreatedAt:   timestamp(),
		RelativeKey: key,
		GroupID:     g.ID,
		StorageID:   g.StorageID,
	}
}

func testEndpoints(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()

	main := mustEndpoint(t, c, "main")
	assert.NotZero(t, main.ID)
	assert.Equal(t, "s3", main.Type)
	assert.False(t, main.CreatedAt.IsZero())

	archive := mustEndpoint(t, c, "archive")
	assert.NotEqual(t, main.ID, archive.ID)

	byName, err := c.GetEndpointByName(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, main.ID, byName.ID)

	byID, err := c.GetEndpoint(ctx, archive.ID)
	require.NoError(t, err)
	assert.Equal(t, "archive", byID.Name)

	_, err = c.GetEndpointByName(ctx, "missing")
	assert.ErrorIs(t, err, storagegate.ErrNotFound)

	_, err = c.GetEndpoint(ctx, 9999)
	assert.ErrorIs(t, err, storagegate.ErrNotFound)

	_, err = c.CreateEndpoint(ctx, storagegate.StorageEndpoint{Name: "main", URL: "x", Region: "y", Bucket: "z"})
	assert.ErrorIs(t, err, storagegate.ErrInvalidState)

	all, err := c.ListEndpoints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "main", all[0].Name)
	assert.Equal(t, "archive", all[1].Name)
}

func testCreateGroup(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	ep := mustEndpoint(t, c, "main")

	draft := storagegate.DynamicObjectGroup{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: timestamp(),
		Domain:    "agvideo",
		UserID:    "u1",
		ProjectID: "p1",
		Category:  "clips",
		StorageID: ep.ID,
	}

	var seen storagegate.DynamicObjectGroup
	g, err := c.CreateGroup(ctx, draft, func(row storagegate.DynamicObjectGroup) string {
		seen = row
		return prefixOf(row)
	})
	require.NoError(t, err)

	assert.Equal(t, draft.ID, seen.ID, "prefix sees the persisted id")
	assert.True(t, draft.CreatedAt.Equal(seen.CreatedAt), "prefix sees the persisted timestamp")
	assert.Empty(t, seen.CommonPrefix)
	assert.Equal(t, prefixOf(draft), g.CommonPrefix)
	assert.Nil(t, g.FinalizedAt)

	got, err := c.GetGroup(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, g.CommonPrefix, got.CommonPrefix)
	assert.True(t, draft.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, "clips", got.Category)
	assert.Equal(t, ep.ID, got.StorageID)

	_, err = c.GetGroup(ctx, uuid.Must(uuid.NewV7()))
	assert.ErrorIs(t, err, storagegate.ErrNotFound)
}

func testCreateGroupRollback(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	ep := mustEndpoint(t, c, "main")
	g := mustGroup(t, c, ep)

	dup := g
	dup.CommonPrefix = ""
	_, err := c.CreateGroup(ctx, dup, prefixOf)
	assert.ErrorIs(t, err, storagegate.ErrInvalidState, "duplicate id")

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failing := uuid.Must(uuid.NewV7())
	_, err = c.CreateGroup(cctx, storagegate.DynamicObjectGroup{
		ID:        failing,
		CreatedAt: timestamp(),
		Domain:    "agcore",
		StorageID: ep.ID,
	}, func(g storagegate.DynamicObjectGroup) string {
		cancel()
		return prefixOf(g)
	})
	assert.Error(t, err)

	_, err = c.GetGroup(ctx, failing)
	assert.ErrorIs(t, err, storagegate.ErrNotFound, "failed creation leaves no row")
}

func testCreateGroupUnknownEndpoint(t *testing.T, c storagegate.Catalog) {
	_, err := c.CreateGroup(context.Background(), storagegate.DynamicObjectGroup{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: timestamp(),
		Domain:    "agcore",
		StorageID: 4242,
	}, prefixOf)
	assert.ErrorIs(t, err, storagegate.ErrNotFound)
}

func testFinalizeGroup(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	g := mustGroup(t, c, mustEndpoint(t, c, "main"))

	at := timestamp()
	finalized, err := c.FinalizeGroup(ctx, g.ID, at)
	require.NoError(t, err)
	require.NotNil(t, finalized.FinalizedAt)
	assert.True(t, at.Equal(*finalized.FinalizedAt))
	assert.Equal(t, g.CommonPrefix, finalized.CommonPrefix, "prefix is immutable")

	_, err = c.FinalizeGroup(ctx, g.ID, timestamp())
	assert.ErrorIs(t, err, storagegate.ErrInvalidState)

	_, err = c.FinalizeGroup(ctx, uuid.Must(uuid.NewV7()), timestamp())
	assert.ErrorIs(t, err, storagegate.ErrNotFound)

	_, _, err = c.CreatePendingObject(ctx, newObject(g, "late.bin"))
	assert.ErrorIs(t, err, storagegate.ErrInvalidState, "finalized group rejects members")
}

func testPendingObjects(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	g := mustGroup(t, c, mustEndpoint(t, c, "main"))

	mime := "image/png"
	obj := newObject(g, "frames/1.png")
	obj.Purpose = "frame"
	obj.MimeType = &mime

	created, inserted, err := c.CreatePendingObject(ctx, obj)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, obj.ID, created.ID)
	require.NotNil(t, created.MimeType)
	assert.Equal(t, "image/png", *created.MimeType)
	assert.Nil(t, created.UploadValidatedAt)

	again := newObject(g, "frames/1.png")
	existing, inserted, err := c.CreatePendingObject(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted, "same relative key is not inserted twice")
	assert.Equal(t, obj.ID, existing.ID)

	got, err := c.GetPendingObject(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "frame", got.Purpose)
	assert.Equal(t, g.ID, got.GroupID)

	_, err = c.GetPendingObject(ctx, again.ID)
	assert.ErrorIs(t, err, storagegate.ErrNotFound)

	orphan := newObject(storagegate.DynamicObjectGroup{ID: uuid.Must(uuid.NewV7()), StorageID: g.StorageID}, "x")
	_, _, err = c.CreatePendingObject(ctx, orphan)
	assert.ErrorIs(t, err, storagegate.ErrNotFound)
}

func testMarkUploadValidated(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	g := mustGroup(t, c, mustEndpoint(t, c, "main"))

	obj, _, err := c.CreatePendingObject(ctx, newObject(g, "a.bin"))
	require.NoError(t, err)

	first := timestamp()
	validated, err := c.MarkUploadValidated(ctx, obj.ID, first)
	require.NoError(t, err)
	require.NotNil(t, validated.UploadValidatedAt)
	assert.True(t, first.Equal(*validated.UploadValidatedAt))

	again, err := c.MarkUploadValidated(ctx, obj.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, first.Equal(*again.UploadValidatedAt), "earlier timestamp is kept")

	_, err = c.MarkUploadValidated(ctx, uuid.Must(uuid.NewV7()), first)
	assert.ErrorIs(t, err, storagegate.ErrNotFound)
}

func testListPendingObjects(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	ep := mustEndpoint(t, c, "main")
	g := mustGroup(t, c, ep)
	other := mustGroup(t, c, ep)

	var want []uuid.UUID
	for i := range 5 {
		obj, _, err := c.CreatePendingObject(ctx, newObject(g, fmt.Sprintf("f%d.bin", i)))
		require.NoError(t, err)
		want = append(want, obj.ID)
	}
	_, _, err := c.CreatePendingObject(ctx, newObject(other, "elsewhere.bin"))
	require.NoError(t, err)

	var got []uuid.UUID
	cursor := ""
	pages := 0
	for {
		page, err := c.ListPendingObjects(ctx, g.ID, storagegate.ListQuery{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, o := range page.Items {
			got = append(got, o.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, want, got, "all members in creation order")
	assert.Equal(t, 3, pages)
	assert.True(t, slices.IsSortedFunc(got, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) }),
		"members are ordered by id")

	empty, err := c.ListPendingObjects(ctx, uuid.Must(uuid.NewV7()), storagegate.ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	_, err = c.ListPendingObjects(ctx, g.ID, storagegate.ListQuery{Limit: 2, Cursor: "%%%"})
	assert.ErrorIs(t, err, storagegate.ErrInvalidInput)
}

func testConcurrentRegistration(t *testing.T, c storagegate.Catalog) {
	ctx := context.Background()
	g := mustGroup(t, c, mustEndpoint(t, c, "main"))

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, _, err := c.CreatePendingObject(ctx, newObject(g, "shared.bin"))
			ids[i], errs[i] = obj.ID, err
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "every caller sees the same row")
	}
}
