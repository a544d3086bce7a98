package internal_test

import (
	"encoding/base64"
	"testing"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCursor_DecodeCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   uuid.UUID
	}{
		{name: "v7 id", id: uuid.Must(uuid.NewV7())},
		{name: "v4 id", id: uuid.New()},
		{name: "max id", id: uuid.Max},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded := internal.EncodeCursor(tt.id)
			assert.NotContains(t, encoded, "=", "cursor is unpadded")

			decoded, err := internal.DecodeCursor(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	t.Parallel()

	id, err := internal.DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "!!!not-base64!!!"},
		{name: "wrong length", cursor: base64.RawURLEncoding.EncodeToString([]byte("short"))},
		{name: "padded std encoding", cursor: base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := internal.DecodeCursor(tt.cursor)
			assert.ErrorIs(t, err, storagegate.ErrInvalidInput)
		})
	}
}

func TestBuildPage(t *testing.T) {
	t.Parallel()

	items := make([]storagegate.PendingObject, 4)
	for i := range items {
		items[i] = storagegate.PendingObject{ID: uuid.Must(uuid.NewV7())}
	}

	t.Run("more rows follow", func(t *testing.T) {
		page := internal.BuildPage(items, 3)
		require.Len(t, page.Items, 3)

		next, err := internal.DecodeCursor(page.NextCursor)
		require.NoError(t, err)
		assert.Equal(t, items[2].ID, next)
	})

	t.Run("last page", func(t *testing.T) {
		page := internal.BuildPage(items[:2], 3)
		assert.Len(t, page.Items, 2)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("empty", func(t *testing.T) {
		page := internal.BuildPage(nil, 3)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})

	t.Run("limit defaults", func(t *testing.T) {
		assert.Equal(t, storagegate.DefaultListLimit+1, internal.PageLimit(0))
		assert.Equal(t, storagegate.MaxListLimit+1, internal.PageLimit(1_000_000))
	})
}
