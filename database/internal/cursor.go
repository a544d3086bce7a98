// Package internal holds helpers shared by the catalog backends.
package internal

import (
	"encoding/base64"
	"fmt"

	"github.com/agdev/storagegate"
	"github.com/google/uuid"
)

// EncodeCursor encodes the id of the last row of a page. Identifiers are
// time-ordered, so the id alone is a stable keyset position.
func EncodeCursor(lastID uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(lastID[:])
}

// DecodeCursor reverses EncodeCursor. An empty cursor decodes to uuid.Nil,
// which sorts before every identifier.
func DecodeCursor(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode cursor: %w: %w", storagegate.ErrInvalidInput, err)
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode cursor: %w: %w", storagegate.ErrInvalidInput, err)
	}

	return id, nil
}

// PageLimit returns the limit to run a page query with. One extra row is
// fetched to learn whether another page follows.
func PageLimit(limit int) int {
	if limit <= 0 {
		limit = storagegate.DefaultListLimit
	}
	return min(limit, storagegate.MaxListLimit) + 1
}

// BuildPage trims the look-ahead row and sets NextCursor when more rows follow.
func BuildPage(items []storagegate.PendingObject, limit int) storagegate.PendingObjectPage {
	limit = PageLimit(limit) - 1
	page := storagegate.PendingObjectPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = EncodeCursor(page.Items[limit-1].ID)
	}
	if page.Items == nil {
		page.Items = []storagegate.PendingObject{}
	}
	return page
}
