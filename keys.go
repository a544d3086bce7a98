package storagegate

import (
	"fmt"
	"strings"
)

const manifestName = "manifest.json"

// KeyDeriver maps object references to canonical storage keys.
// All derivations are pure functions of their inputs and the environment tag.
type KeyDeriver struct {
	Env string
}

func NewKeyDeriver(env string) KeyDeriver {
	return KeyDeriver{Env: env}
}

// StaticKey derives the key of a static object:
//
//	static/env=<ENV>[/project_id=<PID>][/user_id=<UID>]/domain=<DOMAIN>/<RELATIVE_KEY>
//
// Project and user segments are present iff the ref sets them.
// The relative key is not validated here; see IsValidRelativeKey.
func (d KeyDeriver) StaticKey(ref StaticObjectRef) string {
	var b strings.Builder
	b.WriteString("static/env=")
	b.WriteString(d.Env)
	if ref.ProjectID != nil {
		b.WriteString("/project_id=")
		b.WriteString(*ref.ProjectID)
	}
	if ref.UserID != nil {
		b.WriteString("/user_id=")
		b.WriteString(*ref.UserID)
	}
	b.WriteString("/domain=")
	b.WriteString(ref.Domain)
	b.WriteString("/")
	b.WriteString(ref.RelativeKey)
	return b.String()
}

// GroupPrefix derives the common prefix of a dynamic group. The group must
// already carry its identifier and creation timestamp; the date partition is
// taken from CreatedAt in UTC.
func (d KeyDeriver) GroupPrefix(g DynamicObjectGroup) string {
	created := g.CreatedAt.UTC()
	return fmt.Sprintf("dynamic/env=%s/project_id=%s/years=%04d/months=%02d/days=%02d/domain=%s/category=%s/id=%s",
		d.Env,
		g.ProjectID,
		created.Year(),
		int(created.Month()),
		created.Day(),
		g.Domain,
		g.Category,
		g.ID.String(),
	)
}

// PendingObjectKey derives the full key of a group member. It is recomputed on
// every call from the group's stored prefix.
func (d KeyDeriver) PendingObjectKey(g DynamicObjectGroup, relativeKey string) string {
	return d.Env + "/" + g.CommonPrefix + "/" + relativeKey
}

// ManifestKey is where the JSON snapshot of a group is written.
func ManifestKey(g DynamicObjectGroup) string {
	return g.CommonPrefix + "/" + manifestName
}
