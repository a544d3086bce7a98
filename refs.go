package storagegate

// ObjectRef is a resolved reference to a stored object. The set of
// implementations is closed: StaticRef and PendingRef.
type ObjectRef interface {
	// FullKey returns the storage key of the object.
	FullKey() string
	// Domain returns the domain governing access to the object.
	Domain() string
	// Owner returns the owning user id, or "" when none is recorded.
	Owner() string
	// Endpoint returns the store holding the object.
	Endpoint() StorageEndpoint

	objectRef()
}

// StaticRef is a static object reference bound to an endpoint.
type StaticRef struct {
	ref      StaticObjectRef
	key      string
	endpoint StorageEndpoint
}

// ResolveStatic binds a static reference to its key and endpoint.
func (d KeyDeriver) ResolveStatic(ref StaticObjectRef, endpoint StorageEndpoint) StaticRef {
	return StaticRef{ref: ref, key: d.StaticKey(ref), endpoint: endpoint}
}

func (r StaticRef) FullKey() string           { return r.key }
func (r StaticRef) Domain() string            { return r.ref.Domain }
func (r StaticRef) Endpoint() StorageEndpoint { return r.endpoint }
func (r StaticRef) objectRef()                {}

func (r StaticRef) Owner() string {
	if r.ref.UserID == nil {
		return ""
	}
	return *r.ref.UserID
}

// PendingRef is a group member bound to its group and endpoint.
type PendingRef struct {
	deriver  KeyDeriver
	object   PendingObject
	group    DynamicObjectGroup
	endpoint StorageEndpoint
}

// ResolvePending binds a pending object to its group and endpoint.
func (d KeyDeriver) ResolvePending(g DynamicObjectGroup, o PendingObject, endpoint StorageEndpoint) PendingRef {
	return PendingRef{deriver: d, object: o, group: g, endpoint: endpoint}
}

func (r PendingRef) FullKey() string {
	return r.deriver.PendingObjectKey(r.group, r.object.RelativeKey)
}

func (r PendingRef) Domain() string            { return r.group.Domain }
func (r PendingRef) Owner() string             { return r.group.UserID }
func (r PendingRef) Endpoint() StorageEndpoint { return r.endpoint }
func (r PendingRef) Object() PendingObject     { return r.object }
func (r PendingRef) objectRef()                {}
