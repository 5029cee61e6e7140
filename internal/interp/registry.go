package interp

// Registry owns the per-entity buffers. Creation happens on first access and
// buffers are dropped explicitly when an entity despawns, so the map never
// grows without bound.
type Registry struct {
	buffers map[string]*Buffer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{buffers: make(map[string]*Buffer)}
}

// Ensure returns the buffer for entityID, creating it if needed.
func (r *Registry) Ensure(entityID string) *Buffer {
	if r.buffers == nil {
		r.buffers = make(map[string]*Buffer)
	}
	buf, ok := r.buffers[entityID]
	if !ok {
		buf = NewBuffer()
		r.buffers[entityID] = buf
	}
	return buf
}

// Lookup returns the buffer for entityID without creating one.
func (r *Registry) Lookup(entityID string) (*Buffer, bool) {
	buf, ok := r.buffers[entityID]
	return buf, ok
}

// Remove drops the buffer for a despawned entity.
func (r *Registry) Remove(entityID string) {
	delete(r.buffers, entityID)
}

// Len reports how many entities are currently tracked.
func (r *Registry) Len() int { return len(r.buffers) }
