package feature

// Registry holds the feature modules of one execution context, keyed by id.
// Registration order is preserved by All. Single-goroutine use; all three
// contexts are cooperatively scheduled around their own event source.
type Registry struct {
	byID  map[string]Module
	order []string
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Module)}
}

// Register adds a module. Returns *ErrDuplicateID if the id is taken; the
// existing registration is left intact.
func (r *Registry) Register(m Module) error {
	if _, exists := r.byID[m.ID()]; exists {
		return &ErrDuplicateID{Kind: "module", ID: m.ID()}
	}
	r.byID[m.ID()] = m
	r.order = append(r.order, m.ID())
	return nil
}

// Unregister removes a module by id. Removing an absent id is a no-op.
func (r *Registry) Unregister(id string) {
	if _, exists := r.byID[id]; !exists {
		return
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the module for id.
func (r *Registry) Get(id string) (Module, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Has reports whether a module with the given id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns every registered module in registration order.
func (r *Registry) All() []Module {
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
