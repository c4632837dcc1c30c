package feature

// PopupRegistry holds the popup views contributed by feature modules,
// keyed by view id.
type PopupRegistry struct {
	byID  map[string]PopupView
	order []string
}

// NewPopupRegistry creates an empty popup view registry.
func NewPopupRegistry() *PopupRegistry {
	return &PopupRegistry{byID: make(map[string]PopupView)}
}

// Register adds a view. Returns *ErrDuplicateID if the id is taken.
func (r *PopupRegistry) Register(v PopupView) error {
	if _, exists := r.byID[v.ID]; exists {
		return &ErrDuplicateID{Kind: "popup view", ID: v.ID}
	}
	r.byID[v.ID] = v
	r.order = append(r.order, v.ID)
	return nil
}

// Unregister removes a view by id. Removing an absent id is a no-op.
func (r *PopupRegistry) Unregister(id string) {
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

// Get returns the view for id.
func (r *PopupRegistry) Get(id string) (PopupView, bool) {
	v, ok := r.byID[id]
	return v, ok
}

// All returns every registered view in registration order.
func (r *PopupRegistry) All() []PopupView {
	out := make([]PopupView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
