// Package feature defines the module lifecycle contract shared by all three
// execution contexts (background daemon, page agent, popup surface) and the
// small registries that hold modules and their popup view contributions.
//
// Every context builds its own feature.Context and instantiates its own
// module set; modules are never shared across contexts. Cross-context
// interaction goes through the messaging package exclusively.
//
//	fctx := feature.NewContext(capability.Detect(nil))
//	if err := feature.Initialize(ctx, fctx, modules); err != nil {
//		logger.Error("module init failed", "error", err)
//	}
package feature

import (
	"context"
	"io"

	"github.com/muselink/muselink/capability"
)

// Module is one independently enabled feature unit. A module is constructed
// once per context at process start. Init is called iff the module is
// enabled at startup, or later on explicit enable; Destroy on disable or
// context teardown. Destroy must be idempotent and safe on never-started
// state.
type Module interface {
	// ID is the stable identifier, unique within a context's registry.
	ID() string
	Name() string
	Description() string

	Init(ctx context.Context) error
	Destroy()

	Enabled() bool
	// SetEnabled flips the flag only; the caller is expected to follow up
	// with Init or Destroy as appropriate.
	SetEnabled(enabled bool)
}

// PopupContributor is implemented by modules that contribute popup views.
type PopupContributor interface {
	PopupViews() []PopupView
}

// PopupView is a stateless UI contribution rendered only at popup-open
// time. Render writes the view into the container the popup surface
// provides.
type PopupView struct {
	ID     string
	Label  string
	Render func(ctx context.Context, w io.Writer) error
}

// Context composes the per-context registries, the event bus, and a
// capability snapshot taken once at creation. It lives for the lifetime of
// its execution context and is never explicitly torn down.
type Context struct {
	Modules      *Registry
	Popup        *PopupRegistry
	Events       *Bus
	Capabilities capability.Snapshot
}

// NewContext creates the process-wide context handle.
func NewContext(caps capability.Snapshot) *Context {
	return &Context{
		Modules:      NewRegistry(),
		Popup:        NewPopupRegistry(),
		Events:       NewBus(),
		Capabilities: caps,
	}
}

// Initialize registers and starts a module list in strict order: register
// the module (a duplicate id aborts immediately), register its popup views,
// then Init iff the module reports itself enabled. An Init error is
// propagated to the caller; whether to log-and-continue or abort is the
// entry point's decision, not this sequencer's.
func Initialize(ctx context.Context, fctx *Context, modules []Module) error {
	for _, m := range modules {
		if err := fctx.Modules.Register(m); err != nil {
			return err
		}

		if pc, ok := m.(PopupContributor); ok {
			for _, view := range pc.PopupViews() {
				if err := fctx.Popup.Register(view); err != nil {
					return err
				}
			}
		}

		if m.Enabled() {
			if err := m.Init(ctx); err != nil {
				return &ErrInitFailed{Module: m.ID(), Cause: err}
			}
		}
	}
	return nil
}
