package visualizer

import (
	"fmt"
	"log/slog"
	"sync"
)

// surfaceState is the per-surface half of the state machine. A surface is
// attached when its canvas exists; visible tracks the last reported
// intersection state and stays false until the first report arrives;
// active mirrors whether the canvas animation loop is running.
type surfaceState struct {
	container string
	canvas    Canvas
	visible   bool
	active    bool
}

// Manager decides, on every relevant event, which attached surfaces should
// be drawing. Safe for concurrent use: frequency data arrives on the
// bridge's delivery goroutine while control calls come from the agent.
type Manager struct {
	mu         sync.Mutex
	surfaces   map[Surface]*surfaceState
	running    bool
	target     Target
	style      Style
	newCanvas  CanvasFactory
	newTracker TrackerFactory
	tracker    Tracker
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a custom logger for the manager.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithTarget sets the initial target policy. Default: auto.
func WithTarget(t Target) ManagerOption {
	return func(m *Manager) { m.target = t }
}

// WithStyle sets the initial shared style. Default: bars.
func WithStyle(s Style) ManagerOption {
	return func(m *Manager) { m.style = s }
}

// NewManager creates a stopped Manager with no surfaces attached.
func NewManager(newCanvas CanvasFactory, newTracker TrackerFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		surfaces:   make(map[Surface]*surfaceState),
		target:     TargetAuto,
		style:      StyleBars,
		newCanvas:  newCanvas,
		newTracker: newTracker,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// AttachPlayerBar binds the player-bar surface to its container. The
// surface is attach-once; a second attach is ignored.
func (m *Manager) AttachPlayerBar(container string) error {
	return m.attach(SurfacePlayerBar, container)
}

// AttachSongArt binds the song-art surface to its container. Attach-once.
func (m *Manager) AttachSongArt(container string) error {
	return m.attach(SurfaceSongArt, container)
}

// AttachPiP binds the picture-in-picture surface. Unlike the other two it
// may attach and detach repeatedly as the floating window opens and
// closes.
func (m *Manager) AttachPiP(container string) error {
	return m.attach(SurfacePiP, container)
}

func (m *Manager) attach(surface Surface, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, attached := m.surfaces[surface]; attached {
		m.logger.Warn("surface already attached", "surface", surface)
		return nil
	}

	canvas, err := m.newCanvas(surface, container)
	if err != nil {
		return fmt.Errorf("visualizer: attach %s: %w", surface, err)
	}
	canvas.SetStyle(m.style)

	// Not visible until the tracker's first report for this container.
	m.surfaces[surface] = &surfaceState{container: container, canvas: canvas}

	if m.tracker != nil {
		m.tracker.Observe(container)
	}
	m.evaluateActive()
	return nil
}

// DetachPiP destroys the pip canvas, stops observing its container, and
// re-evaluates activation so a lower-priority surface can take over
// without a restart. Idempotent.
func (m *Manager) DetachPiP() {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, attached := m.surfaces[SurfacePiP]
	if !attached {
		return
	}
	if m.tracker != nil {
		m.tracker.Unobserve(st.container)
	}
	st.canvas.Destroy()
	delete(m.surfaces, SurfacePiP)
	m.evaluateActive()
}

// SetTarget updates the policy and re-evaluates activation immediately,
// without waiting for a new visibility event.
func (m *Manager) SetTarget(target Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = target
	m.evaluateActive()
}

// Target returns the current policy.
func (m *Manager) Target() Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// SetStyle updates the shared style on every attached canvas.
func (m *Manager) SetStyle(style Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = style
	for _, st := range m.surfaces {
		st.canvas.SetStyle(style)
	}
}

// Style returns the current shared style.
func (m *Manager) Style() Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// StartAll opens a session: builds the visibility tracker, observes every
// attached container, and evaluates activation.
func (m *Manager) StartAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.tracker = m.newTracker(m.onVisibility)
	for _, st := range m.surfaces {
		m.tracker.Observe(st.container)
	}
	m.evaluateActive()
}

// StopAll closes the session: tears down the tracker entirely and stops
// every surface's animation. Canvases are kept so a later StartAll resumes
// with the same attachments. Idempotent.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.running = false
	if m.tracker != nil {
		m.tracker.Close()
		m.tracker = nil
	}
	for _, st := range m.surfaces {
		if st.active {
			st.canvas.Stop()
			st.active = false
		}
	}
}

// DestroyAll implies StopAll and additionally destroys every canvas and
// clears all per-surface state; subsequent attaches start fresh.
// Idempotent, including on a never-started manager.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	for _, st := range m.surfaces {
		st.canvas.Destroy()
	}
	m.surfaces = make(map[Surface]*surfaceState)
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// UpdateFrequency fans new frequency data out to every attached surface
// unconditionally, so a stopped surface has fresh data the instant it is
// activated. A canvas in the stopped state must not draw on this call.
func (m *Manager) UpdateFrequency(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.surfaces {
		st.canvas.UpdateFrequency(data)
	}
}

// onVisibility applies one tracker batch: update every matching surface's
// visibility flag, then re-evaluate activation once for the whole batch.
func (m *Manager) onVisibility(batch VisibilityBatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.surfaces {
		if visible, reported := batch[st.container]; reported {
			st.visible = visible
		}
	}
	m.evaluateActive()
}

// evaluateActive reconciles each attached surface's animation state with
// the desired active-set. No-op outside a session. Auto requires the
// surface to be attached AND visible and picks the highest-priority
// qualifier as the sole active surface; explicit targets ignore visibility
// and gate on attachment alone. Detached surfaces are never touched.
// Callers hold m.mu.
func (m *Manager) evaluateActive() {
	if !m.running {
		return
	}

	desired := make(map[Surface]bool, len(m.surfaces))
	switch m.target {
	case TargetAll:
		for surface := range m.surfaces {
			desired[surface] = true
		}
	case TargetAuto:
		for _, surface := range autoPriority {
			if st, attached := m.surfaces[surface]; attached && st.visible {
				desired[surface] = true
				break
			}
		}
	default:
		if surface, ok := m.target.only(); ok {
			if _, attached := m.surfaces[surface]; attached {
				desired[surface] = true
			}
		}
	}

	for surface, st := range m.surfaces {
		switch {
		case desired[surface] && !st.active:
			st.canvas.Start()
			st.active = true
		case !desired[surface] && st.active:
			st.canvas.Stop()
			st.active = false
		}
	}
}

// ActiveSurfaces returns the surfaces currently drawing, for inspection.
func (m *Manager) ActiveSurfaces() []Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Surface
	for _, surface := range autoPriority {
		if st, ok := m.surfaces[surface]; ok && st.active {
			out = append(out, surface)
		}
	}
	return out
}
