package visualizer

import (
	"errors"
	"image"
	"testing"
)

type fakeCanvas struct {
	surface   Surface
	style     Style
	data      []byte
	running   bool
	destroyed bool
	starts    int
	updates   int
}

func (c *fakeCanvas) SetStyle(style Style) { c.style = style }
func (c *fakeCanvas) Start()               { c.running = true; c.starts++ }
func (c *fakeCanvas) Stop()                { c.running = false }
func (c *fakeCanvas) Destroy()             { c.running = false; c.destroyed = true }

func (c *fakeCanvas) UpdateFrequency(data []byte) {
	c.data = append(c.data[:0], data...)
	c.updates++
}

type fakeTracker struct {
	observed map[string]bool
	closed   bool
}

func (t *fakeTracker) Observe(container string)   { t.observed[container] = true }
func (t *fakeTracker) Unobserve(container string) { delete(t.observed, container) }
func (t *fakeTracker) Close()                     { t.closed = true }

type managerHarness struct {
	manager  *Manager
	canvases map[Surface]*fakeCanvas
	tracker  *fakeTracker
	report   func(VisibilityBatch)
}

func newManagerHarness(t *testing.T, opts ...ManagerOption) *managerHarness {
	t.Helper()
	h := &managerHarness{canvases: make(map[Surface]*fakeCanvas)}

	newCanvas := func(surface Surface, container string) (Canvas, error) {
		c := &fakeCanvas{surface: surface}
		h.canvases[surface] = c
		return c, nil
	}
	newTracker := func(fn func(VisibilityBatch)) Tracker {
		h.tracker = &fakeTracker{observed: make(map[string]bool)}
		h.report = fn
		return h.tracker
	}

	h.manager = NewManager(newCanvas, newTracker, opts...)
	return h
}

func (h *managerHarness) attachAll(t *testing.T) {
	t.Helper()
	if err := h.manager.AttachPlayerBar("bar"); err != nil {
		t.Fatalf("attach player bar: %v", err)
	}
	if err := h.manager.AttachSongArt("art"); err != nil {
		t.Fatalf("attach song art: %v", err)
	}
	if err := h.manager.AttachPiP("pip"); err != nil {
		t.Fatalf("attach pip: %v", err)
	}
}

func (h *managerHarness) running() []Surface {
	var out []Surface
	for _, surface := range []Surface{SurfacePiP, SurfaceSongArt, SurfacePlayerBar} {
		if c, ok := h.canvases[surface]; ok && c.running {
			out = append(out, surface)
		}
	}
	return out
}

func TestAutoPicksHighestPriorityVisibleSurface(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()

	// Nothing has reported visible yet, so nothing draws.
	if got := h.running(); len(got) != 0 {
		t.Fatalf("active before visibility = %v", got)
	}

	h.report(VisibilityBatch{"bar": true, "art": true, "pip": true})
	if got := h.running(); len(got) != 1 || got[0] != SurfacePiP {
		t.Errorf("active = %v, want pip only", got)
	}

	// Pip scrolled out; song art is next in priority.
	h.report(VisibilityBatch{"pip": false})
	if got := h.running(); len(got) != 1 || got[0] != SurfaceSongArt {
		t.Errorf("active = %v, want song-art only", got)
	}
}

func TestDetachPiPHandsOverWithoutRestart(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.report(VisibilityBatch{"bar": true, "art": true, "pip": true})

	h.manager.DetachPiP()
	if !h.canvases[SurfacePiP].destroyed {
		t.Error("pip canvas not destroyed on detach")
	}
	if _, observed := h.tracker.observed["pip"]; observed {
		t.Error("pip container still observed after detach")
	}
	if got := h.running(); len(got) != 1 || got[0] != SurfaceSongArt {
		t.Errorf("active after detach = %v, want song-art", got)
	}

	// Idempotent.
	h.manager.DetachPiP()
}

func TestExplicitTargetIgnoresVisibility(t *testing.T) {
	h := newManagerHarness(t, WithTarget(TargetPlayerBarOnly))
	h.attachAll(t)
	h.manager.StartAll()

	// No visibility report at all; the explicit target draws anyway.
	if got := h.running(); len(got) != 1 || got[0] != SurfacePlayerBar {
		t.Errorf("active = %v, want player-bar", got)
	}

	h.report(VisibilityBatch{"bar": false})
	if got := h.running(); len(got) != 1 || got[0] != SurfacePlayerBar {
		t.Errorf("active after not-visible report = %v, want player-bar", got)
	}
}

func TestTargetAllActivatesEveryAttachedSurface(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.manager.SetTarget(TargetAll)

	if got := h.running(); len(got) != 3 {
		t.Errorf("active = %v, want all three", got)
	}
}

func TestSetTargetReevaluatesImmediately(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.report(VisibilityBatch{"bar": true})

	if got := h.running(); len(got) != 1 || got[0] != SurfacePlayerBar {
		t.Fatalf("auto active = %v", got)
	}

	h.manager.SetTarget(TargetSongArtOnly)
	if got := h.running(); len(got) != 1 || got[0] != SurfaceSongArt {
		t.Errorf("active after target switch = %v, want song-art", got)
	}
	if h.canvases[SurfacePlayerBar].running {
		t.Error("previous surface kept drawing after target switch")
	}
}

func TestUpdateFrequencyReachesStoppedSurfaces(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.report(VisibilityBatch{"pip": true})

	h.manager.UpdateFrequency([]byte{1, 2, 3})
	for surface, c := range h.canvases {
		if c.updates != 1 {
			t.Errorf("surface %s updates = %d, want 1", surface, c.updates)
		}
	}
}

func TestStopAllKeepsAttachmentsForRestart(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.report(VisibilityBatch{"pip": true})

	h.manager.StopAll()
	if !h.tracker.closed {
		t.Error("tracker not closed on stop")
	}
	if got := h.running(); len(got) != 0 {
		t.Errorf("active after stop = %v", got)
	}
	h.manager.StopAll()

	// Restart resumes with the same canvases; visibility starts over.
	h.manager.StartAll()
	h.report(VisibilityBatch{"art": true})
	if got := h.running(); len(got) != 1 || got[0] != SurfaceSongArt {
		t.Errorf("active after restart = %v, want song-art", got)
	}
	if h.canvases[SurfaceSongArt].destroyed {
		t.Error("canvas destroyed by stop")
	}
}

func TestDestroyAllClearsSurfaces(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.StartAll()
	h.manager.DestroyAll()

	for surface, c := range h.canvases {
		if !c.destroyed {
			t.Errorf("surface %s not destroyed", surface)
		}
	}
	if h.manager.Running() {
		t.Error("manager still running after destroy")
	}
	h.manager.DestroyAll()

	// Surfaces may re-attach fresh afterwards.
	if err := h.manager.AttachPiP("pip"); err != nil {
		t.Fatalf("re-attach after destroy: %v", err)
	}
}

func TestAttachIsOnceAndPropagatesFactoryError(t *testing.T) {
	h := newManagerHarness(t)
	if err := h.manager.AttachSongArt("art"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	first := h.canvases[SurfaceSongArt]
	if err := h.manager.AttachSongArt("art-2"); err != nil {
		t.Fatalf("second attach: %v", err)
	}
	if h.canvases[SurfaceSongArt] != first {
		t.Error("second attach replaced the canvas")
	}

	factoryErr := errors.New("container missing")
	m := NewManager(
		func(Surface, string) (Canvas, error) { return nil, factoryErr },
		func(fn func(VisibilityBatch)) Tracker {
			return &fakeTracker{observed: make(map[string]bool)}
		})
	if err := m.AttachPlayerBar("bar"); !errors.Is(err, factoryErr) {
		t.Errorf("attach error = %v", err)
	}
}

func TestSetStyleAppliesToEveryCanvas(t *testing.T) {
	h := newManagerHarness(t)
	h.attachAll(t)
	h.manager.SetStyle(StyleCircular)

	for surface, c := range h.canvases {
		if c.style != StyleCircular {
			t.Errorf("surface %s style = %s", surface, c.style)
		}
	}
	if h.manager.Style() != StyleCircular {
		t.Errorf("manager style = %s", h.manager.Style())
	}
}

// manualScheduler fires frames only when the test says so.
type manualScheduler struct {
	pending  func()
	canceled bool
}

func (s *manualScheduler) Schedule(fn func()) (cancel func()) {
	s.pending = fn
	s.canceled = false
	return func() { s.canceled = true; s.pending = nil }
}

func (s *manualScheduler) fire() {
	if fn := s.pending; fn != nil {
		s.pending = nil
		fn()
	}
}

func TestFrameCanvasDrawsOnlyWhileRunning(t *testing.T) {
	sched := &manualScheduler{}
	var frames int
	c := NewFrameCanvas(16, 8, sched, func(*image.RGBA) { frames++ })

	c.UpdateFrequency([]byte{255, 128, 0})
	if frames != 0 {
		t.Fatal("data alone must not draw")
	}

	c.Start()
	sched.fire()
	sched.fire()
	if frames != 2 {
		t.Errorf("frames = %d, want 2", frames)
	}

	c.Stop()
	if !sched.canceled {
		t.Error("pending frame not canceled on stop")
	}
	sched.fire()
	if frames != 2 {
		t.Error("frame landed after stop")
	}
}

func TestRendererFallsBackToBars(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	Renderer(Style("unknown"))(img, []byte{255, 255})

	lit := false
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			lit = true
			break
		}
	}
	if !lit {
		t.Error("fallback renderer drew nothing for full-scale bins")
	}
}
