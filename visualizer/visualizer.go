// Package visualizer owns the audio-reactive overlay: up to three
// rendering surfaces (player bar, song art, picture-in-picture), a
// visibility tracker over their containers, and the target policy that
// decides which subset of surfaces is actively drawing at any instant.
//
// The Manager is a state machine, not a renderer: canvases and the
// visibility tracker come in through factories so the page-world
// implementations and the test fakes are interchangeable.
package visualizer

// Surface identifies one independent rendering target.
type Surface string

const (
	SurfacePlayerBar Surface = "player-bar"
	SurfaceSongArt   Surface = "song-art"
	SurfacePiP       Surface = "pip"
)

// autoPriority orders surfaces for the auto target policy, highest first.
var autoPriority = []Surface{SurfacePiP, SurfaceSongArt, SurfacePlayerBar}

// Target is the user-selected rule for which surface(s) should be active.
type Target string

const (
	TargetAuto          Target = "auto"
	TargetAll           Target = "all"
	TargetPiPOnly       Target = "pip-only"
	TargetSongArtOnly   Target = "song-art-only"
	TargetPlayerBarOnly Target = "player-bar-only"
)

// ValidTarget reports whether s names a known target policy.
func ValidTarget(s string) bool {
	switch Target(s) {
	case TargetAuto, TargetAll, TargetPiPOnly, TargetSongArtOnly, TargetPlayerBarOnly:
		return true
	}
	return false
}

// only maps an explicit single-surface target to its surface.
func (t Target) only() (Surface, bool) {
	switch t {
	case TargetPiPOnly:
		return SurfacePiP, true
	case TargetSongArtOnly:
		return SurfaceSongArt, true
	case TargetPlayerBarOnly:
		return SurfacePlayerBar, true
	}
	return "", false
}

// Style selects the shared visual style applied to every surface.
type Style string

const (
	StyleBars     Style = "bars"
	StyleWaveform Style = "waveform"
	StyleCircular Style = "circular"
)

// ValidStyle reports whether s names a known style.
func ValidStyle(s string) bool {
	switch Style(s) {
	case StyleBars, StyleWaveform, StyleCircular:
		return true
	}
	return false
}

// Canvas is one surface's drawing layer. Start begins its animation loop,
// Stop cancels any pending frame, Destroy releases it entirely. A stopped
// canvas still accepts UpdateFrequency so it has fresh data the instant it
// is started.
type Canvas interface {
	SetStyle(style Style)
	UpdateFrequency(data []byte)
	Start()
	Stop()
	Destroy()
}

// CanvasFactory creates the canvas for a surface bound to a container.
type CanvasFactory func(surface Surface, container string) (Canvas, error)

// Tracker observes container visibility and reports changes in batches
// through the callback its factory received. Close tears the tracker down;
// no callbacks fire afterwards.
type Tracker interface {
	Observe(container string)
	Unobserve(container string)
	Close()
}

// VisibilityBatch maps container ids to their reported intersection state.
type VisibilityBatch map[string]bool

// TrackerFactory creates a visibility tracker delivering batches to fn.
type TrackerFactory func(fn func(VisibilityBatch)) Tracker
