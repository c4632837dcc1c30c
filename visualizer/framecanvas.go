package visualizer

import (
	"image"
	"sync"
	"time"
)

// FrameScheduler abstracts the host's frame-presentation callback.
// Schedule requests exactly one callback and returns a cancel function;
// the canvas re-schedules from inside the callback to form its loop.
type FrameScheduler interface {
	Schedule(fn func()) (cancel func())
}

// TickerScheduler drives frames off a wall-clock interval, the software
// stand-in for a display's vsync callback.
type TickerScheduler struct {
	Interval time.Duration
}

// Schedule fires fn once after the interval.
func (s TickerScheduler) Schedule(fn func()) (cancel func()) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	t := time.AfterFunc(interval, fn)
	return func() { t.Stop() }
}

// FrameSink receives finished frames from a FrameCanvas. The page-world
// canvas pushes them into the overlay element; tests capture them.
type FrameSink func(img *image.RGBA)

// FrameCanvas renders the current style into an in-memory RGBA frame on
// every scheduled frame while started. Stopping cancels the pending frame
// so no extra draw can land after Stop returns.
type FrameCanvas struct {
	mu        sync.Mutex
	img       *image.RGBA
	style     Style
	data      []byte
	running   bool
	cancel    func()
	scheduler FrameScheduler
	sink      FrameSink
}

// NewFrameCanvas creates a stopped canvas with a width×height frame.
func NewFrameCanvas(width, height int, scheduler FrameScheduler, sink FrameSink) *FrameCanvas {
	return &FrameCanvas{
		img:       image.NewRGBA(image.Rect(0, 0, width, height)),
		style:     StyleBars,
		scheduler: scheduler,
		sink:      sink,
	}
}

// SetStyle switches the renderer used for subsequent frames.
func (c *FrameCanvas) SetStyle(style Style) {
	c.mu.Lock()
	c.style = style
	c.mu.Unlock()
}

// UpdateFrequency stores the latest bins. It never draws by itself; a
// stopped canvas just holds the data for its next start.
func (c *FrameCanvas) UpdateFrequency(data []byte) {
	c.mu.Lock()
	c.data = append(c.data[:0], data...)
	c.mu.Unlock()
}

// Start begins the frame loop. Restarting an already running canvas
// resets its pending frame.
func (c *FrameCanvas) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.running = true
	c.cancel = c.scheduler.Schedule(c.tick)
}

// Stop cancels the pending frame and clears the buffer.
func (c *FrameCanvas) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	clearFrame(c.img)
}

func (c *FrameCanvas) stopLocked() {
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Destroy stops the canvas and drops its frame. Safe to call repeatedly
// and on a never-started canvas.
func (c *FrameCanvas) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// tick draws one frame and schedules the next, unless stopped in between.
func (c *FrameCanvas) tick() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	Renderer(c.style)(c.img, c.data)
	frame := c.img
	sink := c.sink
	c.cancel = c.scheduler.Schedule(c.tick)
	c.mu.Unlock()

	if sink != nil {
		sink(frame)
	}
}
