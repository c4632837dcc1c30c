package pageagent

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/muselink/muselink/visualizer"
)

// rodCanvas renders frames in-process through a FrameCanvas and pushes
// each finished frame into an overlay image element positioned over the
// surface's container. Encoding stays on this side of the wire; the page
// only ever swaps an image source.
type rodCanvas struct {
	*visualizer.FrameCanvas
	page    *rod.Page
	overlay string
	logger  *slog.Logger
}

const overlayMountJS = `(selector, overlayId) => {
	const host = document.querySelector(selector);
	if (!host) throw new Error("container not found: " + selector);
	if (document.getElementById(overlayId)) return;
	const img = document.createElement("img");
	img.id = overlayId;
	img.style.cssText = "position:absolute;inset:0;width:100%;height:100%;pointer-events:none;z-index:40";
	if (getComputedStyle(host).position === "static") host.style.position = "relative";
	host.appendChild(img);
}`

// NewCanvasFactory returns the visualizer canvas factory for one page.
// Frame size follows the original overlay canvases.
func NewCanvasFactory(page *rod.Page, logger *slog.Logger) visualizer.CanvasFactory {
	return func(surface visualizer.Surface, container string) (visualizer.Canvas, error) {
		overlay := fmt.Sprintf("muselink-overlay-%s", surface)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := page.Context(ctx).Eval(overlayMountJS, container, overlay); err != nil {
			return nil, fmt.Errorf("pageagent: mount overlay for %s: %w", surface, err)
		}

		c := &rodCanvas{page: page, overlay: overlay, logger: logger}
		c.FrameCanvas = visualizer.NewFrameCanvas(256, 64,
			visualizer.TickerScheduler{Interval: time.Second / 30}, c.push)
		return c, nil
	}
}

// push delivers one finished frame as a PNG data URL.
func (c *rodCanvas) push(img *image.RGBA) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.logger.Debug("encode overlay frame", "error", err)
		return
	}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	_, err := c.page.Eval(
		`(overlayId, url) => { const el = document.getElementById(overlayId); if (el) el.src = url; }`,
		c.overlay, url)
	if err != nil {
		c.logger.Debug("push overlay frame", "error", err)
	}
}

// Destroy stops the frame loop and removes the overlay element.
func (c *rodCanvas) Destroy() {
	c.FrameCanvas.Destroy()
	_, err := c.page.Eval(
		`(overlayId) => { const el = document.getElementById(overlayId); if (el) el.remove(); }`,
		c.overlay)
	if err != nil {
		c.logger.Debug("remove overlay", "error", err)
	}
}
