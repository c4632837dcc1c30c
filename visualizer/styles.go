package visualizer

import (
	"image"
	"image/color"
	"math"
)

// overlayColor matches the page overlay: white at 60% alpha.
var overlayColor = color.NRGBA{R: 255, G: 255, B: 255, A: 153}

// StyleRenderer draws one frame of frequency data (0..255 bins) into img.
type StyleRenderer func(img *image.RGBA, data []byte)

// Renderer returns the renderer for a style, defaulting to bars.
func Renderer(style Style) StyleRenderer {
	switch style {
	case StyleWaveform:
		return DrawWaveform
	case StyleCircular:
		return DrawCircular
	}
	return DrawBars
}

// DrawBars renders one vertical bar per bin, scaled to the frame height.
func DrawBars(img *image.RGBA, data []byte) {
	clearFrame(img)
	if len(data) == 0 {
		return
	}
	w, h := size(img)
	barWidth := float64(w) / float64(len(data))

	for i, v := range data {
		barHeight := int(float64(v) / 255 * float64(h))
		x0 := int(float64(i) * barWidth)
		x1 := int(float64(i+1)*barWidth) - 1
		fillRect(img, x0, h-barHeight, x1, h)
	}
}

// DrawWaveform renders the bins as a connected line across the frame.
func DrawWaveform(img *image.RGBA, data []byte) {
	clearFrame(img)
	if len(data) < 2 {
		return
	}
	w, h := size(img)
	sliceWidth := float64(w) / float64(len(data)-1)

	prevX := 0
	prevY := h - int(float64(data[0])/255*float64(h))
	for i := 1; i < len(data); i++ {
		x := int(float64(i) * sliceWidth)
		y := h - int(float64(data[i])/255*float64(h))
		drawLine(img, prevX, prevY, x, y)
		prevX, prevY = x, y
	}
}

// DrawCircular renders each bin as a radial spoke extending from a base
// ring, the classic circular spectrum.
func DrawCircular(img *image.RGBA, data []byte) {
	clearFrame(img)
	if len(data) == 0 {
		return
	}
	w, h := size(img)
	cx, cy := float64(w)/2, float64(h)/2
	minDim := math.Min(float64(w), float64(h))
	baseRadius := minDim * 0.25
	maxExtension := minDim * 0.2

	for i, v := range data {
		angle := float64(i)/float64(len(data))*2*math.Pi - math.Pi/2
		extension := float64(v) / 255 * maxExtension
		x0 := cx + math.Cos(angle)*baseRadius
		y0 := cy + math.Sin(angle)*baseRadius
		x1 := cx + math.Cos(angle)*(baseRadius+extension)
		y1 := cy + math.Sin(angle)*(baseRadius+extension)
		drawLine(img, int(x0), int(y0), int(x1), int(y1))
	}
}

func size(img *image.RGBA) (w, h int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func clearFrame(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

func setPixel(img *image.RGBA, x, y int) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}
	img.Set(x, y, overlayColor)
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x <= x1; x++ {
			setPixel(img, x, y)
		}
	}
}

// drawLine plots a straight segment with the integer Bresenham walk.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		setPixel(img, x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
