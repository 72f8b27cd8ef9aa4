package api

import "math"

// Point is a 2D coordinate, either in screen space or in world (canvas) space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in world space.
type Rect struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Viewport is the canvas pan/zoom transform. A world point w is drawn at
// screen position w*Zoom + (X, Y).
//
// Viewport is a value type: every operation returns a new Viewport and
// leaves the receiver untouched.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ZoomBounds is the inclusive range zoom is clamped into.
type ZoomBounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

const (
	DefaultZoomMin = 0.2
	DefaultZoomMax = 4.0
)

// DefaultZoomBounds returns the bounds used when none are configured.
func DefaultZoomBounds() ZoomBounds {
	return ZoomBounds{Min: DefaultZoomMin, Max: DefaultZoomMax}
}

// DefaultViewport is the viewport a canvas mounts with.
func DefaultViewport() Viewport {
	return Viewport{X: 0, Y: 0, Zoom: 1}
}

// Valid reports whether b describes a usable, strictly positive range.
func (b ZoomBounds) Valid() bool {
	return b.Min > 0 && b.Max >= b.Min && !math.IsInf(b.Max, 0) && !math.IsNaN(b.Min) && !math.IsNaN(b.Max)
}

// Clamp returns z limited to [Min, Max]. NaN clamps to Min.
func (b ZoomBounds) Clamp(z float64) float64 {
	if math.IsNaN(z) || z < b.Min {
		return b.Min
	}
	if z > b.Max {
		return b.Max
	}
	return z
}

// Pan returns a viewport shifted by (dx, dy) screen pixels.
func (v Viewport) Pan(dx, dy float64) Viewport {
	return Viewport{X: v.X + dx, Y: v.Y + dy, Zoom: v.Zoom}
}

// ZoomTo returns a viewport with the given zoom level, clamped into bounds,
// keeping the screen position of anchor fixed.
func (v Viewport) ZoomTo(zoom float64, anchor Point, bounds ZoomBounds) Viewport {
	v = v.Normalize(bounds)
	next := bounds.Clamp(zoom)
	ratio := next / v.Zoom
	return Viewport{
		X:    anchor.X - (anchor.X-v.X)*ratio,
		Y:    anchor.Y - (anchor.Y-v.Y)*ratio,
		Zoom: next,
	}
}

// ZoomBy multiplies the current zoom by factor around anchor.
func (v Viewport) ZoomBy(factor float64, anchor Point, bounds ZoomBounds) Viewport {
	v = v.Normalize(bounds)
	return v.ZoomTo(v.Zoom*factor, anchor, bounds)
}

// ToWorld maps a screen point into world coordinates.
func (v Viewport) ToWorld(screen Point) Point {
	return Point{
		X: (screen.X - v.X) / v.Zoom,
		Y: (screen.Y - v.Y) / v.Zoom,
	}
}

// ToScreen maps a world point into screen coordinates.
func (v Viewport) ToScreen(world Point) Point {
	return Point{
		X: world.X*v.Zoom + v.X,
		Y: world.Y*v.Zoom + v.Y,
	}
}

// Normalize repairs a viewport read from an untrusted source: a zoom that is
// not strictly positive resets to 1 before clamping, and non-finite offsets
// reset to 0.
func (v Viewport) Normalize(bounds ZoomBounds) Viewport {
	if math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) || v.Zoom <= 0 {
		v.Zoom = 1
	}
	v.Zoom = bounds.Clamp(v.Zoom)
	if math.IsNaN(v.X) || math.IsInf(v.X, 0) {
		v.X = 0
	}
	if math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
		v.Y = 0
	}
	return v
}

// FitToView returns the viewport that centers rect inside a canvas of the
// given size, leaving padding screen pixels on every side. The resulting
// zoom is clamped into bounds and never exceeds 1, so small graphs are not
// blown up.
func FitToView(rect Rect, canvas Size, padding float64, bounds ZoomBounds) Viewport {
	w := rect.Max.X - rect.Min.X
	h := rect.Max.Y - rect.Min.Y
	availW := canvas.Width - 2*padding
	availH := canvas.Height - 2*padding
	if w <= 0 || h <= 0 || availW <= 0 || availH <= 0 {
		return DefaultViewport().Normalize(bounds)
	}

	zoom := math.Min(math.Min(availW/w, availH/h), 1)
	zoom = bounds.Clamp(zoom)

	center := Point{X: rect.Min.X + w/2, Y: rect.Min.Y + h/2}
	return Viewport{
		X:    canvas.Width/2 - center.X*zoom,
		Y:    canvas.Height/2 - center.Y*zoom,
		Zoom: zoom,
	}
}
