package geospatial

import "github.com/kabina/kabinaview/internal/core/domain"

// Magnification bounds. Values are powers of two.
const (
	MinMagnification = 1
	MaxMagnification = 16
)

// Viewport performs pan/zoom arithmetic over a full canvas.
type Viewport struct {
	FullWidth  int
	FullHeight int
}

// Crop returns the visible rectangle for pan and magnification. The pan is
// clamped so the rectangle stays inside the canvas.
func Crop(fullW, fullH int, panX, panY, magnification int) domain.Rect {
	mag := normalizeMagnification(magnification)
	w, h := fullW/mag, fullH/mag
	return domain.Rect{
		X:      clamp(panX, 0, fullW-w),
		Y:      clamp(panY, 0, fullH-h),
		Width:  w,
		Height: h,
	}
}

// Crop returns the visible rectangle of s.
func (v Viewport) Crop(s domain.ViewportState) domain.Rect {
	return Crop(v.FullWidth, v.FullHeight, s.PanX, s.PanY, s.Magnification)
}

// Clamp forces s back inside the invariant 0 <= pan <= full - visible.
func (v Viewport) Clamp(s domain.ViewportState) domain.ViewportState {
	s.Magnification = normalizeMagnification(s.Magnification)
	r := v.Crop(s)
	s.PanX, s.PanY = r.X, r.Y
	return s
}

// ZoomIn doubles the magnification up to MaxMagnification.
func (v Viewport) ZoomIn(s domain.ViewportState) domain.ViewportState {
	s = v.Clamp(s)
	if s.Magnification < MaxMagnification {
		s.Magnification *= 2
	}
	return v.Clamp(s)
}

// ZoomOut halves the magnification down to MinMagnification. A view touching
// the right or bottom edge snaps back by one visible size first.
func (v Viewport) ZoomOut(s domain.ViewportState) domain.ViewportState {
	s = v.Clamp(s)
	if s.Magnification <= MinMagnification {
		return s
	}
	w, h := v.FullWidth/s.Magnification, v.FullHeight/s.Magnification
	if s.PanY+h+1 > v.FullHeight {
		s.PanY -= h
	}
	if s.PanX+w+1 > v.FullWidth {
		s.PanX -= w
	}
	s.Magnification /= 2
	return v.Clamp(s)
}

// Pan moves the view by one visible size, stopping at the canvas edge.
func (v Viewport) Pan(s domain.ViewportState, d domain.Direction) domain.ViewportState {
	s = v.Clamp(s)
	w, h := v.FullWidth/s.Magnification, v.FullHeight/s.Magnification
	switch d {
	case domain.Up:
		s.PanY -= h
	case domain.Down:
		s.PanY += h
	case domain.Left:
		s.PanX -= w
	case domain.Right:
		s.PanX += w
	}
	return v.Clamp(s)
}

func normalizeMagnification(m int) int {
	switch {
	case m <= MinMagnification:
		return MinMagnification
	case m >= MaxMagnification:
		return MaxMagnification
	}
	p := MinMagnification
	for p*2 <= m {
		p *= 2
	}
	return p
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
