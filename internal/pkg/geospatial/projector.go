package geospatial

import "github.com/kabina/kabinaview/internal/core/domain"

// Projector maps coordinates linearly onto a fixed canvas. Margin insets the
// drawing rectangle on every side.
type Projector struct {
	Box    domain.BoundingBox
	Width  int
	Height int
	Margin int
}

// NewProjector builds a projector for a canvas of width x height pixels.
func NewProjector(box domain.BoundingBox, width, height, margin int) Projector {
	return Projector{Box: box, Width: width, Height: height, Margin: margin}
}

// Project returns the canvas position of c with latitude growing upward.
// Coordinates outside the box extrapolate; the renderer clips them.
func (p Projector) Project(c domain.GeoCoordinate) domain.PixelPoint {
	tx := (c.Lon - p.Box.MinLon) / (p.Box.MaxLon - p.Box.MinLon)
	ty := (c.Lat - p.Box.MinLat) / (p.Box.MaxLat - p.Box.MinLat)
	usableW := float64(p.Width - 2*p.Margin)
	usableH := float64(p.Height - 2*p.Margin)
	return domain.PixelPoint{
		X: int(float64(p.Margin) + tx*usableW),
		Y: int(float64(p.Margin) + ty*usableH),
	}
}

// ProjectScreen projects c and flips it into screen space.
func (p Projector) ProjectScreen(c domain.GeoCoordinate) domain.PixelPoint {
	return p.Project(c).Screen(p.Height)
}

// InBox reports whether c lies inside the configured box.
func (p Projector) InBox(c domain.GeoCoordinate) bool {
	return p.Box.Contains(c)
}
