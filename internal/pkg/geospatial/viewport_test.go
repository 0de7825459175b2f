package geospatial_test

import (
	"math/rand"
	"testing"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
)

func assertInside(t *testing.T, v geospatial.Viewport, s domain.ViewportState) {
	t.Helper()
	w, h := v.FullWidth/s.Magnification, v.FullHeight/s.Magnification
	if s.PanX < 0 || s.PanX > v.FullWidth-w {
		t.Fatalf("panX %d outside [0,%d] at magnification %d", s.PanX, v.FullWidth-w, s.Magnification)
	}
	if s.PanY < 0 || s.PanY > v.FullHeight-h {
		t.Fatalf("panY %d outside [0,%d] at magnification %d", s.PanY, v.FullHeight-h, s.Magnification)
	}
}

func TestViewport_ZoomBounds(t *testing.T) {
	v := geospatial.Viewport{FullWidth: 1600, FullHeight: 1600}
	s := domain.FullExtent()

	for i := 0; i < 10; i++ {
		s = v.ZoomIn(s)
	}
	if s.Magnification != geospatial.MaxMagnification {
		t.Errorf("expected magnification capped at 16, got %d", s.Magnification)
	}
	for i := 0; i < 10; i++ {
		s = v.ZoomOut(s)
	}
	if s.Magnification != geospatial.MinMagnification {
		t.Errorf("expected magnification floored at 1, got %d", s.Magnification)
	}
}

func TestViewport_PanClampsAtEdges(t *testing.T) {
	v := geospatial.Viewport{FullWidth: 1600, FullHeight: 1200}
	s := v.ZoomIn(domain.FullExtent()) // visible 800x600

	s = v.Pan(s, domain.Left)
	if s.PanX != 0 {
		t.Errorf("pan left from origin should clamp to 0, got %d", s.PanX)
	}
	s = v.Pan(s, domain.Right)
	s = v.Pan(s, domain.Right)
	if s.PanX != 800 {
		t.Errorf("pan right should stop at 800, got %d", s.PanX)
	}
	s = v.Pan(s, domain.Down)
	s = v.Pan(s, domain.Down)
	if s.PanY != 600 {
		t.Errorf("pan down should stop at 600, got %d", s.PanY)
	}
	s = v.Pan(s, domain.Up)
	if s.PanY != 0 {
		t.Errorf("pan up should return to 0, got %d", s.PanY)
	}
}

func TestViewport_ZoomOutSnapsBackFromEdge(t *testing.T) {
	v := geospatial.Viewport{FullWidth: 1600, FullHeight: 1600}
	s := domain.ViewportState{PanX: 1200, PanY: 1200, Magnification: 4} // touching bottom-right

	s = v.ZoomOut(s)
	if s.Magnification != 2 {
		t.Fatalf("expected magnification 2, got %d", s.Magnification)
	}
	if s.PanX != 800 || s.PanY != 800 {
		t.Errorf("expected snap back to (800,800), got (%d,%d)", s.PanX, s.PanY)
	}
	assertInside(t, v, s)
}

func TestViewport_ZoomOutClampsUnalignedPan(t *testing.T) {
	v := geospatial.Viewport{FullWidth: 16, FullHeight: 16}
	s := domain.ViewportState{PanX: 6, PanY: 6, Magnification: 2}

	s = v.ZoomOut(s)
	if s.PanX != 0 || s.PanY != 0 {
		t.Errorf("full extent must sit at origin, got (%d,%d)", s.PanX, s.PanY)
	}
}

func TestViewport_InvariantUnderRandomInput(t *testing.T) {
	v := geospatial.Viewport{FullWidth: 11928, FullHeight: 12000}
	rng := rand.New(rand.NewSource(42))
	s := domain.FullExtent()
	dirs := []domain.Direction{domain.Up, domain.Down, domain.Left, domain.Right}

	for i := 0; i < 5000; i++ {
		switch rng.Intn(3) {
		case 0:
			s = v.ZoomIn(s)
		case 1:
			s = v.ZoomOut(s)
		default:
			s = v.Pan(s, dirs[rng.Intn(len(dirs))])
		}
		assertInside(t, v, s)
	}
}

func TestCrop(t *testing.T) {
	r := geospatial.Crop(1000, 800, 900, -5, 2)
	if r.Width != 500 || r.Height != 400 {
		t.Errorf("expected 500x400, got %dx%d", r.Width, r.Height)
	}
	if r.X != 500 || r.Y != 0 {
		t.Errorf("expected clamped origin (500,0), got (%d,%d)", r.X, r.Y)
	}
}
