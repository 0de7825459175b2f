package usecases_test

import (
	"testing"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/usecases"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
)

func newTestController() *usecases.Controller {
	return usecases.NewController(geospatial.Viewport{FullWidth: 1600, FullHeight: 1600}, domain.NavigationState{})
}

func TestController_InitialState(t *testing.T) {
	c := newTestController()
	s := c.State()
	if s.View != domain.ViewOrder || s.RouteIndex != 1 || s.Viewport.Magnification != 1 {
		t.Errorf("unexpected initial state %+v", s)
	}
	req := c.Current()
	if req.Viewport != (domain.Rect{Width: 1600, Height: 1600}) {
		t.Errorf("expected full extent, got %+v", req.Viewport)
	}
}

func TestController_StepRoute_ClampsAtBoundary(t *testing.T) {
	c := newTestController()

	req := c.Handle(domain.StepRoute(1), 3)
	if req.State.RouteIndex != 2 || req.State.View != domain.ViewRoute {
		t.Fatalf("expected route index 2 in route view, got %+v", req.State)
	}

	req = c.Handle(domain.StepRoute(1), 3)
	if req.State.RouteIndex != 2 {
		t.Errorf("expected index to stay at 2, got %d", req.State.RouteIndex)
	}
	if req.Previous.RouteIndex != 2 {
		t.Errorf("expected previous index 2, got %d", req.Previous.RouteIndex)
	}

	c.Handle(domain.StepRoute(-1), 3)
	req = c.Handle(domain.StepRoute(-1), 3)
	if req.State.RouteIndex != 1 {
		t.Errorf("expected index to stop at 1, got %d", req.State.RouteIndex)
	}
}

func TestController_StepRoute_SingleRoute(t *testing.T) {
	c := newTestController()
	req := c.Handle(domain.StepRoute(1), 1)
	if req.State.RouteIndex != 1 {
		t.Errorf("expected index 1, got %d", req.State.RouteIndex)
	}
}

func TestController_SwitchViewKeepsViewport(t *testing.T) {
	c := newTestController()
	c.Handle(domain.Command{Type: domain.CmdZoomIn}, 0)
	c.Handle(domain.Pan(domain.Right), 0)

	before := c.State().Viewport
	req := c.Handle(domain.SwitchView(domain.ViewCab), 0)
	if req.State.View != domain.ViewCab {
		t.Errorf("expected cab view, got %s", req.State.View)
	}
	if req.State.Viewport != before {
		t.Errorf("expected viewport %+v to be kept, got %+v", before, req.State.Viewport)
	}
	if req.Viewport != (domain.Rect{X: 800, Y: 0, Width: 800, Height: 800}) {
		t.Errorf("unexpected crop %+v", req.Viewport)
	}
}

func TestController_RefreshHelpQuit(t *testing.T) {
	c := newTestController()
	before := c.State()

	if req := c.Handle(domain.Command{Type: domain.CmdRefresh}, 0); !req.Invalidate || req.State != before {
		t.Errorf("refresh: unexpected request %+v", req)
	}
	if req := c.Handle(domain.Command{Type: domain.CmdShowHelp}, 0); !req.Help || req.State != before {
		t.Errorf("help: unexpected request %+v", req)
	}
	if req := c.Handle(domain.Command{Type: domain.CmdQuit}, 0); !req.Quit {
		t.Errorf("quit: expected Quit, got %+v", req)
	}
}

func TestController_PanAtEdgeStillRenders(t *testing.T) {
	c := newTestController()
	req := c.Handle(domain.Pan(domain.Left), 0)
	if req.Command.Type != domain.CmdPanLeft {
		t.Errorf("expected a render request for the pan, got %+v", req.Command)
	}
	if req.State.Viewport.PanX != 0 {
		t.Errorf("expected pan to stay at 0, got %d", req.State.Viewport.PanX)
	}
}

func TestController_Rollback(t *testing.T) {
	c := newTestController()
	req := c.Handle(domain.StepRoute(1), 5)
	c.Rollback(req.Previous)
	if c.State().RouteIndex != 1 || c.State().View != domain.ViewOrder {
		t.Errorf("expected rollback to the previous state, got %+v", c.State())
	}
}
