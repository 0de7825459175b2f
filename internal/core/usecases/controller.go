package usecases

import (
	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
)

// RenderRequest is what the controller asks the session driver to draw after
// one command.
type RenderRequest struct {
	Command  domain.Command
	State    domain.NavigationState
	Previous domain.NavigationState
	Viewport domain.Rect

	// RouteCount is the route count known when the command arrived.
	RouteCount int

	// Invalidate drops cached data for the current view before fetching.
	Invalidate bool
	Help       bool
	Quit       bool
}

// Controller is the navigation state machine. It holds a single Idle state;
// every command updates NavigationState and yields a RenderRequest. Nothing
// here touches I/O.
type Controller struct {
	viewport geospatial.Viewport
	state    domain.NavigationState
}

// NewController starts from initial, with the viewport forced into range.
// A zero view defaults to the order view and route index to 1.
func NewController(vp geospatial.Viewport, initial domain.NavigationState) *Controller {
	if initial.View == "" {
		initial.View = domain.ViewOrder
	}
	if initial.RouteIndex < 1 {
		initial.RouteIndex = 1
	}
	if initial.Viewport.Magnification == 0 {
		initial.Viewport = domain.FullExtent()
	}
	initial.Viewport = vp.Clamp(initial.Viewport)
	return &Controller{viewport: vp, state: initial}
}

// State returns the current navigation state.
func (c *Controller) State() domain.NavigationState { return c.state }

// Current describes the present state without changing it.
func (c *Controller) Current() RenderRequest {
	return RenderRequest{
		State:    c.state,
		Previous: c.state,
		Viewport: c.viewport.Crop(c.state.Viewport),
	}
}

// Handle applies cmd. routeCount is the number of routes known to the session
// and bounds StepRoute. Out-of-range adjustments clamp silently.
func (c *Controller) Handle(cmd domain.Command, routeCount int) RenderRequest {
	req := RenderRequest{Command: cmd, Previous: c.state, RouteCount: routeCount}
	s := c.state

	switch cmd.Type {
	case domain.CmdZoomIn:
		s.Viewport = c.viewport.ZoomIn(s.Viewport)
	case domain.CmdZoomOut:
		s.Viewport = c.viewport.ZoomOut(s.Viewport)
	case domain.CmdPanUp:
		s.Viewport = c.viewport.Pan(s.Viewport, domain.Up)
	case domain.CmdPanDown:
		s.Viewport = c.viewport.Pan(s.Viewport, domain.Down)
	case domain.CmdPanLeft:
		s.Viewport = c.viewport.Pan(s.Viewport, domain.Left)
	case domain.CmdPanRight:
		s.Viewport = c.viewport.Pan(s.Viewport, domain.Right)
	case domain.CmdSwitchView:
		if cmd.View != "" {
			s.View = cmd.View
		}
	case domain.CmdStepRoute:
		s.View = domain.ViewRoute
		s.RouteIndex = stepRouteIndex(s.RouteIndex, cmd.Step, routeCount)
	case domain.CmdRefresh:
		req.Invalidate = true
	case domain.CmdShowHelp:
		req.Help = true
	case domain.CmdQuit:
		req.Quit = true
	}

	c.state = s
	req.State = s
	req.Viewport = c.viewport.Crop(s.Viewport)
	return req
}

// Rollback restores a previous state, used when the requested route turned
// out to have no legs.
func (c *Controller) Rollback(prev domain.NavigationState) {
	c.state = prev
}

// stepRouteIndex keeps the index inside [1, routeCount-1]; the last route id
// in the list is never stepped onto.
func stepRouteIndex(idx, step, routeCount int) int {
	hi := routeCount - 1
	if hi < 1 {
		hi = 1
	}
	switch {
	case step < 0 && idx > 1:
		idx--
	case step > 0 && idx < hi:
		idx++
	}
	if idx > hi {
		idx = hi
	}
	if idx < 1 {
		idx = 1
	}
	return idx
}
