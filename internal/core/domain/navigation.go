package domain

import (
	"fmt"
	"strings"
	"time"
)

// ViewKind selects what a frame shows.
type ViewKind string

const (
	ViewOrder ViewKind = "order"
	ViewCab   ViewKind = "cab"
	ViewStop  ViewKind = "stop"
	ViewRoute ViewKind = "route"
)

// EntityKind returns the snapshot kind drawn by an entity view.
func (v ViewKind) EntityKind() (EntityKind, bool) {
	switch v {
	case ViewOrder:
		return KindOrder, true
	case ViewCab:
		return KindCab, true
	case ViewStop:
		return KindStop, true
	}
	return "", false
}

// ParseViewKind accepts order, cab, stop or route.
func ParseViewKind(s string) (ViewKind, error) {
	switch v := ViewKind(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewOrder, ViewCab, ViewStop, ViewRoute:
		return v, nil
	}
	return "", fmt.Errorf("%w: view %q", ErrUnknownKind, s)
}

// Direction is a pan direction.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ViewportState is the pan offset (screen space) and magnification.
type ViewportState struct {
	PanX          int `json:"pan_x"`
	PanY          int `json:"pan_y"`
	Magnification int `json:"magnification"`
}

// FullExtent is the unzoomed viewport.
func FullExtent() ViewportState {
	return ViewportState{Magnification: 1}
}

// NavigationState is everything the controller remembers between events.
type NavigationState struct {
	View       ViewKind      `json:"view"`
	RouteIndex int           `json:"route_index"`
	FocusOrder int64         `json:"focus_order,omitempty"`
	Viewport   ViewportState `json:"viewport"`
}

// CommandType enumerates abstract operator inputs.
type CommandType string

const (
	CmdPanUp      CommandType = "pan_up"
	CmdPanDown    CommandType = "pan_down"
	CmdPanLeft    CommandType = "pan_left"
	CmdPanRight   CommandType = "pan_right"
	CmdZoomIn     CommandType = "zoom_in"
	CmdZoomOut    CommandType = "zoom_out"
	CmdSwitchView CommandType = "switch_view"
	CmdRefresh    CommandType = "refresh"
	CmdStepRoute  CommandType = "step_route"
	CmdQuit       CommandType = "quit"
	CmdShowHelp   CommandType = "help"
)

// Command is one operator input. View is set for SwitchView, Step (+1/-1)
// for StepRoute.
type Command struct {
	Type CommandType `json:"type"`
	View ViewKind    `json:"view,omitempty"`
	Step int         `json:"step,omitempty"`
}

// Pan returns the pan command for a direction.
func Pan(d Direction) Command {
	switch d {
	case Up:
		return Command{Type: CmdPanUp}
	case Down:
		return Command{Type: CmdPanDown}
	case Left:
		return Command{Type: CmdPanLeft}
	default:
		return Command{Type: CmdPanRight}
	}
}

// SwitchView returns the view-switch command.
func SwitchView(v ViewKind) Command { return Command{Type: CmdSwitchView, View: v} }

// StepRoute returns the route-step command; step is normalised to ±1.
func StepRoute(step int) Command {
	if step < 0 {
		return Command{Type: CmdStepRoute, Step: -1}
	}
	return Command{Type: CmdStepRoute, Step: 1}
}

// String is the wire name accepted by ParseCommand.
func (c Command) String() string {
	switch c.Type {
	case CmdSwitchView:
		return "view_" + string(c.View)
	case CmdStepRoute:
		if c.Step < 0 {
			return "prev_route"
		}
		return "next_route"
	}
	return string(c.Type)
}

// ParseCommand maps a wire name to a Command.
func ParseCommand(name string) (Command, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch CommandType(n) {
	case CmdPanUp, CmdPanDown, CmdPanLeft, CmdPanRight,
		CmdZoomIn, CmdZoomOut, CmdRefresh, CmdQuit, CmdShowHelp:
		return Command{Type: CommandType(n)}, nil
	}
	switch n {
	case "view_order":
		return SwitchView(ViewOrder), nil
	case "view_cab":
		return SwitchView(ViewCab), nil
	case "view_stop":
		return SwitchView(ViewStop), nil
	case "next_route":
		return StepRoute(1), nil
	case "prev_route":
		return StepRoute(-1), nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// Frame is one fully rendered view handed to the renderer and to clients.
type Frame struct {
	Seq           uint64        `json:"seq"`
	View          ViewKind      `json:"view"`
	RouteIndex    int           `json:"route_index"`
	RouteCount    int           `json:"route_count"`
	RouteID       int64         `json:"route_id,omitempty"`
	FocusOrder    int64         `json:"focus_order,omitempty"`
	Magnification int           `json:"magnification"`
	Viewport      Rect          `json:"viewport"`
	CanvasWidth   int           `json:"canvas_width"`
	CanvasHeight  int           `json:"canvas_height"`
	Commands      []DrawCommand `json:"commands"`
	Orders        []OrderRow    `json:"orders,omitempty"`
	Route         *Route        `json:"route,omitempty"`
	Panel         []string      `json:"panel,omitempty"`
	Help          []string      `json:"help,omitempty"`
	Notice        string        `json:"notice,omitempty"`
	Stale         bool          `json:"stale"`
	Closed        bool          `json:"closed,omitempty"`
	RenderedAt    time.Time     `json:"rendered_at"`
}
