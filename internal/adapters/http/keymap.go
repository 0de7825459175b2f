package http

import (
	"fmt"
	"strings"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// Legacy key codes sent by the desktop viewer.
const (
	legacyUp    = 0
	legacyDown  = 1
	legacyLeft  = 2
	legacyRight = 3
	legacyEsc   = 27
	legacySpace = 32
	legacyPlus  = 43
	legacyMinus = 45
	legacyOne   = 49
	legacyTwo   = 50
	legacyThree = 51
	legacyH     = 104
)

// KeyCommand maps a browser KeyboardEvent.key name to a command. With shift
// held, ArrowUp and ArrowDown step to the previous and next route.
func KeyCommand(key string, shift bool) (domain.Command, error) {
	switch key {
	case "ArrowUp", "Up":
		if shift {
			return domain.StepRoute(-1), nil
		}
		return domain.Pan(domain.Up), nil
	case "ArrowDown", "Down":
		if shift {
			return domain.StepRoute(1), nil
		}
		return domain.Pan(domain.Down), nil
	case "ArrowLeft", "Left":
		return domain.Pan(domain.Left), nil
	case "ArrowRight", "Right":
		return domain.Pan(domain.Right), nil
	case "PageUp":
		return domain.StepRoute(-1), nil
	case "PageDown":
		return domain.StepRoute(1), nil
	case "+", "=":
		return domain.Command{Type: domain.CmdZoomIn}, nil
	case "-", "_":
		return domain.Command{Type: domain.CmdZoomOut}, nil
	case "1":
		return domain.SwitchView(domain.ViewOrder), nil
	case "2":
		return domain.SwitchView(domain.ViewCab), nil
	case "3":
		return domain.SwitchView(domain.ViewStop), nil
	case " ", "Spacebar":
		return domain.Command{Type: domain.CmdRefresh}, nil
	case "Escape", "Esc":
		return domain.Command{Type: domain.CmdQuit}, nil
	}
	if strings.EqualFold(key, "h") {
		return domain.Command{Type: domain.CmdShowHelp}, nil
	}
	return domain.Command{}, fmt.Errorf("%w: key %q", domain.ErrUnknownCommand, key)
}

// LegacyKeyCommand maps a desktop key code to a command. In the route
// presenter the up and down codes step routes instead of panning.
func LegacyKeyCommand(code int, routes bool) (domain.Command, error) {
	switch code {
	case legacyUp:
		if routes {
			return domain.StepRoute(-1), nil
		}
		return domain.Pan(domain.Up), nil
	case legacyDown:
		if routes {
			return domain.StepRoute(1), nil
		}
		return domain.Pan(domain.Down), nil
	case legacyLeft:
		return domain.Pan(domain.Left), nil
	case legacyRight:
		return domain.Pan(domain.Right), nil
	case legacyPlus:
		return domain.Command{Type: domain.CmdZoomIn}, nil
	case legacyMinus:
		return domain.Command{Type: domain.CmdZoomOut}, nil
	case legacyOne:
		return domain.SwitchView(domain.ViewOrder), nil
	case legacyTwo:
		return domain.SwitchView(domain.ViewCab), nil
	case legacyThree:
		return domain.SwitchView(domain.ViewStop), nil
	case legacySpace:
		return domain.Command{Type: domain.CmdRefresh}, nil
	case legacyH:
		return domain.Command{Type: domain.CmdShowHelp}, nil
	case legacyEsc:
		return domain.Command{Type: domain.CmdQuit}, nil
	}
	return domain.Command{}, fmt.Errorf("%w: key code %d", domain.ErrUnknownCommand, code)
}

// CommandRequest is the body of POST /v1/sessions/:id/commands and of a
// websocket message. Exactly one of Command, Key or Code is used, in that
// order of preference.
type CommandRequest struct {
	Command string `json:"command,omitempty"`
	Key     string `json:"key,omitempty"`
	Shift   bool   `json:"shift,omitempty"`
	Code    *int   `json:"code,omitempty"`
}

// Resolve turns the request into a command. routes selects the route
// presenter bindings for legacy codes.
func (r CommandRequest) Resolve(routes bool) (domain.Command, error) {
	switch {
	case r.Command != "":
		return domain.ParseCommand(r.Command)
	case r.Key != "":
		return KeyCommand(r.Key, r.Shift)
	case r.Code != nil:
		return LegacyKeyCommand(*r.Code, routes)
	}
	return domain.Command{}, fmt.Errorf("%w: empty request", domain.ErrUnknownCommand)
}
