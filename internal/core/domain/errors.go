package domain

import "errors"

var (
	// ErrRouteNotFound is returned when no leg carries the requested route id.
	ErrRouteNotFound = errors.New("route not found")
	// ErrOrderNotFound is returned when the inspected order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrSessionNotFound is returned for an unknown or expired viewer session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned after Quit.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownCommand is returned for an input that maps to no command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownKind is returned for an entity kind outside cab/order/stop.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrSuperseded is returned when a newer event cancelled this render.
	ErrSuperseded = errors.New("superseded by a newer request")
)
