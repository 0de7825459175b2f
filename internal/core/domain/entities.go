package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind identifies which dispatcher table a snapshot came from.
type EntityKind string

const (
	KindCab   EntityKind = "cab"
	KindOrder EntityKind = "order"
	KindStop  EntityKind = "stop"
)

// ParseEntityKind accepts the lower- or upper-case kind name.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCab:
		return KindCab, nil
	case KindOrder:
		return KindOrder, nil
	case KindStop:
		return KindStop, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Cab statuses.
const (
	CabAssigned = 0
	CabFree     = 1
	CabCharging = 2
)

// Order statuses.
const (
	OrderReceived  = 0
	OrderAssigned  = 1
	OrderAccepted  = 2
	OrderCancelled = 3
	OrderRejected  = 4
	OrderAbandoned = 5
	OrderRefused   = 6
	OrderPickedUp  = 7
	OrderCompleted = 8
)

// Leg and route statuses.
const (
	LegPlanned   = 0
	LegAssigned  = 1
	LegAccepted  = 2
	LegRejected  = 3
	LegAbandoned = 4
	LegStarted   = 5
	LegCompleted = 6
)

// EntitySnapshot is one cab, order or stop as seen at fetch time.
// Snapshots carry no identity across refreshes.
type EntitySnapshot struct {
	Kind     EntityKind    `json:"kind"`
	ID       int64         `json:"id"`
	Position GeoCoordinate `json:"position"`
	Status   int           `json:"status"`
}

// LegRecord is one directed segment of a cab's route.
type LegRecord struct {
	ID          int64      `json:"id"`
	RouteID     int64      `json:"route_id"`
	Place       int        `json:"place"`
	FromStand   int64      `json:"from_stand"`
	ToStand     int64      `json:"to_stand"`
	Status      int        `json:"status"`
	Distance    int        `json:"distance"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StopRecord is a fixed pick-up/drop-off stand.
type StopRecord struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name,omitempty"`
	Position GeoCoordinate `json:"position"`
	Bearing  int           `json:"bearing"`
}

// StopIndex looks stops up by id.
type StopIndex map[int64]StopRecord

// NewStopIndex builds an index; later duplicates win.
func NewStopIndex(stops []StopRecord) StopIndex {
	idx := make(StopIndex, len(stops))
	for _, s := range stops {
		idx[s.ID] = s
	}
	return idx
}

// OrderRow is a side-panel line for one order served by a route.
type OrderRow struct {
	ID        int64      `json:"id"`
	FromStand int64      `json:"from_stand"`
	ToStand   int64      `json:"to_stand"`
	MaxWait   int        `json:"max_wait"`
	MaxLoss   int        `json:"max_loss"`
	Distance  int        `json:"distance"`
	LegID     *int64     `json:"leg_id,omitempty"`
	ETA       int        `json:"eta"`
	Received  *time.Time `json:"received,omitempty"`
	Started   *time.Time `json:"started,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`
}

// OrderEndpoints identifies the order being inspected on a route.
type OrderEndpoints struct {
	OrderID   int64 `json:"order_id"`
	RouteID   int64 `json:"route_id"`
	FromStand int64 `json:"from_stand"`
	ToStand   int64 `json:"to_stand"`
}

// Touches reports whether stand is the order's pick-up or drop-off.
func (o *OrderEndpoints) Touches(stand int64) bool {
	if o == nil {
		return false
	}
	return stand == o.FromStand || stand == o.ToStand
}

// RouteNode is a stop visited by a route.
type RouteNode struct {
	Stand     int64 `json:"stand"`
	Place     int   `json:"place"`
	Highlight bool  `json:"highlight"`
}

// RouteEdge is a directed segment between two stands.
type RouteEdge struct {
	From   int64 `json:"from"`
	To     int64 `json:"to"`
	Status int   `json:"status"`
}

// Route is the ordered path of one routeID, rebuilt on every navigation step.
type Route struct {
	ID    int64       `json:"id"`
	Legs  []LegRecord `json:"legs"`
	Nodes []RouteNode `json:"nodes"`
	Edges []RouteEdge `json:"edges"`
	Final RouteEdge   `json:"final"`

	// Distance sums the dispatcher's recorded leg distances.
	Distance     int `json:"distance"`
	LengthMeters int `json:"length_meters"`
}

// AllEdges returns the consecutive edges followed by the final edge.
func (r *Route) AllEdges() []RouteEdge {
	out := make([]RouteEdge, 0, len(r.Edges)+1)
	out = append(out, r.Edges...)
	return append(out, r.Final)
}
