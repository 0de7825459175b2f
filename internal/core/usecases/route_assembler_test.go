package usecases_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/usecases"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
)

func TestAssembleRoute_OrdersByPlace(t *testing.T) {
	legs := []domain.LegRecord{
		{RouteID: 7, Place: 2, FromStand: 30, ToStand: 40},
		{RouteID: 7, Place: 1, FromStand: 20, ToStand: 30},
		{RouteID: 7, Place: 3, FromStand: 40, ToStand: 50},
		{RouteID: 8, Place: 1, FromStand: 99, ToStand: 98},
	}

	r, err := usecases.AssembleRoute(legs, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Legs) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(r.Legs))
	}
	for i, want := range []int{1, 2, 3} {
		if r.Legs[i].Place != want {
			t.Errorf("leg %d: expected place %d, got %d", i, want, r.Legs[i].Place)
		}
	}
	if len(r.Edges) != 2 {
		t.Fatalf("expected 2 consecutive edges, got %d", len(r.Edges))
	}
	if r.Edges[0].From != 20 || r.Edges[0].To != 30 || r.Edges[1].From != 30 || r.Edges[1].To != 40 {
		t.Errorf("unexpected edges %+v", r.Edges)
	}
	if r.Final.From != 40 || r.Final.To != 50 {
		t.Errorf("expected final edge 40->50, got %+v", r.Final)
	}

	stands := []int64{20, 30, 40, 50}
	if len(r.Nodes) != len(stands) {
		t.Fatalf("expected %d nodes, got %d", len(stands), len(r.Nodes))
	}
	for i, n := range r.Nodes {
		if n.Stand != stands[i] || n.Place != i {
			t.Errorf("node %d: got stand %d place %d", i, n.Stand, n.Place)
		}
	}
}

func TestAssembleRoute_StartedEdgeIsGreen(t *testing.T) {
	legs := []domain.LegRecord{
		{RouteID: 1, Place: 0, FromStand: 1, ToStand: 2, Status: domain.LegStarted},
		{RouteID: 1, Place: 1, FromStand: 2, ToStand: 3, Status: domain.LegCompleted},
	}

	r, err := usecases.AssembleRoute(legs, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Edges[0].From != 1 {
		t.Fatalf("expected edge from stand 1, got %d", r.Edges[0].From)
	}
	if got := usecases.EdgeColor(r.Edges[0].Status); got != domain.ColorGreen {
		t.Errorf("expected green, got %s", got)
	}
	if got := usecases.EdgeColor(r.Final.Status); got != domain.ColorBlack {
		t.Errorf("expected black final edge, got %s", got)
	}
}

func TestAssembleRoute_NotFound(t *testing.T) {
	legs := []domain.LegRecord{{RouteID: 1, Place: 0, FromStand: 1, ToStand: 2}}

	_, err := usecases.AssembleRoute(legs, 2, nil)
	if !errors.Is(err, domain.ErrRouteNotFound) {
		t.Errorf("expected ErrRouteNotFound, got %v", err)
	}
	if _, err := usecases.AssembleRoute(nil, 2, nil); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Errorf("expected ErrRouteNotFound for no legs, got %v", err)
	}
}

func TestAssembleRoute_HighlightsFocusEndpoints(t *testing.T) {
	legs := []domain.LegRecord{
		{RouteID: 1, Place: 0, FromStand: 1, ToStand: 2},
		{RouteID: 1, Place: 1, FromStand: 2, ToStand: 3},
	}
	focus := &domain.OrderEndpoints{OrderID: 9, RouteID: 1, FromStand: 2, ToStand: 3}

	r, err := usecases.AssembleRoute(legs, 1, focus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[int64]domain.Color{1: domain.ColorBlue, 2: domain.ColorRed, 3: domain.ColorRed}
	for _, n := range r.Nodes {
		if got := usecases.NodeColor(n); got != want[n.Stand] {
			t.Errorf("stand %d: expected %s, got %s", n.Stand, want[n.Stand], got)
		}
	}
}

func TestEdgeColor(t *testing.T) {
	tests := map[int]domain.Color{
		domain.LegPlanned:   domain.ColorBlue,
		domain.LegAssigned:  domain.ColorRed,
		domain.LegAccepted:  domain.ColorBlue,
		domain.LegStarted:   domain.ColorGreen,
		domain.LegCompleted: domain.ColorBlack,
	}
	for status, want := range tests {
		if got := usecases.EdgeColor(status); got != want {
			t.Errorf("EdgeColor(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestRouteIDs_FirstSeenOrder(t *testing.T) {
	ids := usecases.RouteIDs(threeRoutes())
	if len(ids) != 3 || ids[0] != 10 || ids[1] != 20 || ids[2] != 30 {
		t.Errorf("expected [10 20 30], got %v", ids)
	}
}

func TestRouteLayer_Render(t *testing.T) {
	r, err := usecases.AssembleRoute(legsOf(10), 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proj := geospatial.NewProjector(budapest, 2000, 2000, 50)

	cmds := usecases.NewRouteLayer().Render(r, domain.NewStopIndex(testStops()), proj)

	var arrows, circles, labels int
	for _, c := range cmds {
		switch c.Kind {
		case domain.DrawArrow:
			if c.Thickness == 9 {
				arrows++
			}
		case domain.DrawCircle:
			circles++
		case domain.DrawText:
			labels++
		}
	}
	if arrows != 2 {
		t.Errorf("expected 2 route arrows, got %d", arrows)
	}
	if circles != 3 || labels != 3 {
		t.Errorf("expected 3 circles and 3 labels, got %d and %d", circles, labels)
	}
	if cmds[0].Kind != domain.DrawArrow {
		t.Errorf("expected arrows to be drawn first, got %s", cmds[0].Kind)
	}
}

func TestRouteLayer_Render_SkipsUnknownStands(t *testing.T) {
	legs := []domain.LegRecord{{RouteID: 1, Place: 0, FromStand: 1, ToStand: 77}}
	r, err := usecases.AssembleRoute(legs, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proj := geospatial.NewProjector(budapest, 2000, 2000, 50)

	cmds := usecases.NewRouteLayer().Render(r, domain.NewStopIndex(testStops()), proj)
	for _, c := range cmds {
		if c.Kind == domain.DrawArrow && c.Thickness == 9 {
			t.Errorf("expected no edge to the unknown stand, got %+v", c)
		}
	}
}

func TestRoutePanel(t *testing.T) {
	r, err := usecases.AssembleRoute(legsOf(10), 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	legID := int64(1)
	lines := usecases.RoutePanel(r, []domain.OrderRow{{ID: 500, FromStand: 1, ToStand: 3, LegID: &legID}})

	if !strings.HasPrefix(lines[0], "Route 10") {
		t.Errorf("expected the route id first, got %q", lines[0])
	}
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "500") {
		t.Errorf("expected the order row last, got %q", last)
	}
}

func TestMeasureRoute_KeepsRecordedDistance(t *testing.T) {
	legs := []domain.LegRecord{
		{ID: 1, RouteID: 7, Place: 0, FromStand: 1, ToStand: 2, Distance: 3},
		{ID: 2, RouteID: 7, Place: 1, FromStand: 2, ToStand: 3},
	}
	r, err := usecases.AssembleRoute(legs, 7, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := domain.GeoCoordinate{Lon: 19.00, Lat: 47.50}
	b := domain.GeoCoordinate{Lon: 19.10, Lat: 47.50}
	c := domain.GeoCoordinate{Lon: 19.10, Lat: 47.40}
	stops := domain.NewStopIndex([]domain.StopRecord{
		{ID: 1, Position: a}, {ID: 2, Position: b}, {ID: 3, Position: c},
	})

	usecases.MeasureRoute(r, stops)

	if r.Distance != 3 {
		t.Errorf("expected only the recorded distance 3, got %d", r.Distance)
	}
	want := geospatial.Distance(a, b) + geospatial.Distance(b, c)
	if diff := float64(r.LengthMeters) - want; diff < -1 || diff > 1 {
		t.Errorf("expected straight-line length %.0fm, got %dm", want, r.LengthMeters)
	}

	panel := usecases.RoutePanel(r, nil)
	if !strings.Contains(panel[0], "recorded distance 3") {
		t.Errorf("unexpected panel header %q", panel[0])
	}
}
