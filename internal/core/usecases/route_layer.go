package usecases

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
)

// Route drawing defaults, in full-canvas pixels.
const (
	DefaultNodeRadius     = 15
	DefaultNodeThickness  = 10
	DefaultArrowThickness = 9
	DefaultBearingLength  = 20
	DefaultLabelOffset    = 25
)

// RouteLayer draws an assembled route: stop circles with place labels and
// bearing ticks, plus one arrow per edge.
type RouteLayer struct {
	NodeRadius     int
	NodeThickness  int
	ArrowThickness int
	BearingLength  int
	LabelOffset    int
}

// NewRouteLayer returns a layer with the default geometry.
func NewRouteLayer() *RouteLayer {
	return &RouteLayer{
		NodeRadius:     DefaultNodeRadius,
		NodeThickness:  DefaultNodeThickness,
		ArrowThickness: DefaultArrowThickness,
		BearingLength:  DefaultBearingLength,
		LabelOffset:    DefaultLabelOffset,
	}
}

// Render emits arrows first so that stop circles paint over them. Stands
// missing from stops, or without coordinates, are skipped for this frame.
func (l *RouteLayer) Render(r *domain.Route, stops domain.StopIndex, proj geospatial.Projector) []domain.DrawCommand {
	locate := func(stand int64) (domain.PixelPoint, domain.StopRecord, bool) {
		s, ok := stops[stand]
		if !ok || !s.Position.Valid() {
			metrics.EntitiesSkipped.WithLabelValues("route_stop").Inc()
			slog.Debug("route stand not drawable", "route_id", r.ID, "stand", stand)
			return domain.PixelPoint{}, s, false
		}
		return proj.ProjectScreen(s.Position), s, true
	}

	var cmds []domain.DrawCommand
	for _, e := range r.AllEdges() {
		from, _, ok1 := locate(e.From)
		to, _, ok2 := locate(e.To)
		if !ok1 || !ok2 {
			continue
		}
		cmds = append(cmds, domain.Arrow(from, to, EdgeColor(e.Status), l.ArrowThickness))
	}

	for _, n := range r.Nodes {
		p, stop, ok := locate(n.Stand)
		if !ok {
			continue
		}
		cmds = append(cmds,
			domain.Circle(p, l.NodeRadius, NodeColor(n), l.NodeThickness),
			domain.Text(p.Offset(0, -l.LabelOffset), strconv.Itoa(n.Place)),
		)
		if l.BearingLength > 0 {
			cmds = append(cmds, l.bearingTick(p, stop.Bearing))
		}
	}
	return cmds
}

// bearingTick points from the circle rim in the stop's bearing, degrees
// clockwise from north.
func (l *RouteLayer) bearingTick(center domain.PixelPoint, bearing int) domain.DrawCommand {
	rad := float64(bearing) * math.Pi / 180
	dx, dy := math.Sin(rad), -math.Cos(rad)
	inner := float64(l.NodeRadius)
	outer := inner + float64(l.BearingLength)
	from := center.Offset(int(math.Round(dx*inner)), int(math.Round(dy*inner)))
	to := center.Offset(int(math.Round(dx*outer)), int(math.Round(dy*outer)))
	return domain.Arrow(from, to, domain.ColorRed, 2)
}

// MeasureRoute sets the route's straight-line length in meters, summed over
// legs whose both stands have coordinates. Distance stays the sum of the
// dispatcher's recorded leg distances.
func MeasureRoute(r *domain.Route, stops domain.StopIndex) {
	total := 0.0
	for _, leg := range r.Legs {
		from, ok1 := stops[leg.FromStand]
		to, ok2 := stops[leg.ToStand]
		if !ok1 || !ok2 || !from.Position.Valid() || !to.Position.Valid() {
			continue
		}
		total += geospatial.Distance(from.Position, to.Position)
	}
	r.LengthMeters = int(math.Round(total))
}

// RoutePanel lays out the side tables shown next to a route: its id, the legs
// in place order and the orders it serves.
func RoutePanel(r *domain.Route, orders []domain.OrderRow) []string {
	lines := []string{
		fmt.Sprintf("Route %d  recorded distance %d  straight line %dm", r.ID, r.Distance, r.LengthMeters),
		"Legs:",
		fmt.Sprintf("%-4s %7s %7s %6s %9s %9s", "#", "FROM", "TO", "DST", "STRTED", "COMPLTD"),
	}
	for i, l := range r.Legs {
		lines = append(lines, fmt.Sprintf("%-4d %7d %7d %6d %9s %9s",
			i, l.FromStand, l.ToStand, l.Distance, clock(l.StartedAt), clock(l.CompletedAt)))
	}

	lines = append(lines, "Orders:",
		fmt.Sprintf("%-7s %6s %6s %5s %5s %5s %6s %5s %9s %9s %9s",
			"ID", "FROM", "TO", "WAIT", "LOSS", "DIST", "LEG", "ETA", "RCVD", "STARTED", "CMPLTED"))
	for _, o := range orders {
		leg := "-"
		if o.LegID != nil {
			leg = strconv.FormatInt(*o.LegID, 10)
		}
		lines = append(lines, fmt.Sprintf("%-7d %6d %6d %5d %5d %5d %6s %5d %9s %9s %9s",
			o.ID, o.FromStand, o.ToStand, o.MaxWait, o.MaxLoss, o.Distance, leg, o.ETA,
			clock(o.Received), clock(o.Started), clock(o.Completed)))
	}
	return lines
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04:05")
}
