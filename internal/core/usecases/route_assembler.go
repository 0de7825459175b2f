package usecases

import (
	"fmt"
	"sort"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// AssembleRoute orders the legs of routeID by place and derives the drawable
// path. Legs of other routes are ignored. focus, when set, marks the
// inspected order's pick-up and drop-off stands.
//
// Legs sharing a place keep their input order; the dispatcher should never
// produce them and nothing here repairs it.
func AssembleRoute(legs []domain.LegRecord, routeID int64, focus *domain.OrderEndpoints) (*domain.Route, error) {
	var own []domain.LegRecord
	for _, l := range legs {
		if l.RouteID == routeID {
			own = append(own, l)
		}
	}
	if len(own) == 0 {
		return nil, fmt.Errorf("route %d: %w", routeID, domain.ErrRouteNotFound)
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Place < own[j].Place })

	r := &domain.Route{
		ID:    routeID,
		Legs:  own,
		Nodes: make([]domain.RouteNode, 0, len(own)+1),
		Edges: make([]domain.RouteEdge, 0, len(own)-1),
	}
	for i, l := range own {
		r.Nodes = append(r.Nodes, domain.RouteNode{
			Stand:     l.FromStand,
			Place:     i,
			Highlight: focus.Touches(l.FromStand),
		})
		if i+1 < len(own) {
			// colour follows the leg the edge leaves from
			r.Edges = append(r.Edges, domain.RouteEdge{
				From:   l.FromStand,
				To:     own[i+1].FromStand,
				Status: l.Status,
			})
		}
		r.Distance += l.Distance
	}

	last := own[len(own)-1]
	r.Nodes = append(r.Nodes, domain.RouteNode{
		Stand:     last.ToStand,
		Place:     len(own),
		Highlight: focus.Touches(last.ToStand),
	})
	r.Final = domain.RouteEdge{From: last.FromStand, To: last.ToStand, Status: last.Status}
	return r, nil
}

// EdgeColor maps the originating leg's status to an arrow colour.
func EdgeColor(status int) domain.Color {
	switch status {
	case domain.LegAssigned:
		return domain.ColorRed
	case domain.LegStarted:
		return domain.ColorGreen
	case domain.LegCompleted:
		return domain.ColorBlack
	}
	return domain.ColorBlue
}

// NodeColor is red for the inspected order's endpoints, blue otherwise.
func NodeColor(n domain.RouteNode) domain.Color {
	if n.Highlight {
		return domain.ColorRed
	}
	return domain.ColorBlue
}

// RouteIDs lists distinct route ids in first-seen order. Input is expected to
// be ordered by route id, then place, as FetchAllLegs returns it.
func RouteIDs(legs []domain.LegRecord) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, l := range legs {
		if _, ok := seen[l.RouteID]; ok {
			continue
		}
		seen[l.RouteID] = struct{}{}
		ids = append(ids, l.RouteID)
	}
	return ids
}
