package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
	"github.com/kabina/kabinaview/internal/pkg/telemetry"
)

// RouteService handles route-related reads: the route index, legs, stops,
// order tables and the inspected order.
type RouteService struct {
	repo     ports.ViewerRepository
	cache    ports.CacheService
	cacheTTL int
}

// NewRouteService creates a new RouteService.
func NewRouteService(repo ports.ViewerRepository, cache ports.CacheService, cacheTTL int) *RouteService {
	return &RouteService{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

const (
	routeIDsKey = "routes:ids"
	stopsKey    = "stops:all"
)

func routeLegsKey(id int64) string   { return "legs:route:" + strconv.FormatInt(id, 10) }
func routeOrdersKey(id int64) string { return "orders:route:" + strconv.FormatInt(id, 10) }

// RouteIDs lists every route id in first-seen order over FetchAllLegs, which
// repositories sort by route id. Route index n (1-based) refers to the n-th
// entry.
func (s *RouteService) RouteIDs(ctx context.Context) ([]int64, error) {
	return readThrough(ctx, s.cache, s.cacheTTL, routeIDsKey, "route_ids", func(ctx context.Context) ([]int64, error) {
		ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchAllLegs)
		legs, err := s.repo.FetchAllLegs(ctx)
		end(err)
		if err != nil {
			return nil, err
		}
		return RouteIDs(legs), nil
	})
}

// RouteIDAt resolves a 1-based route index.
func (s *RouteService) RouteIDAt(ctx context.Context, index int) (int64, error) {
	ids, err := s.RouteIDs(ctx)
	if err != nil {
		return 0, err
	}
	if index < 1 || index > len(ids) {
		return 0, fmt.Errorf("route index %d of %d: %w", index, len(ids), domain.ErrRouteNotFound)
	}
	return ids[index-1], nil
}

// IndexOf returns the 1-based index of routeID, or 0 when unknown.
func (s *RouteService) IndexOf(ctx context.Context, routeID int64) (int, error) {
	ids, err := s.RouteIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if id == routeID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// Legs returns the raw legs of one route.
func (s *RouteService) Legs(ctx context.Context, routeID int64) ([]domain.LegRecord, error) {
	return readThrough(ctx, s.cache, s.cacheTTL, routeLegsKey(routeID), "legs", func(ctx context.Context) ([]domain.LegRecord, error) {
		ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchLegs, attribute.Int64("route_id", routeID))
		legs, err := s.repo.FetchLegsForRoute(ctx, routeID)
		end(err)
		return legs, err
	})
}

// Route assembles routeID and measures it against the stop positions. focus
// may be nil.
func (s *RouteService) Route(ctx context.Context, routeID int64, focus *domain.OrderEndpoints) (*domain.Route, domain.StopIndex, error) {
	legs, err := s.Legs(ctx, routeID)
	if err != nil {
		return nil, nil, err
	}
	route, err := AssembleRoute(legs, routeID, focus)
	if err != nil {
		metrics.RoutesNotFound.Inc()
		return nil, nil, err
	}
	stops, err := s.StopIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	MeasureRoute(route, stops)
	return route, stops, nil
}

// Stops returns every stop.
func (s *RouteService) Stops(ctx context.Context) ([]domain.StopRecord, error) {
	return readThrough(ctx, s.cache, s.cacheTTL, stopsKey, "stops", func(ctx context.Context) ([]domain.StopRecord, error) {
		ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchStops)
		stops, err := s.repo.FetchStops(ctx)
		end(err)
		return stops, err
	})
}

// StopIndex returns the stops keyed by id.
func (s *RouteService) StopIndex(ctx context.Context) (domain.StopIndex, error) {
	stops, err := s.Stops(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewStopIndex(stops), nil
}

// Orders returns the order table of one route, ordered by leg.
func (s *RouteService) Orders(ctx context.Context, routeID int64) ([]domain.OrderRow, error) {
	return readThrough(ctx, s.cache, s.cacheTTL, routeOrdersKey(routeID), "orders", func(ctx context.Context) ([]domain.OrderRow, error) {
		ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchOrders, attribute.Int64("route_id", routeID))
		orders, err := s.repo.FetchOrderSummary(ctx, routeID)
		end(err)
		return orders, err
	})
}

// Focus looks up the endpoints of an inspected order. It is never cached.
func (s *RouteService) Focus(ctx context.Context, orderID int64) (*domain.OrderEndpoints, error) {
	ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchFocus, attribute.Int64("order_id", orderID))
	start := time.Now()
	o, err := s.repo.FetchOrderEndpoints(ctx, orderID)
	metrics.ObserveFetch("focus", start, err)
	end(err)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrOrderNotFound)
	}
	return o, nil
}

// InvalidateIndex drops the cached route index and stops.
func (s *RouteService) InvalidateIndex(ctx context.Context) {
	s.invalidate(ctx, routeIDsKey, stopsKey)
}

// InvalidateRoute drops the cached legs and orders of one route.
func (s *RouteService) InvalidateRoute(ctx context.Context, routeID int64) {
	s.invalidate(ctx, routeLegsKey(routeID), routeOrdersKey(routeID))
}

func (s *RouteService) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	for _, key := range keys {
		_ = s.cache.Delete(ctx, key)
	}
}

// readThrough serves key from the cache, falling back to load and storing its
// result for ttl seconds. Cache failures only cost a fetch.
func readThrough[T any](ctx context.Context, cache ports.CacheService, ttl int, key, op string,
	load func(context.Context) (T, error)) (T, error) {
	if cache != nil && ttl > 0 {
		if data, err := cache.Get(ctx, key); err == nil {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.CacheHits.WithLabelValues(op).Inc()
				return v, nil
			}
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
	}

	start := time.Now()
	v, err := load(ctx)
	metrics.ObserveFetch(op, start, err)
	if err != nil {
		var zero T
		return zero, err
	}

	if cache != nil && ttl > 0 {
		if data, err := json.Marshal(v); err == nil {
			_ = cache.Set(ctx, key, data, ttl)
		}
	}
	return v, nil
}
