package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
)

// ViewerRepo implements ports.ViewerRepository over the live dispatcher
// schema.
type ViewerRepo struct {
	db *DB
}

// NewViewerRepo creates a new ViewerRepo.
func NewViewerRepo(db *DB) *ViewerRepo {
	return &ViewerRepo{db: db}
}

var entityQueries = map[domain.EntityKind]string{
	domain.KindOrder: `
		SELECT o.id, s.longitude, s.latitude, o.status
		FROM taxi_order o LEFT JOIN stop s ON s.id = o.from_stand
		ORDER BY o.id`,
	domain.KindCab: `
		SELECT c.id, s.longitude, s.latitude, c.status
		FROM cab c LEFT JOIN stop s ON s.id = c.location
		ORDER BY c.id`,
	domain.KindStop: `
		SELECT s.id, s.longitude, s.latitude, 0
		FROM stop s
		ORDER BY s.id`,
}

// FetchEntities returns cabs at their current stand, orders at their pick-up
// stand, or stops. Rows without a joined stand carry a missing coordinate.
func (r *ViewerRepo) FetchEntities(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
	q, ok := entityQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.EntitySnapshot
	for rows.Next() {
		var (
			e        = domain.EntitySnapshot{Kind: kind}
			lon, lat *float64
		)
		if err := rows.Scan(&e.ID, &lon, &lat, &e.Status); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		e.Position = coordinate(lon, lat)
		out = append(out, e)
	}
	return out, rows.Err()
}

const legColumns = `id, route_id, place, from_stand, to_stand, status, COALESCE(distance, 0), started, completed`

// FetchLegsForRoute returns the legs of one route ordered by place.
func (r *ViewerRepo) FetchLegsForRoute(ctx context.Context, routeID int64) ([]domain.LegRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+legColumns+` FROM leg WHERE route_id = $1 ORDER BY place`, routeID)
	if err != nil {
		return nil, fmt.Errorf("fetch legs of route %d: %w", routeID, err)
	}
	return scanLegs(rows)
}

// FetchAllLegs returns every leg ordered by route id, then place.
func (r *ViewerRepo) FetchAllLegs(ctx context.Context) ([]domain.LegRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+legColumns+` FROM leg ORDER BY route_id, place`)
	if err != nil {
		return nil, fmt.Errorf("fetch legs: %w", err)
	}
	return scanLegs(rows)
}

func scanLegs(rows pgx.Rows) ([]domain.LegRecord, error) {
	defer rows.Close()
	var legs []domain.LegRecord
	for rows.Next() {
		var l domain.LegRecord
		if err := rows.Scan(&l.ID, &l.RouteID, &l.Place, &l.FromStand, &l.ToStand, &l.Status,
			&l.Distance, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan leg: %w", err)
		}
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

// FetchStops returns every stop.
func (r *ViewerRepo) FetchStops(ctx context.Context) ([]domain.StopRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, COALESCE(bearing, 0), latitude, longitude, COALESCE(name, '')
		FROM stop ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("fetch stops: %w", err)
	}
	defer rows.Close()

	var stops []domain.StopRecord
	for rows.Next() {
		var (
			s        domain.StopRecord
			lat, lon *float64
		)
		if err := rows.Scan(&s.ID, &s.Bearing, &lat, &lon, &s.Name); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.Position = coordinate(lon, lat)
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// FetchOrderSummary returns the orders served by a route, ordered by leg.
func (r *ViewerRepo) FetchOrderSummary(ctx context.Context, routeID int64) ([]domain.OrderRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, from_stand, to_stand, COALESCE(max_wait, 0), COALESCE(max_loss, 0),
		       COALESCE(distance, 0), leg_id, COALESCE(eta, 0), received, started, completed
		FROM taxi_order WHERE route_id = $1 ORDER BY leg_id`, routeID)
	if err != nil {
		return nil, fmt.Errorf("fetch orders of route %d: %w", routeID, err)
	}
	defer rows.Close()

	var orders []domain.OrderRow
	for rows.Next() {
		var o domain.OrderRow
		if err := rows.Scan(&o.ID, &o.FromStand, &o.ToStand, &o.MaxWait, &o.MaxLoss,
			&o.Distance, &o.LegID, &o.ETA, &o.Received, &o.Started, &o.Completed); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// FetchOrderEndpoints returns nil, nil for an unknown order.
func (r *ViewerRepo) FetchOrderEndpoints(ctx context.Context, orderID int64) (*domain.OrderEndpoints, error) {
	var o domain.OrderEndpoints
	err := r.db.Pool.QueryRow(ctx, `
		SELECT o.id, COALESCE(o.route_id, 0), o.from_stand, o.to_stand
		FROM taxi_order o WHERE o.id = $1`, orderID,
	).Scan(&o.OrderID, &o.RouteID, &o.FromStand, &o.ToStand)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch order %d: %w", orderID, err)
	}
	return &o, nil
}

// ReadSnapshot copies every table a historical session needs, inside one
// read-only transaction so the tables agree with each other.
func (r *ViewerRepo) ReadSnapshot(ctx context.Context) (*ports.Snapshot, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap := &ports.Snapshot{}

	rows, err := tx.Query(ctx, `SELECT id, COALESCE(location, 0), status FROM cab ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot cabs: %w", err)
	}
	for rows.Next() {
		var c ports.SnapshotCab
		if err := rows.Scan(&c.ID, &c.Location, &c.Status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cab: %w", err)
		}
		snap.Cabs = append(snap.Cabs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT id, from_stand, to_stand, COALESCE(max_wait, 0), COALESCE(max_loss, 0),
		       COALESCE(distance, 0), leg_id, COALESCE(eta, 0), received, started, completed,
		       route_id, status
		FROM taxi_order ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot orders: %w", err)
	}
	for rows.Next() {
		var o ports.SnapshotOrder
		if err := rows.Scan(&o.ID, &o.FromStand, &o.ToStand, &o.MaxWait, &o.MaxLoss,
			&o.Distance, &o.LegID, &o.ETA, &o.Received, &o.Started, &o.Completed,
			&o.RouteID, &o.Status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		snap.Orders = append(snap.Orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT `+legColumns+` FROM leg ORDER BY route_id, place`)
	if err != nil {
		return nil, fmt.Errorf("snapshot legs: %w", err)
	}
	if snap.Legs, err = scanLegs(rows); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `
		SELECT id, COALESCE(bearing, 0), latitude, longitude, COALESCE(name, '')
		FROM stop ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot stops: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s        domain.StopRecord
			lat, lon *float64
		)
		if err := rows.Scan(&s.ID, &s.Bearing, &lat, &lon, &s.Name); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		s.Position = coordinate(lon, lat)
		snap.Stops = append(snap.Stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.TakenAt = time.Now().UTC()
	return snap, nil
}

func coordinate(lon, lat *float64) domain.GeoCoordinate {
	c := domain.MissingCoordinate()
	if lon != nil {
		c.Lon = *lon
	}
	if lat != nil {
		c.Lat = *lat
	}
	return c
}
