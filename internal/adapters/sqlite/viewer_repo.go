package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// ViewerRepo implements ports.ViewerRepository over a snapshot file, for
// replaying a past dispatcher state.
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

// FetchEntities returns cabs, orders or stops as of the snapshot.
func (r *ViewerRepo) FetchEntities(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
	q, ok := entityQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	rows, err := r.db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.EntitySnapshot
	for rows.Next() {
		var (
			e        = domain.EntitySnapshot{Kind: kind}
			lon, lat sql.NullFloat64
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
	rows, err := r.db.conn.QueryContext(ctx, `SELECT `+legColumns+` FROM leg WHERE route_id = ? ORDER BY place`, routeID)
	if err != nil {
		return nil, fmt.Errorf("fetch legs of route %d: %w", routeID, err)
	}
	return scanLegs(rows)
}

// FetchAllLegs returns every leg ordered by route id, then place.
func (r *ViewerRepo) FetchAllLegs(ctx context.Context) ([]domain.LegRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT `+legColumns+` FROM leg ORDER BY route_id, place`)
	if err != nil {
		return nil, fmt.Errorf("fetch legs: %w", err)
	}
	return scanLegs(rows)
}

func scanLegs(rows *sql.Rows) ([]domain.LegRecord, error) {
	defer rows.Close()
	var legs []domain.LegRecord
	for rows.Next() {
		var (
			l                  domain.LegRecord
			started, completed sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.RouteID, &l.Place, &l.FromStand, &l.ToStand, &l.Status,
			&l.Distance, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan leg: %w", err)
		}
		l.StartedAt = parseTime(started)
		l.CompletedAt = parseTime(completed)
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

// FetchStops returns every stop.
func (r *ViewerRepo) FetchStops(ctx context.Context) ([]domain.StopRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
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
			lat, lon sql.NullFloat64
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
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, from_stand, to_stand, COALESCE(max_wait, 0), COALESCE(max_loss, 0),
		       COALESCE(distance, 0), leg_id, COALESCE(eta, 0), received, started, completed
		FROM taxi_order WHERE route_id = ? ORDER BY leg_id`, routeID)
	if err != nil {
		return nil, fmt.Errorf("fetch orders of route %d: %w", routeID, err)
	}
	defer rows.Close()

	var orders []domain.OrderRow
	for rows.Next() {
		var (
			o                            domain.OrderRow
			legID                        sql.NullInt64
			received, started, completed sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.FromStand, &o.ToStand, &o.MaxWait, &o.MaxLoss,
			&o.Distance, &legID, &o.ETA, &received, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if legID.Valid {
			id := legID.Int64
			o.LegID = &id
		}
		o.Received = parseTime(received)
		o.Started = parseTime(started)
		o.Completed = parseTime(completed)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// FetchOrderEndpoints returns nil, nil for an unknown order.
func (r *ViewerRepo) FetchOrderEndpoints(ctx context.Context, orderID int64) (*domain.OrderEndpoints, error) {
	var o domain.OrderEndpoints
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT o.id, COALESCE(o.route_id, 0), o.from_stand, o.to_stand
		FROM taxi_order o WHERE o.id = ?`, orderID,
	).Scan(&o.OrderID, &o.RouteID, &o.FromStand, &o.ToStand)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch order %d: %w", orderID, err)
	}
	return &o, nil
}

// TakenAt returns when the snapshot was written, zero for an empty file.
func (r *ViewerRepo) TakenAt(ctx context.Context) (time.Time, error) {
	var s string
	err := r.db.conn.QueryRowContext(ctx, `SELECT taken_at FROM snapshot_meta WHERE id = 1`).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func coordinate(lon, lat sql.NullFloat64) domain.GeoCoordinate {
	c := domain.MissingCoordinate()
	if lon.Valid {
		c.Lon = lon.Float64
	}
	if lat.Valid {
		c.Lat = lat.Float64
	}
	return c
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
