package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kabina/kabinaview/internal/core/ports"
)

// WriteSnapshot replaces the file's contents with snap in one transaction.
func (db *DB) WriteSnapshot(ctx context.Context, snap *ports.Snapshot) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"stop", "cab", "leg", "taxi_order", "snapshot_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertAll(ctx, tx, `INSERT INTO stop (id, name, bearing, latitude, longitude) VALUES (?, ?, ?, ?, ?)`,
		len(snap.Stops), func(i int) []any {
			s := snap.Stops[i]
			return []any{s.ID, s.Name, s.Bearing, nullable(s.Position.Lat), nullable(s.Position.Lon)}
		}); err != nil {
		return fmt.Errorf("insert stops: %w", err)
	}

	if err := insertAll(ctx, tx, `INSERT INTO cab (id, location, status) VALUES (?, ?, ?)`,
		len(snap.Cabs), func(i int) []any {
			c := snap.Cabs[i]
			return []any{c.ID, c.Location, c.Status}
		}); err != nil {
		return fmt.Errorf("insert cabs: %w", err)
	}

	if err := insertAll(ctx, tx, `
		INSERT INTO leg (id, route_id, place, from_stand, to_stand, distance, status, started, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(snap.Legs), func(i int) []any {
			l := snap.Legs[i]
			return []any{l.ID, l.RouteID, l.Place, l.FromStand, l.ToStand, l.Distance, l.Status,
				formatTime(l.StartedAt), formatTime(l.CompletedAt)}
		}); err != nil {
		return fmt.Errorf("insert legs: %w", err)
	}

	if err := insertAll(ctx, tx, `
		INSERT INTO taxi_order (id, from_stand, to_stand, max_wait, max_loss, distance, status,
		                        route_id, leg_id, eta, received, started, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(snap.Orders), func(i int) []any {
			o := snap.Orders[i]
			return []any{o.ID, o.FromStand, o.ToStand, o.MaxWait, o.MaxLoss, o.Distance, o.Status,
				o.RouteID, o.LegID, o.ETA, formatTime(o.Received), formatTime(o.Started), formatTime(o.Completed)}
		}); err != nil {
		return fmt.Errorf("insert orders: %w", err)
	}

	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (id, taken_at) VALUES (1, ?)`,
		takenAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("snapshot written",
		"stops", len(snap.Stops), "cabs", len(snap.Cabs), "legs", len(snap.Legs), "orders", len(snap.Orders))
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// nullable maps the NaN placeholder back to NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
