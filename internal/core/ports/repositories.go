package ports

import (
	"context"
	"time"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// ViewerRepository is the read-only data-access collaborator. It returns flat
// records; the core never issues queries itself.
type ViewerRepository interface {
	FetchEntities(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error)
	FetchLegsForRoute(ctx context.Context, routeID int64) ([]domain.LegRecord, error)
	// FetchAllLegs returns every leg ordered by route id, then place.
	FetchAllLegs(ctx context.Context) ([]domain.LegRecord, error)
	FetchStops(ctx context.Context) ([]domain.StopRecord, error)
	FetchOrderSummary(ctx context.Context, routeID int64) ([]domain.OrderRow, error)
	FetchOrderEndpoints(ctx context.Context, orderID int64) (*domain.OrderEndpoints, error)
}

// SnapshotSource reads a consistent copy of the dispatcher tables.
type SnapshotSource interface {
	ReadSnapshot(ctx context.Context) (*Snapshot, error)
}

// SnapshotWriter stores a point-in-time copy of the dispatcher tables for
// historical replay.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap *Snapshot) error
}

// Snapshot is everything a historical viewer session reads.
type Snapshot struct {
	Cabs    []SnapshotCab
	Orders  []SnapshotOrder
	Stops   []domain.StopRecord
	Legs    []domain.LegRecord
	TakenAt time.Time
}

// SnapshotCab is a cab row; Location is the stand it was last seen at.
type SnapshotCab struct {
	ID       int64
	Location int64
	Status   int
}

// SnapshotOrder carries an order row together with its route and status.
type SnapshotOrder struct {
	domain.OrderRow
	RouteID *int64
	Status  int
}
