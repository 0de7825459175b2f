package sqlite_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kabina/kabinaview/internal/adapters/sqlite"
	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSnapshot() *ports.Snapshot {
	started := time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)
	route := int64(100)
	leg := int64(1)
	return &ports.Snapshot{
		Stops: []domain.StopRecord{
			{ID: 1, Name: "Deák tér", Position: domain.GeoCoordinate{Lon: 19.05, Lat: 47.50}, Bearing: 90},
			{ID: 2, Name: "Astoria", Position: domain.GeoCoordinate{Lon: 19.06, Lat: 47.49}},
			{ID: 3, Name: "Unmapped", Position: domain.MissingCoordinate()},
		},
		Cabs: []ports.SnapshotCab{
			{ID: 7, Location: 1, Status: domain.CabFree},
			{ID: 8, Location: 3, Status: domain.CabAssigned},
		},
		Legs: []domain.LegRecord{
			{ID: 2, RouteID: 100, Place: 1, FromStand: 2, ToStand: 1, Distance: 4, Status: domain.LegPlanned},
			{ID: 1, RouteID: 100, Place: 0, FromStand: 1, ToStand: 2, Distance: 3, Status: domain.LegStarted, StartedAt: &started},
		},
		Orders: []ports.SnapshotOrder{
			{
				OrderRow: domain.OrderRow{ID: 500, FromStand: 1, ToStand: 2, MaxWait: 10, LegID: &leg, Received: &started},
				RouteID:  &route,
				Status:   domain.OrderPickedUp,
			},
		},
		TakenAt: started,
	}
}

func TestViewerRepo_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.WriteSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo := sqlite.NewViewerRepo(db)

	legs, err := repo.FetchAllLegs(ctx)
	if err != nil {
		t.Fatalf("legs: %v", err)
	}
	if len(legs) != 2 || legs[0].Place != 0 || legs[1].Place != 1 {
		t.Fatalf("expected legs ordered by place, got %+v", legs)
	}
	if legs[0].StartedAt == nil || legs[0].StartedAt.Hour() != 8 {
		t.Errorf("expected started time to survive, got %v", legs[0].StartedAt)
	}
	if legs[1].StartedAt != nil {
		t.Errorf("expected nil started time, got %v", legs[1].StartedAt)
	}

	cabs, err := repo.FetchEntities(ctx, domain.KindCab)
	if err != nil {
		t.Fatalf("cabs: %v", err)
	}
	if len(cabs) != 2 {
		t.Fatalf("expected 2 cabs, got %d", len(cabs))
	}
	if cabs[0].Position.Lon != 19.05 || cabs[0].Status != domain.CabFree {
		t.Errorf("unexpected cab %+v", cabs[0])
	}
	if !math.IsNaN(cabs[1].Position.Lat) {
		t.Errorf("expected a missing coordinate for the unmapped stand, got %+v", cabs[1].Position)
	}

	orders, err := repo.FetchOrderSummary(ctx, 100)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 1 || orders[0].LegID == nil || *orders[0].LegID != 1 {
		t.Errorf("unexpected orders %+v", orders)
	}

	focus, err := repo.FetchOrderEndpoints(ctx, 500)
	if err != nil {
		t.Fatalf("focus: %v", err)
	}
	if focus == nil || focus.RouteID != 100 || focus.FromStand != 1 {
		t.Errorf("unexpected focus %+v", focus)
	}
	if missing, err := repo.FetchOrderEndpoints(ctx, 999); err != nil || missing != nil {
		t.Errorf("expected nil, nil for an unknown order, got %+v, %v", missing, err)
	}

	takenAt, err := repo.TakenAt(ctx)
	if err != nil {
		t.Fatalf("taken at: %v", err)
	}
	if !takenAt.Equal(testSnapshot().TakenAt) {
		t.Errorf("expected taken_at %v, got %v", testSnapshot().TakenAt, takenAt)
	}
}

func TestViewerRepo_StopsKeepMissingCoordinates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.WriteSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}

	stops, err := sqlite.NewViewerRepo(db).FetchStops(ctx)
	if err != nil {
		t.Fatalf("stops: %v", err)
	}
	if len(stops) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(stops))
	}
	if stops[0].Bearing != 90 || stops[0].Name != "Deák tér" {
		t.Errorf("unexpected stop %+v", stops[0])
	}
	if stops[2].Position.Valid() {
		t.Errorf("expected stop 3 without coordinates, got %+v", stops[2].Position)
	}
}

func TestWriteSnapshot_Replaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.WriteSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := db.WriteSnapshot(ctx, &ports.Snapshot{}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	legs, err := sqlite.NewViewerRepo(db).FetchAllLegs(ctx)
	if err != nil {
		t.Fatalf("legs: %v", err)
	}
	if len(legs) != 0 {
		t.Errorf("expected an empty snapshot, got %d legs", len(legs))
	}
}
