package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/kabina/kabinaview/internal/adapters/http"
	"github.com/kabina/kabinaview/internal/adapters/raster"
	"github.com/kabina/kabinaview/internal/adapters/sqlite"
	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/core/usecases"
)

// setupSnapshotApp serves a historical snapshot from an in-memory sqlite
// database through the full stack, PNG renderer included.
func setupSnapshotApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	route := int64(100)
	snap := &ports.Snapshot{
		Stops: []domain.StopRecord{
			{ID: 1, Name: "Deák tér", Position: domain.GeoCoordinate{Lon: 19.05, Lat: 47.50}, Bearing: 90},
			{ID: 2, Name: "Astoria", Position: domain.GeoCoordinate{Lon: 19.06, Lat: 47.49}},
			{ID: 3, Name: "Blaha", Position: domain.GeoCoordinate{Lon: 19.07, Lat: 47.50}},
		},
		Cabs: []ports.SnapshotCab{{ID: 7, Location: 1, Status: domain.CabFree}},
		Legs: []domain.LegRecord{
			{ID: 1, RouteID: 100, Place: 0, FromStand: 1, ToStand: 2, Distance: 3, Status: domain.LegStarted},
			{ID: 2, RouteID: 100, Place: 1, FromStand: 2, ToStand: 3, Distance: 4, Status: domain.LegAssigned},
			{ID: 3, RouteID: 200, Place: 0, FromStand: 3, ToStand: 1, Distance: 5, Status: domain.LegPlanned},
		},
		Orders: []ports.SnapshotOrder{
			{OrderRow: domain.OrderRow{ID: 500, FromStand: 1, ToStand: 3}, RouteID: &route, Status: domain.OrderPickedUp},
		},
		TakenAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := db.WriteSnapshot(ctx, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	repo := sqlite.NewViewerRepo(db)
	renderer, err := raster.New(200, "")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	entities := usecases.NewEntityService(repo, nil, 0)
	routes := usecases.NewRouteService(repo, nil, 0)
	opts := usecases.ViewerOptions{Box: budapest, FullWidth: 1600, FullHeight: 1600, RouteMargin: 50}

	app := fiber.New()
	handler.SetupRoutes(app, &handler.Dependencies{
		Sessions: usecases.NewSessionRegistry(entities, routes, nil, opts, time.Minute),
		Routes:   routes,
		Entities: entities,
		Renderer: renderer,
		DB:       db,
		Source:   "sqlite",
	})
	return app
}

func TestSnapshot_RouteSessionEndToEnd(t *testing.T) {
	app := setupSnapshotApp(t)

	s := createSession(t, app, `{"order_id":500}`)
	if s.Frame.View != domain.ViewRoute || s.Frame.RouteID != 100 {
		t.Fatalf("expected route 100, got %q %d", s.Frame.View, s.Frame.RouteID)
	}
	if s.Frame.RouteCount != 2 {
		t.Errorf("expected 2 routes, got %d", s.Frame.RouteCount)
	}
	if s.Frame.Route == nil || s.Frame.Route.Distance != 7 {
		t.Errorf("expected recorded distance 7, got %+v", s.Frame.Route)
	}

	req := httptest.NewRequest("GET", "/v1/sessions/"+s.SessionID+"/frame.png", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("expected 200x200, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSnapshot_ReadyReportsSource(t *testing.T) {
	app := setupSnapshotApp(t)

	code, data := do(t, app, "GET", "/v1/ready", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, data)
	}
	var body struct {
		Source string            `json:"source"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Source != "sqlite" || body.Checks["database"] != "ok" {
		t.Errorf("unexpected readiness %+v", body)
	}
}
