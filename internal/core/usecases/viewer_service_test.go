package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	notices []string
	frames  int
}

func (p *mockPublisher) PublishNotice(ctx context.Context, sessionID, notice string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice)
	return nil
}

func (p *mockPublisher) PublishFrame(ctx context.Context, sessionID string, frame *domain.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++
	return nil
}

func (p *mockPublisher) noticeList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notices...)
}

// --- Helpers ---

func viewerOptions() usecases.ViewerOptions {
	return usecases.ViewerOptions{Box: budapest, FullWidth: 1600, FullHeight: 1600, RouteMargin: 50}
}

func testCabs() []domain.EntitySnapshot {
	return []domain.EntitySnapshot{
		{Kind: domain.KindCab, ID: 1, Position: domain.GeoCoordinate{Lon: 19.0, Lat: 47.5}, Status: domain.CabFree},
		{Kind: domain.KindCab, ID: 2, Position: domain.GeoCoordinate{Lon: 19.1, Lat: 47.4}, Status: domain.CabAssigned},
	}
}

func viewerRepo() *mockViewerRepo {
	repo := routeRepo()
	repo.fetchEntitiesFn = func(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
		if kind == domain.KindCab {
			return testCabs(), nil
		}
		return nil, nil
	}
	return repo
}

func newViewer(repo *mockViewerRepo, pub *mockPublisher, initial domain.NavigationState) *usecases.ViewerService {
	entities := usecases.NewEntityService(repo, nil, 0)
	routes := usecases.NewRouteService(repo, nil, 0)
	return usecases.NewViewerService("s1", entities, routes, pub, viewerOptions(), initial)
}

// --- Tests ---

func TestViewerService_OpenEntityView(t *testing.T) {
	pub := &mockPublisher{}
	v := newViewer(viewerRepo(), pub, domain.NavigationState{View: domain.ViewCab})

	frame, err := v.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.Commands) != 2 {
		t.Errorf("expected 2 circles, got %d", len(frame.Commands))
	}
	if frame.RouteCount != 3 {
		t.Errorf("expected route count 3, got %d", frame.RouteCount)
	}
	if frame.Seq == 0 || frame.Stale {
		t.Errorf("unexpected frame header %+v", frame)
	}
	if pub.frames != 1 {
		t.Errorf("expected 1 published frame, got %d", pub.frames)
	}
}

func TestViewerService_StepRouteToBoundary(t *testing.T) {
	v := newViewer(viewerRepo(), nil, domain.NavigationState{})
	ctx := context.Background()
	if _, err := v.Open(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, err := v.Handle(ctx, domain.StepRoute(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.View != domain.ViewRoute || frame.RouteID != 20 {
		t.Fatalf("expected route 20 in route view, got view %s route %d", frame.View, frame.RouteID)
	}

	first := frame.Seq
	frame, err = v.Handle(ctx, domain.StepRoute(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.RouteID != 20 || frame.RouteIndex != 2 {
		t.Errorf("expected to stay on route 20, got %d (index %d)", frame.RouteID, frame.RouteIndex)
	}
	if frame.Seq <= first {
		t.Errorf("expected a fresh render at the boundary, seq %d after %d", frame.Seq, first)
	}
}

func TestViewerService_RouteNotFoundRollsBack(t *testing.T) {
	repo := viewerRepo()
	repo.fetchLegsForRouteFn = func(ctx context.Context, routeID int64) ([]domain.LegRecord, error) {
		if routeID == 20 {
			return nil, nil
		}
		return legsOf(routeID), nil
	}
	pub := &mockPublisher{}
	v := newViewer(repo, pub, domain.NavigationState{View: domain.ViewRoute, RouteIndex: 1})
	ctx := context.Background()

	opened, err := v.Open(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opened.RouteID != 10 {
		t.Fatalf("expected route 10, got %d", opened.RouteID)
	}

	frame, err := v.Handle(ctx, domain.StepRoute(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Notice != usecases.NoticeRouteNotFound {
		t.Errorf("expected route-not-found notice, got %q", frame.Notice)
	}
	if frame.RouteID != 10 || len(frame.Commands) != len(opened.Commands) {
		t.Errorf("expected the route 10 render to be kept, got route %d", frame.RouteID)
	}
	if got := v.State().RouteIndex; got != 1 {
		t.Errorf("expected navigation not to advance, index %d", got)
	}
	notices := pub.noticeList()
	if len(notices) != 1 || notices[0] != usecases.NoticeRouteNotFound {
		t.Errorf("expected one published notice, got %v", notices)
	}
}

func TestViewerService_FetchErrorKeepsStaleFrame(t *testing.T) {
	repo := viewerRepo()
	v := newViewer(repo, nil, domain.NavigationState{View: domain.ViewCab})
	ctx := context.Background()

	opened, err := v.Open(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.fetchEntitiesFn = func(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
		return nil, errors.New("connection reset")
	}
	frame, err := v.Handle(ctx, domain.Command{Type: domain.CmdRefresh})
	if err != nil {
		t.Fatalf("expected a stale frame, got error %v", err)
	}
	if !frame.Stale {
		t.Error("expected frame to be marked stale")
	}
	if !strings.Contains(frame.Notice, "connection reset") {
		t.Errorf("expected the failure in the notice, got %q", frame.Notice)
	}
	if len(frame.Commands) != len(opened.Commands) {
		t.Errorf("expected the previous render to be kept, got %d commands", len(frame.Commands))
	}

	// Navigation keeps working while the data is unavailable.
	frame, err = v.Handle(ctx, domain.Command{Type: domain.CmdZoomIn})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, err = v.Handle(ctx, domain.Command{Type: domain.CmdRefresh})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := v.State()
	if frame.Magnification != state.Viewport.Magnification || frame.Magnification != 2 {
		t.Errorf("frame magnification %d, state %d", frame.Magnification, state.Viewport.Magnification)
	}
	if frame.Viewport.Width != 800 || frame.Viewport.Height != 800 {
		t.Errorf("expected an 800x800 crop, got %+v", frame.Viewport)
	}

	frame, err = v.Handle(ctx, domain.SwitchView(domain.ViewStop))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Stale || frame.View != domain.ViewStop || v.State().View != domain.ViewStop {
		t.Errorf("expected a stale stop frame, got view %s stale %v", frame.View, frame.Stale)
	}
}

func TestViewerService_PanAndZoomReuseLastFrame(t *testing.T) {
	repo := viewerRepo()
	var mu sync.Mutex
	fetches := 0
	repo.fetchEntitiesFn = func(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
		mu.Lock()
		fetches++
		mu.Unlock()
		return testCabs(), nil
	}
	v := newViewer(repo, nil, domain.NavigationState{View: domain.ViewCab})
	ctx := context.Background()

	opened, err := v.Open(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, err := v.Handle(ctx, domain.Command{Type: domain.CmdZoomIn})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, err = v.Handle(ctx, domain.Pan(domain.Right))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	n := fetches
	mu.Unlock()
	if n != 1 {
		t.Errorf("expected only the opening fetch, got %d", n)
	}
	if frame.Seq <= opened.Seq {
		t.Errorf("expected a newer frame, seq %d after %d", frame.Seq, opened.Seq)
	}
	want := domain.Rect{X: 800, Y: 0, Width: 800, Height: 800}
	if frame.Viewport != want || frame.Magnification != 2 {
		t.Errorf("expected %+v at x2, got %+v at x%d", want, frame.Viewport, frame.Magnification)
	}
	if len(frame.Commands) != len(opened.Commands) {
		t.Errorf("expected the same draw commands, got %d", len(frame.Commands))
	}
}

func TestViewerService_HelpAndQuit(t *testing.T) {
	v := newViewer(viewerRepo(), nil, domain.NavigationState{View: domain.ViewCab})
	ctx := context.Background()
	if _, err := v.Open(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, err := v.Handle(ctx, domain.Command{Type: domain.CmdShowHelp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.Help) == 0 {
		t.Error("expected help text")
	}

	frame, err = v.Handle(ctx, domain.Command{Type: domain.CmdQuit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Closed {
		t.Error("expected closed frame")
	}
	if _, err := v.Handle(ctx, domain.Command{Type: domain.CmdRefresh}); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestViewerService_NewerCommandSupersedes(t *testing.T) {
	repo := viewerRepo()
	started := make(chan struct{})
	var once sync.Once
	repo.fetchEntitiesFn = func(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
		if kind == domain.KindStop {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return testCabs(), nil
	}
	v := newViewer(repo, nil, domain.NavigationState{View: domain.ViewCab})
	ctx := context.Background()
	if _, err := v.Open(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := v.Handle(ctx, domain.SwitchView(domain.ViewStop))
		errc <- err
	}()
	<-started

	frame, err := v.Handle(ctx, domain.SwitchView(domain.ViewCab))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.View != domain.ViewCab {
		t.Errorf("expected the newest command to win, got %s", frame.View)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, domain.ErrSuperseded) {
			t.Errorf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("older command never returned")
	}
}

func TestViewerService_OpenOnFocusOrder(t *testing.T) {
	repo := viewerRepo()
	repo.fetchOrderEndpointsFn = func(ctx context.Context, orderID int64) (*domain.OrderEndpoints, error) {
		return &domain.OrderEndpoints{OrderID: orderID, RouteID: 20, FromStand: 3, ToStand: 4}, nil
	}
	v := newViewer(repo, nil, domain.NavigationState{FocusOrder: 77})

	frame, err := v.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.View != domain.ViewRoute || frame.RouteID != 20 || frame.RouteIndex != 2 {
		t.Errorf("expected route 20 at index 2, got %s %d %d", frame.View, frame.RouteID, frame.RouteIndex)
	}
	for _, n := range frame.Route.Nodes {
		if !n.Highlight {
			t.Errorf("expected stand %d highlighted", n.Stand)
		}
	}
}
