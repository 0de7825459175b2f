package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
	"github.com/kabina/kabinaview/internal/pkg/telemetry"
)

// HelpLines is the key reference attached to frames after ShowHelp.
var HelpLines = []string{
	"arrows      pan by one screen",
	"+ / -       zoom in / out",
	"1 / 2 / 3   orders / cabs / stops",
	"shift+up    previous route",
	"shift+down  next route",
	"space       refresh",
	"h           this help",
	"esc         quit",
}

// Operator notices.
const (
	NoticeRouteNotFound = "route not found"
	NoticeOrderNotFound = "order not found"
	NoticeClosed        = "session closed"
)

// ViewerOptions fixes the canvas a session draws on.
type ViewerOptions struct {
	Box         domain.BoundingBox
	FullWidth   int
	FullHeight  int
	RouteMargin int
	EntityLayer *EntityLayer
	RouteLayer  *RouteLayer
}

// ViewerService drives one viewer session: it feeds commands to its
// Controller, fetches what the resulting state shows and builds frames.
//
// Commands are applied in arrival order under mu. Fetches run outside the
// lock; a newer command cancels the fetch of an older one and only the newest
// result is committed.
type ViewerService struct {
	id        string
	entities  *EntityService
	routes    *RouteService
	publisher ports.EventPublisher

	entityLayer *EntityLayer
	routeLayer  *RouteLayer
	mapProj     geospatial.Projector
	routeProj   geospatial.Projector
	width       int
	height      int

	mu         sync.Mutex
	ctrl       *Controller
	routeCount int
	seq        uint64
	cancel     context.CancelFunc
	last       *domain.Frame
	closed     bool
	lastUsed   time.Time
}

// NewViewerService creates a session. publisher may be nil.
func NewViewerService(id string, entities *EntityService, routes *RouteService, publisher ports.EventPublisher,
	opts ViewerOptions, initial domain.NavigationState) *ViewerService {
	if opts.EntityLayer == nil {
		opts.EntityLayer = NewEntityLayer()
	}
	if opts.RouteLayer == nil {
		opts.RouteLayer = NewRouteLayer()
	}
	vp := geospatial.Viewport{FullWidth: opts.FullWidth, FullHeight: opts.FullHeight}
	return &ViewerService{
		id:          id,
		entities:    entities,
		routes:      routes,
		publisher:   publisher,
		entityLayer: opts.EntityLayer,
		routeLayer:  opts.RouteLayer,
		mapProj:     geospatial.NewProjector(opts.Box, opts.FullWidth, opts.FullHeight, 0),
		routeProj:   geospatial.NewProjector(opts.Box, opts.FullWidth, opts.FullHeight, opts.RouteMargin),
		width:       opts.FullWidth,
		height:      opts.FullHeight,
		ctrl:        NewController(vp, initial),
		lastUsed:    time.Now(),
	}
}

// ID returns the session id.
func (s *ViewerService) ID() string { return s.id }

// State returns the current navigation state.
func (s *ViewerService) State() domain.NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// Frame returns the last committed frame, or nil before Open.
func (s *ViewerService) Frame() *domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	f := *s.last
	return &f
}

// Closed reports whether Quit was handled.
func (s *ViewerService) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IdleSince returns when the session last handled a command.
func (s *ViewerService) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Open renders the first frame. When the initial state names an order, the
// session starts on that order's route.
func (s *ViewerService) Open(ctx context.Context) (*domain.Frame, error) {
	var notice string
	s.mu.Lock()
	initial := s.ctrl.State()
	s.mu.Unlock()

	if initial.FocusOrder != 0 {
		focus, err := s.routes.Focus(ctx, initial.FocusOrder)
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			notice = NoticeOrderNotFound
		case err != nil:
			return nil, fmt.Errorf("open session: %w", err)
		default:
			idx, err := s.routes.IndexOf(ctx, focus.RouteID)
			if err != nil {
				return nil, fmt.Errorf("open session: %w", err)
			}
			if idx > 0 {
				initial.View = domain.ViewRoute
				initial.RouteIndex = idx
			}
		}
	}

	count := 0
	if ids, err := s.routes.RouteIDs(ctx); err == nil {
		count = len(ids)
	}

	s.mu.Lock()
	s.routeCount = count
	if initial != s.ctrl.State() {
		s.ctrl.Rollback(initial)
	}
	req := s.ctrl.Current()
	req.RouteCount = s.routeCount
	seq, fctx := s.begin(ctx)
	s.mu.Unlock()

	frame, err := s.render(fctx, req)
	frame, err = s.commit(ctx, seq, req, frame, err)
	if err != nil {
		return nil, err
	}
	if notice != "" && frame.Notice == "" {
		frame.Notice = notice
		s.publishNotice(ctx, notice)
	}
	return frame, nil
}

// Handle applies one command and returns the resulting frame. A data-access
// failure yields the previous frame marked stale, never an error.
func (s *ViewerService) Handle(ctx context.Context, cmd domain.Command) (*domain.Frame, error) {
	ctx, end := telemetry.StartSpan(ctx, telemetry.SpanHandleCommand,
		attribute.String("session", s.id), attribute.String("command", cmd.String()))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		end(domain.ErrSessionClosed)
		return nil, domain.ErrSessionClosed
	}
	s.lastUsed = time.Now()
	metrics.CommandsHandled.WithLabelValues(cmd.String()).Inc()
	req := s.ctrl.Handle(cmd, s.routeCount)

	if req.Quit {
		frame := s.closeLocked()
		s.mu.Unlock()
		end(nil)
		s.publishNotice(ctx, NoticeClosed)
		return frame, nil
	}
	if frame := s.recropLocked(req); frame != nil {
		out := *frame
		s.mu.Unlock()
		end(nil)
		s.emit(ctx, &out, "")
		return &out, nil
	}
	seq, fctx := s.begin(ctx)
	s.mu.Unlock()

	frame, err := s.render(fctx, req)
	frame, err = s.commit(ctx, seq, req, frame, err)
	end(err)
	return frame, err
}

// recropLocked serves pan and zoom from the last frame: draw commands are in
// canvas coordinates, so only the visible rectangle changes. It returns nil
// when a fetch is needed, that is for any other command, while a fetch is in
// flight or when the last frame shows something else.
func (s *ViewerService) recropLocked(req RenderRequest) *domain.Frame {
	switch req.Command.Type {
	case domain.CmdPanUp, domain.CmdPanDown, domain.CmdPanLeft, domain.CmdPanRight,
		domain.CmdZoomIn, domain.CmdZoomOut:
	default:
		return nil
	}
	if s.last == nil || s.cancel != nil ||
		s.last.View != req.State.View || s.last.RouteIndex != req.State.RouteIndex {
		return nil
	}
	s.seq++
	f := *s.last
	f.Seq = s.seq
	f.Viewport = req.Viewport
	f.Magnification = req.State.Viewport.Magnification
	f.Help = nil
	if !f.Stale {
		f.Notice = ""
	}
	f.RenderedAt = time.Now()
	s.last = &f
	return &f
}

// Close ends the session without a command.
func (s *ViewerService) Close() *domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.closeLocked()
}

func (s *ViewerService) closeLocked() *domain.Frame {
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	f := s.currentFrameLocked()
	if s.last != nil {
		f = *s.last
	}
	f.Closed = true
	f.Notice = NoticeClosed
	f.RenderedAt = time.Now()
	s.last = &f
	out := f
	return &out
}

// begin starts a new fetch generation, cancelling the previous one.
// Callers hold mu.
func (s *ViewerService) begin(ctx context.Context) (uint64, context.Context) {
	s.seq++
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return s.seq, fctx
}

// render fetches and draws the state in req.
func (s *ViewerService) render(ctx context.Context, req RenderRequest) (*domain.Frame, error) {
	frame := s.emptyFrame(req)
	if req.Help {
		frame.Help = HelpLines
	}

	if kind, ok := req.State.View.EntityKind(); ok {
		if req.Invalidate {
			s.entities.Invalidate(ctx, kind)
		}
		entities, err := s.entities.Entities(ctx, kind)
		if err != nil {
			return nil, err
		}
		frame.Commands = s.entityLayer.Render(entities, s.mapProj)
		return &frame, nil
	}

	if req.Invalidate {
		s.routes.InvalidateIndex(ctx)
	}
	ids, err := s.routes.RouteIDs(ctx)
	if err != nil {
		return nil, err
	}
	frame.RouteCount = len(ids)
	if req.State.RouteIndex < 1 || req.State.RouteIndex > len(ids) {
		metrics.RoutesNotFound.Inc()
		return &frame, fmt.Errorf("route index %d: %w", req.State.RouteIndex, domain.ErrRouteNotFound)
	}
	routeID := ids[req.State.RouteIndex-1]
	if req.Invalidate {
		s.routes.InvalidateRoute(ctx, routeID)
	}

	var focus *domain.OrderEndpoints
	if req.State.FocusOrder != 0 {
		focus, err = s.routes.Focus(ctx, req.State.FocusOrder)
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			focus = nil
			frame.Notice = NoticeOrderNotFound
		case err != nil:
			return nil, err
		case focus.RouteID != routeID:
			focus = nil
		}
	}

	route, stops, err := s.routes.Route(ctx, routeID, focus)
	if err != nil {
		return &frame, err
	}
	orders, err := s.routes.Orders(ctx, routeID)
	if err != nil {
		return nil, err
	}

	frame.RouteID = routeID
	frame.Route = route
	frame.Orders = orders
	frame.Commands = s.routeLayer.Render(route, stops, s.routeProj)
	frame.Panel = RoutePanel(route, orders)
	return &frame, nil
}

// commit stores the outcome of generation seq unless a newer command has
// started since.
func (s *ViewerService) commit(ctx context.Context, seq uint64, req RenderRequest, frame *domain.Frame, err error) (*domain.Frame, error) {
	s.mu.Lock()
	if seq != s.seq || s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSuperseded
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	var notice string
	switch {
	case err == nil:
		s.routeCount = frame.RouteCount
		notice = frame.Notice
	case errors.Is(err, domain.ErrRouteNotFound):
		if frame != nil && frame.RouteCount > 0 {
			s.routeCount = frame.RouteCount
		}
		s.ctrl.Rollback(req.Previous)
		notice = NoticeRouteNotFound
		frame = s.retainedLocked(req, notice, false)
	case ctx.Err() != nil:
		s.mu.Unlock()
		return nil, ctx.Err()
	default:
		slog.Warn("viewer fetch failed, keeping previous frame",
			"session", s.id, "view", req.State.View, "error", err)
		notice = "data unavailable: " + err.Error()
		frame = s.retainedLocked(req, notice, true)
	}

	frame.Seq = seq
	frame.RenderedAt = time.Now()
	s.last = frame
	out := *frame
	s.mu.Unlock()

	s.emit(ctx, &out, notice)
	return &out, nil
}

// emit counts a committed frame and publishes it with its notice.
func (s *ViewerService) emit(ctx context.Context, frame *domain.Frame, notice string) {
	metrics.FramesRendered.WithLabelValues(string(frame.View), strconv.FormatBool(frame.Stale)).Inc()
	if notice != "" {
		s.publishNotice(ctx, notice)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFrame(ctx, s.id, frame); err != nil {
			slog.Warn("publish frame failed", "session", s.id, "error", err)
		}
	}
}

// retainedLocked keeps the last render on screen with a notice attached. The
// frame still reports the controller's current state, after any rollback, so
// navigation stays in step with what clients crop.
func (s *ViewerService) retainedLocked(req RenderRequest, notice string, stale bool) *domain.Frame {
	cur := s.currentFrameLocked()
	var f domain.Frame
	if s.last != nil {
		f = *s.last
		if f.View != cur.View || f.RouteIndex != cur.RouteIndex {
			f.RouteID = 0
			f.Route = nil
			f.Orders = nil
			f.Panel = nil
		}
		f.View = cur.View
		f.RouteIndex = cur.RouteIndex
		f.RouteCount = cur.RouteCount
		f.FocusOrder = cur.FocusOrder
		f.Magnification = cur.Magnification
		f.Viewport = cur.Viewport
	} else {
		f = cur
	}
	f.Notice = notice
	f.Stale = stale
	f.Help = nil
	if req.Help {
		f.Help = HelpLines
	}
	return &f
}

func (s *ViewerService) currentFrameLocked() domain.Frame {
	req := s.ctrl.Current()
	req.RouteCount = s.routeCount
	return s.emptyFrame(req)
}

func (s *ViewerService) emptyFrame(req RenderRequest) domain.Frame {
	return domain.Frame{
		View:          req.State.View,
		RouteIndex:    req.State.RouteIndex,
		RouteCount:    req.RouteCount,
		FocusOrder:    req.State.FocusOrder,
		Magnification: req.State.Viewport.Magnification,
		Viewport:      req.Viewport,
		CanvasWidth:   s.width,
		CanvasHeight:  s.height,
	}
}

func (s *ViewerService) publishNotice(ctx context.Context, notice string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotice(ctx, s.id, notice); err != nil {
		slog.Warn("publish notice failed", "session", s.id, "error", err)
	}
}
