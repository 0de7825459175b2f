package http

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	View          string `json:"view"`
	RouteIndex    int    `json:"route_index"`
	OrderID       int64  `json:"order_id"`
	Magnification int    `json:"magnification"`
}

// SessionResponse pairs a session id with its latest frame.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	State     any           `json:"state"`
	Frame     *domain.Frame `json:"frame"`
}

// RouteSummary is one entry of the route browser index.
type RouteSummary struct {
	Index   int   `json:"index"`
	RouteID int64 `json:"route_id"`
}

// CreateSessionHandler opens a viewer session and renders its first frame.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		initial := domain.NavigationState{
			RouteIndex: req.RouteIndex,
			FocusOrder: req.OrderID,
			Viewport:   domain.FullExtent(),
		}
		if req.View != "" {
			v, err := domain.ParseViewKind(req.View)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			initial.View = v
		}
		if req.Magnification > 0 {
			initial.Viewport.Magnification = req.Magnification
		}
		if req.RouteIndex < 0 || req.OrderID < 0 {
			return errBadRequest(c, "route_index and order_id must not be negative")
		}

		s, frame, err := deps.Sessions.Create(c.UserContext(), initial)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + s.ID())
		return c.Status(fiber.StatusCreated).JSON(SessionResponse{
			SessionID: s.ID(),
			State:     s.State(),
			Frame:     frame,
		})
	}
}

// GetFrameHandler returns the last committed frame of a session.
func GetFrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		frame := s.Frame()
		if frame == nil {
			return errNotFound(c, "no frame rendered yet")
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(SessionResponse{SessionID: s.ID(), State: s.State(), Frame: frame})
	}
}

// FramePNGHandler rasterizes the last committed frame of a session.
func FramePNGHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Renderer == nil {
			return errUnavailable(c, "renderer not configured")
		}
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		frame := s.Frame()
		if frame == nil {
			return errNotFound(c, "no frame rendered yet")
		}

		var buf bytes.Buffer
		if err := deps.Renderer.Render(c.UserContext(), frame, &buf); err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "no-store")
		c.Type("png")
		return c.Send(buf.Bytes())
	}
}

// CommandHandler applies one operator command and returns the new frame.
// The body names the command directly, as a browser key or as a legacy
// key code.
func CommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		s, err := deps.Sessions.Get(id)
		if err != nil {
			return errFromDomain(c, err)
		}

		var req CommandRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		cmd, err := req.Resolve(s.State().View == domain.ViewRoute)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		frame, err := deps.Sessions.Handle(c.UserContext(), id, cmd)
		if err != nil {
			return errFromDomain(c, err)
		}
		LoggerFromCtx(c.UserContext()).Debug("command handled",
			"session", id, "command", cmd.String(), "seq", frame.Seq)
		return c.JSON(SessionResponse{SessionID: id, State: s.State(), Frame: frame})
	}
}

// DeleteSessionHandler quits a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		frame, err := deps.Sessions.Close(id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(SessionResponse{SessionID: id, Frame: frame})
	}
}

// ListRoutesHandler returns the route browser index: every route id with
// its 1-based position.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids, err := deps.Routes.RouteIDs(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(ids)
		routes := []RouteSummary{}
		for i := offset; i < total && i < offset+limit; i++ {
			routes = append(routes, RouteSummary{Index: i + 1, RouteID: ids[i]})
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: routes, Pagination: pg})
	}
}

// GetRouteHandler returns an assembled route. With ?order= the order's
// stands are highlighted when the order rides this route.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || routeID <= 0 {
			return errBadRequest(c, "route id must be a positive integer")
		}
		ctx := c.UserContext()

		var focus *domain.OrderEndpoints
		if q := c.Query("order"); q != "" {
			orderID, err := strconv.ParseInt(q, 10, 64)
			if err != nil || orderID <= 0 {
				return errBadRequest(c, "order must be a positive integer")
			}
			ep, err := deps.Routes.Focus(ctx, orderID)
			if err != nil {
				return errFromDomain(c, err)
			}
			if ep.RouteID == routeID {
				focus = ep
			}
		}

		route, _, err := deps.Routes.Route(ctx, routeID, focus)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(route)
	}
}

// RouteOrdersHandler lists the orders served by a route.
func RouteOrdersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || routeID <= 0 {
			return errBadRequest(c, "route id must be a positive integer")
		}
		orders, err := deps.Routes.Orders(c.UserContext(), routeID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if orders == nil {
			orders = []domain.OrderRow{}
		}
		return c.JSON(orders)
	}
}

// EntitiesHandler returns the current snapshots of one entity kind.
// ?refresh=true drops the cached copy first.
func EntitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, err := domain.ParseEntityKind(c.Params("kind"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		ctx := c.UserContext()
		if c.QueryBool("refresh", false) {
			deps.Entities.Invalidate(ctx, kind)
		}
		entities, err := deps.Entities.Entities(ctx, kind)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if entities == nil {
			entities = []domain.EntitySnapshot{}
		}
		return c.JSON(entities)
	}
}

// StopsHandler returns every stand with its bearing.
func StopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stops, err := deps.Routes.Stops(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if stops == nil {
			stops = []domain.StopRecord{}
		}
		return c.JSON(stops)
	}
}

// isNotFound reports whether err means the requested thing does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrRouteNotFound) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrSessionNotFound)
}
