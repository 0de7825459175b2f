package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/kabina/kabinaview/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting per IP
	if deps.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, 429, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	d := deps.requestTimeout()
	v1 := app.Group("/v1")

	// Viewer sessions
	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), d))
	v1.Get("/sessions/:id/frame", GetFrameHandler(deps))
	v1.Get("/sessions/:id/frame.png", timeout.NewWithContext(FramePNGHandler(deps), d))
	v1.Post("/sessions/:id/commands", timeout.NewWithContext(CommandHandler(deps), d))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))

	// Read-only dispatcher data
	v1.Get("/routes", timeout.NewWithContext(ListRoutesHandler(deps), d))
	v1.Get("/routes/:id", timeout.NewWithContext(GetRouteHandler(deps), d))
	v1.Get("/routes/:id/orders", timeout.NewWithContext(RouteOrdersHandler(deps), d))
	v1.Get("/entities/:kind", timeout.NewWithContext(EntitiesHandler(deps), d))
	v1.Get("/stops", timeout.NewWithContext(StopsHandler(deps), d))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), d))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket key channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
