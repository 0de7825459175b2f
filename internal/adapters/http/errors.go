package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	if reqID == "" {
		reqID = RequestIDFromCtx(c.UserContext())
	}
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errGone returns a 410 error for sessions that were quit.
func errGone(c *fiber.Ctx, msg string) error {
	return newError(c, 410, "gone", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "unavailable", msg)
}

// errFromDomain maps core sentinel errors to responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRouteNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		return errGone(c, err.Error())
	case errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrUnknownKind):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSuperseded):
		return errConflict(c, err.Error())
	}
	return errInternal(c, err.Error())
}
