package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:      fiber.StatusBadRequest,
	apperr.KindUnauthenticated: fiber.StatusUnauthorized,
	apperr.KindForbidden:       fiber.StatusForbidden,
	apperr.KindNotFound:        fiber.StatusNotFound,
	apperr.KindConflict:        fiber.StatusConflict,
	apperr.KindInvalidState:    fiber.StatusConflict,
	apperr.KindUnavailable:     fiber.StatusServiceUnavailable,
	apperr.KindInternal:        fiber.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k apperr.Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler in the response
// envelope. Details of store and internal failures are logged, not sent.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		body := fiber.Map{"success": false}

		var appErr *apperr.Error
		var fiberErr *fiber.Error
		status := fiber.StatusInternalServerError

		switch {
		case errors.As(err, &appErr):
			status = StatusFor(appErr.Kind)
			body["message"] = appErr.Message
			if appErr.Message == "" {
				body["message"] = appErr.Kind.String()
			}
			if len(appErr.Fields) > 0 {
				body["errors"] = appErr.Fields
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body["message"] = fiberErr.Message
		default:
			body["message"] = "internal server error"
		}

		if status >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method":     c.Method(),
				"path":       c.Path(),
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			}).Error("request failed")
			if status == fiber.StatusServiceUnavailable {
				body["message"] = "service temporarily unavailable"
			} else {
				body["message"] = "internal server error"
			}
		}

		return c.Status(status).JSON(body)
	}
}
