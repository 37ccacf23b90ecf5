package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"tempinbox/mailbox"
	"tempinbox/providers"
	"tempinbox/store"
	"tempinbox/utils"
)

// respondError converts a domain error into its status and {"error": ...}
// body.
func respondError(c *fiber.Ctx, logger *logrus.Entry, err error) error {
	var upstream *providers.UpstreamError

	switch {
	case errors.Is(err, mailbox.ErrInvalidDomain):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid domain")
	case errors.Is(err, mailbox.ErrInvalidLogin):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid login")
	case errors.Is(err, mailbox.ErrNoMailbox):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No mailbox. Create one first.")
	case errors.Is(err, mailbox.ErrNoSession):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Mailbox session expired. Create a new mailbox.")
	case errors.Is(err, store.ErrDuplicateEmail):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered")
	case errors.Is(err, store.ErrAccountNotFound):
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Account not found")
	case errors.As(err, &upstream):
		logger.WithFields(logrus.Fields{
			"provider": upstream.Provider,
			"status":   upstream.Status,
			"path":     c.Path(),
		}).WithError(err).Warn("Upstream provider request failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
	case errors.Is(err, store.ErrStore):
		utils.LogError("store", err, map[string]interface{}{"path": c.Path()})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error")
	default:
		utils.LogError("unhandled", err, map[string]interface{}{"path": c.Path()})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Server error")
	}
}
