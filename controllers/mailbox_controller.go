package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"tempinbox/mailbox"
	"tempinbox/utils"
)

type NewMailboxRequest struct {
	Login  string `json:"login" validate:"max=255"`
	Domain string `json:"domain" validate:"max=255"`
}

type MailboxController struct {
	orchestrator *mailbox.Orchestrator
	logger       *logrus.Entry
}

func NewMailboxController(orchestrator *mailbox.Orchestrator, logger *logrus.Entry) *MailboxController {
	return &MailboxController{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (mc *MailboxController) GetDomains(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"domains": mc.orchestrator.Domains(c.UserContext()),
	})
}

// PingPrimary reports the primary provider's domain list for diagnostics.
func (mc *MailboxController) PingPrimary(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":      true,
		"domains": mc.orchestrator.Domains(c.UserContext()),
	})
}

func (mc *MailboxController) NewMailbox(c *fiber.Ctx) error {
	var req NewMailboxRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	userID, _ := currentUser(c)
	box, err := mc.orchestrator.NewMailbox(c.UserContext(), userID, req.Login, req.Domain)
	if err != nil {
		return respondError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"address": box.Address,
		"login":   box.Login,
		"domain":  box.Domain,
	})
}

func (mc *MailboxController) ClearMailbox(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	if err := mc.orchestrator.ClearMailbox(c.UserContext(), userID); err != nil {
		return respondError(c, mc.logger, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (mc *MailboxController) GetMailbox(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	box, err := mc.orchestrator.CurrentMailbox(c.UserContext(), userID)
	if errors.Is(err, mailbox.ErrNoMailbox) {
		return c.JSON(fiber.Map{"address": nil})
	}
	if err != nil {
		return respondError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"address": box.Address,
		"login":   box.Login,
		"domain":  box.Domain,
	})
}

func (mc *MailboxController) GetMessages(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	messages, err := mc.orchestrator.ListMessages(c.UserContext(), userID)
	if err != nil {
		return respondError(c, mc.logger, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (mc *MailboxController) GetMessage(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing message id")
	}

	userID, _ := currentUser(c)
	message, err := mc.orchestrator.ReadMessage(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, mc.logger, err)
	}
	return c.JSON(fiber.Map{"message": message})
}
