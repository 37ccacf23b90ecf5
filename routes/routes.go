package routes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	controller "tempinbox/controllers"
	"tempinbox/config"
	"tempinbox/mailbox"
	"tempinbox/middleware"
	"tempinbox/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewApp creates the fiber app with the global middleware stack.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "tempinbox",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(config.AppConfig.CORSOrigin)))

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func SetupAuthRoutes(api fiber.Router, accounts *store.AccountStore) {
	authController := controller.NewAuthController(accounts, logrus.WithField("component", "auth"))

	api.Post("/register", authController.Register)
	api.Post("/login", authController.Login)
	api.Get("/me", middleware.Protected(), authController.GetCurrentUser)

	logrus.Info("Authentication routes initialized successfully")
}

func SetupMailboxRoutes(api fiber.Router, orchestrator *mailbox.Orchestrator, limiterStorage fiber.Storage) {
	mailboxController := controller.NewMailboxController(orchestrator, logrus.WithField("component", "mailbox"))

	api.Get("/debug/ping-primary", mailboxController.PingPrimary)

	protected := middleware.Protected()
	api.Get("/domains", protected, mailboxController.GetDomains)
	api.Post("/mailbox/new", protected,
		middleware.MailboxRateLimiter(config.AppConfig.RateLimitMailbox, limiterStorage),
		mailboxController.NewMailbox,
	)
	api.Post("/mailbox/clear", protected, mailboxController.ClearMailbox)
	api.Get("/mailbox", protected, mailboxController.GetMailbox)
	api.Get("/messages", protected, mailboxController.GetMessages)
	api.Get("/messages/:id", protected, mailboxController.GetMessage)

	logrus.Info("Mailbox routes initialized successfully")
}

// SetupRoutes mounts the JSON API under /api and, when configured, the
// static frontend on every other path. limiterStorage may be nil.
func SetupRoutes(app *fiber.App, accounts *store.AccountStore, orchestrator *mailbox.Orchestrator, limiterStorage fiber.Storage) {
	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	SetupAuthRoutes(api, accounts)
	SetupMailboxRoutes(api, orchestrator, limiterStorage)

	api.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not Found",
		})
	})

	setupStatic(app, config.AppConfig.StaticDir)
}

// setupStatic serves the frontend with a fallback to index.html for client
// side routes.
func setupStatic(app *fiber.App, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		logrus.WithField("dir", dir).Warn("Frontend not found, static serving disabled")
		return
	}

	app.Static("/", dir)
	app.Get("*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api") {
			return c.Next()
		}
		return c.SendFile(index)
	})
}
