package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tempinbox/config"
	"tempinbox/mailbox"
	"tempinbox/middleware"
	"tempinbox/providers"
	"tempinbox/routes"
	"tempinbox/store"
	"tempinbox/utils"
	"tempinbox/worker"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tempinbox",
		Short:        "Disposable mailbox web service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			logrus.Info("Migrations applied")
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, initializes logging and connects (and
// migrates) the database.
func setup() error {
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.InitLogger(config.AppConfig.LogLevel, config.AppConfig.Environment)

	if err := config.ConnectDB(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func serve() error {
	if err := setup(); err != nil {
		return err
	}

	flush, err := utils.InitSentry(config.AppConfig.SentryDSN, config.AppConfig.Environment)
	if err != nil {
		logrus.WithError(err).Warn("Sentry disabled")
	}
	defer flush()

	var redisClient *redis.Client
	if config.AppConfig.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	sessions, err := newSessionStore(redisClient)
	if err != nil {
		return err
	}

	upstream := config.AppConfig.Upstream
	accounts := store.NewAccountStore(config.DB)
	orchestrator := mailbox.NewOrchestrator(
		accounts,
		providers.NewPrimaryClient(upstream.PrimaryURL, upstream.Timeout),
		providers.NewSecondaryClient(upstream.SecondaryURL, upstream.Timeout),
		sessions,
		config.AppConfig.SessionTTL,
	)

	var limiterStorage fiber.Storage
	if redisClient != nil {
		limiterStorage = middleware.NewRedisStorage(redisClient)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if purger, ok := sessions.(worker.Purger); ok && config.AppConfig.SweepInterval > 0 {
		sweeper := worker.NewSessionSweeper(purger, config.AppConfig.SweepInterval, logrus.WithField("component", "session_sweeper"))
		go sweeper.Start(ctx)
	}

	app := routes.NewApp()
	routes.SetupRoutes(app, accounts, orchestrator, limiterStorage)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logrus.Info("Shutting down server")
		cancel()
		if err := app.Shutdown(); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}
	}()

	logrus.Infof("Server listening on http://localhost:%s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func newSessionStore(redisClient *redis.Client) (mailbox.SessionStore, error) {
	switch config.AppConfig.SessionStore {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis session store requires REDIS_ENABLED=true")
		}
		return mailbox.NewRedisSessionStore(redisClient), nil
	case "database":
		return mailbox.NewDBSessionStore(config.DB), nil
	default:
		logrus.Warn("Using in-memory provider sessions; secondary mailboxes need recreating after a restart")
		return mailbox.NewMemorySessionStore(), nil
	}
}
