package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sahilchouksey/course-platform-api/api"
	"github.com/sahilchouksey/course-platform-api/config"
	"github.com/sahilchouksey/course-platform-api/database"
	"github.com/sahilchouksey/course-platform-api/router"
	"github.com/sahilchouksey/course-platform-api/services/cron"
	"github.com/sahilchouksey/course-platform-api/utils"
)

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	log := utils.NewLogger(getEnv.GO_ENV)

	// Initialize GORM database connection
	store, err := database.StartGORM(getEnv)
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED {
		cronManager = cron.NewCronManager(store.GetDB(), getEnv.INACTIVE_USER_DAYS)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn("failed to start cron jobs", "error", err)
		}
	}

	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), log)
	app := server.GetEngine()

	// Setup Routes (security middleware is attached there)
	deps, err := router.SetupRoutes(app, store, getEnv, log)
	if err != nil {
		store.Close()
		return err
	}

	// Defer closing DB, background workers and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		deps.Close()
		store.Close()
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	return server.Run()
}
