package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/handlers"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
	"github.com/opsledger/backend/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "opsledger",
	Short: "OpsLedger - IT asset, subscription, procurement and GRC backend",
	// glog registers its flags on the standard flag set; parse it with an
	// empty argument list so glog stops complaining about unparsed flags.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = flag.CommandLine.Parse(nil)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = flag.Set("logtostderr", "true")
		return serve()
	},
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the schema and the default admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := bootstrap(); err != nil {
			return err
		}
		defer database.Close()
		fmt.Println("Database initialized")
		return nil
	},
}

var seedDBCmd = &cobra.Command{
	Use:   "seed-db",
	Short: "Populate demo data unless suppliers already exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close()

		blobs, err := storage.NewBlobStore(cfg.UploadFolder)
		if err != nil {
			return err
		}
		svc := services.New(database.DB, cfg, blobs, services.Options{})
		seeded, err := seedDemoData(cmd.Context(), database.DB, svc)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if !seeded {
			fmt.Println("Suppliers already present, nothing seeded")
			return nil
		}
		fmt.Println("Demo data seeded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, initDBCmd, seedDBCmd)
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, connects, migrates and makes sure an
// admin account exists. The caller owns database.Close.
func bootstrap() (*config.Config, error) {
	cfg := config.Load()

	if err := database.Connect(cfg); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := models.AutoMigrate(database.DB); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	cfg.SecretKey = database.EnsureSecretKey(cfg)

	createdAdmin, err := services.NewUserService(database.DB).EnsureAdmin(context.Background())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create admin user: %w", err)
	}
	if createdAdmin {
		glog.Warningf("Created default admin user %q - change its password", services.DefaultAdminName)
	}
	return cfg, nil
}

func serve() error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close()

	blobs, err := storage.NewBlobStore(cfg.UploadFolder)
	if err != nil {
		return err
	}
	svc := services.New(database.DB, cfg, blobs, services.Options{Cache: true})

	app := handlers.NewApp(cfg, database.DB, svc, handlers.RouterOptions{RateLimit: 100})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Daily renewal notifications
	svc.Notifier.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		glog.Info("Shutting down server...")
		svc.Notifier.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			glog.Errorf("Server shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	glog.Infof("Starting OpsLedger API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}
