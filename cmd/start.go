package cmd

import (
	"fmt"

	"asset-exporter/core/loader"
	"asset-exporter/core/logger"
	"asset-exporter/core/middleware/auth"
	"asset-exporter/core/middleware/rayid"
	"asset-exporter/feature/exporter"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the status API server",
	Long:  `Starts the HTTP status API for the active registry (stats, entries, missing artifacts, diffs, run history).`,
	RunE:  runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// 1. Load configuration and wire the engine
	a, err := bootstrap()
	if err != nil {
		return err
	}
	logg := a.logger
	defer logg.Sync()

	// 2. Initialize Fiber App
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We will log our own startup message
	})

	// 3. Initialize Feature Loader
	mgr := loader.NewManager()
	mgr.Register(exporter.NewFeature(a.service))

	// Middleware Registration
	// 1. RayID (Must be first to trace everything)
	app.Use(rayid.New())

	// 2. Logging Middleware (Zap + RayID)
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	// 3. Auth (Protect API)
	app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))

	// 4. Load Features
	if err := mgr.LoadAll(app); err != nil {
		return fmt.Errorf("failed to load features: %w", err)
	}

	// 5. Start Server
	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("address", a.cfg.Server.Address()))
		errCh <- app.Listen(a.cfg.Server.Address())
	}()

	// 6. Graceful Shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logg.Info("Shutting down server...")
	return app.Shutdown()
}
