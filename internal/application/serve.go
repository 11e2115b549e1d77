package application

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/web"
)

// Serve runs the HTTP server and the cursor sweeper until ctx is cancelled,
// then shuts down gracefully: in-flight requests finish and running scans
// drain, both bounded by Server.ShutdownTimeout.
func Serve(ctx context.Context, cfg *config.Config, service *core.Service) error {
	server := web.NewServer(service, *cfg)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go service.StartCursorSweeper(sweepCtx, cfg.Cursor.SweepInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Let running filter scans finish before the store is closed
	if status := service.Scans().Status(); status.Active > 0 {
		slog.Info("waiting for scans to complete", "active", status.Active)
		if err := service.Scans().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("scans did not complete in time", "error", err)
		}
	}

	return <-errCh
}
