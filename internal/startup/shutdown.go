package startup

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hurricanerix/signchat/internal/logging"
	"github.com/hurricanerix/signchat/internal/web"
)

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Run starts the web server and blocks until a shutdown signal is received
// or ctx is cancelled.
//
// The web.Server itself logs "Shutting down..." and "Web server stopped".
// Returns nil on clean shutdown, error otherwise.
func Run(ctx context.Context, server *web.Server, logger *logging.Logger) error {
	shutdownCtx, stop := NotifyContext(ctx)
	defer stop()

	if err := server.ListenAndServe(shutdownCtx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Debug("Shutdown complete")
	return nil
}
