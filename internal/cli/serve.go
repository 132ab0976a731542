package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout is how long outstanding requests get to complete on shutdown.
const ShutdownTimeout = 5 * time.Second

// Serve runs the HTTP API on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, app *App, ln net.Listener) error {
	handler, closeStreams := app.Handler()
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting bridge server", "addr", ln.Addr().String(), "store", app.Config.Store)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		closeStreams()
		return err

	case <-ctx.Done():
		app.Logger.Info("Start shutdown")
		// Event streams never finish on their own
		closeStreams()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return err
			}
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		app.Logger.Info("Bridge server stopped gracefully")
		return nil
	}
}
