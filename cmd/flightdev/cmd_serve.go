package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/flightdev/internal/api"
	"github.com/yegors/flightdev/pkg/logger"
)

func runServe(cmd *cobra.Command, args []string) error {
	_, e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	store, err := openStorage(e.cfg, e.log)
	if err != nil {
		return err
	}
	defer store.Close()

	e.log.Info("Starting flightdev server", logger.String("version", Version))

	router := api.NewRouter(store, e.cfg, e.log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", e.cfg.Server.Host, e.cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(e.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(e.cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(e.cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	e.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}
	e.log.Info("Server stopped")
	return nil
}
