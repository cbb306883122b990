package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"machine-downtime-backend/internal/api"
	"machine-downtime-backend/internal/notification"
	"machine-downtime-backend/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return serve(ctx, a)
	},
}

func serve(ctx context.Context, a *app) error {
	var (
		alerts         tracker.Alerter
		webpushOptions *webpush.Options
	)
	if a.cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  a.cfg.Push.PublicKey,
			VAPIDPrivateKey: a.cfg.Push.PrivateKey,
			Subscriber:      a.cfg.Push.Subject,
			TTL:             a.cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(a.cfg.WorkerPool.Size, a.db, webpushOptions, log)
		pool.Start(ctx)
		alerts = pool
	} else {
		log.Warn("VAPID keys not configured, downtime alerts are disabled")
	}

	svc := a.service(alerts)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(svc, a.store, webpushOptions, log), a.cfg.Server, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", a.cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, stopping services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}
