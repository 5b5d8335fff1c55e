package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"orcacast/internal"
	"orcacast/internal/admin"
	"orcacast/internal/api"
	"orcacast/internal/config"
	"orcacast/internal/container"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := internal.NewDefaultLogger()
	defer logger.Sync()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	if err := run(logger); err != nil {
		logger.Error("orcacast stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(logger *internal.Logger) error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(appConfig, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.ConnectDatabase(ctx); err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}

	apiServer := api.NewServer(c.Forecasts, c.Predictions, logger, appConfig.Server.GinMode)
	var pinger admin.Pinger
	if c.DB != nil {
		pinger = c.DB
	}
	adminRouter := admin.NewRouter(c.Registry, c.Forecasts, pinger, logger)

	servers := []*http.Server{
		{Addr: ":" + appConfig.Server.Port, Handler: apiServer.Handler(), ReadHeaderTimeout: 10 * time.Second},
		{Addr: ":" + appConfig.Server.AdminPort, Handler: adminRouter.Handler(), ReadHeaderTimeout: 10 * time.Second},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
	return g.Wait()
}
