package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"review-sentiment/internal/api"
	"review-sentiment/internal/config"
)

func main() {
	settings, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	if err := settings.Logging.Apply(); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	if dir := filepath.Dir(settings.Store.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := api.ConfigFrom(ctx, settings)
	if err != nil {
		logrus.Fatalf("build dependencies: %v", err)
	}
	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	// Requests that need the model get 503 until startup finishes.
	go func() {
		if err := server.Start(ctx); err != nil {
			logrus.Errorf("startup failed: %v", err)
			stop()
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + settings.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("starting review-sentiment server on :%s", settings.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("server exited: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	if err := server.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("close server")
	}
}
