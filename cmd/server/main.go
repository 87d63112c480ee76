package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitodash/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Optional .env for local development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.Start(ctx)
	defer bootstrap.Stop()

	server := &http.Server{
		Addr:    bootstrap.Config.Server.Addr,
		Handler: bootstrap.Handler,
	}

	go func() {
		slog.Info("✅ Server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(bootstrap.Config.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown incomplete", slog.Any("error", err))
	}
}
