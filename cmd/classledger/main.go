package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classledger/classledger/internal/database"
	"github.com/classledger/classledger/internal/gateway"
	"github.com/classledger/classledger/internal/logging"
	"github.com/classledger/classledger/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CLASSLEDGER_LOG_LEVEL"), os.Getenv("CLASSLEDGER_LOG_FORMAT"))

	port := os.Getenv("CLASSLEDGER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CLASSLEDGER_DB_PATH")
	if dbPath == "" {
		dbPath = "classledger.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		Gateway: gateway.Config{
			KeyID:     os.Getenv("CLASSLEDGER_GATEWAY_KEY_ID"),
			KeySecret: os.Getenv("CLASSLEDGER_GATEWAY_KEY_SECRET"),
			BaseURL:   os.Getenv("CLASSLEDGER_GATEWAY_URL"),
			Currency:  os.Getenv("CLASSLEDGER_CURRENCY"),
		},
		AdminKeyHash: os.Getenv("CLASSLEDGER_ADMIN_KEY_HASH"),
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background maintenance
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("classledger starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
