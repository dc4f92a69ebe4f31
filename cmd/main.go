package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/config"
	"luckydraw/internal/handlers"
	"luckydraw/internal/metrics"
	"luckydraw/internal/notify"
	"luckydraw/internal/services"
	"luckydraw/internal/storage"
	"luckydraw/internal/storage/sqlite"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// 2. Set up logging
	// Logs go to stdout unless a log file is set; -v mirrors the file to the console.
	logOut, console := io.Writer(os.Stdout), false
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut, console = f, cfg.Verbose
	}
	defer logger.Init("luckydraw", console, false, logOut).Close()

	// 3. Open the state store
	var blobs storage.BlobStore
	if cfg.DBPath != "" {
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			logger.Fatalf("Failed to open database: %v", err)
		}
		blobs = db
		logger.Infof("Persisting sessions to %s", cfg.DBPath)
	} else {
		blobs = storage.NewMemoryStore()
		logger.Warning("No database path set; sessions are kept in memory only")
	}
	defer blobs.Close()

	// 4. Initialize the Lottery Service and event hub
	lotteryService := services.NewLotteryService(services.Options{
		Blobs:      blobs,
		AppID:      cfg.AppID,
		Seed:       cfg.DrawSeed,
		SessionTTL: cfg.SessionTTL,
	})
	hub := notify.NewHub()

	// 5. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(lotteryService, hub)
	lotteryService.OnDrawComplete(httpHandler.HandleDrawComplete)

	// 6. Set up the Gin router
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())
	if cfg.Verbose {
		r.Use(gin.Logger())
	}

	// 7. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 8. Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 9. Start the background janitor to clean up inactive sessions
	go func() {
		ticker := time.NewTicker(cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := lotteryService.CleanUpInactiveSessions()
				metrics.SetActiveSessions(lotteryService.ActiveSessions())
				logger.Infof("Performed cleanup of inactive sessions: %d evicted", removed)
			}
		}
	}()

	// 10. Run the server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Server starting on http://localhost:%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown: %v", err)
	}
	if err := lotteryService.SaveAll(shutdownCtx); err != nil {
		logger.Errorf("Failed to save sessions: %v", err)
	}
}
