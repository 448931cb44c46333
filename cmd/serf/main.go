// Command serf starts the Serf database server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rikardbq/serf/api"
	"github.com/rikardbq/serf/config"
	"github.com/rikardbq/serf/internal/logger"
	"github.com/rikardbq/serf/internal/storage"
	"github.com/rikardbq/serf/internal/watcher"
)

var customLog = logger.NewLogger()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userStore, err := storage.ConnectUserStore(ctx, cfg.RootDir)
	if err != nil {
		customLog.Fatalf("Failed to open user store: %v", err)
	}
	defer userStore.Close()

	directory := storage.NewDirectory()
	if err := directory.Reload(ctx, userStore); err != nil {
		customLog.Fatalf("Failed to load users: %v", err)
	}
	customLog.Printf("Loaded %d users", directory.Len())

	registry := storage.NewRegistry(cfg.RootDir, storage.PoolPolicy{
		MaxConns:    cfg.DBMaxConns,
		MaxIdleTime: cfg.DBMaxIdleTime,
		MaxLifetime: cfg.DBMaxLifetime,
	})
	defer registry.Close()

	// Hot reload of the user directory on user-store changes. In-flight
	// requests keep the snapshot they already hold.
	go func() {
		err := watcher.Watch(ctx, storage.UserStorePath(cfg.RootDir), func() {
			if err := directory.Reload(ctx, userStore); err != nil {
				customLog.Warnf("User directory reload failed, keeping current snapshot: %v", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			customLog.Warnf("User store watcher stopped: %v", err)
		}
	}()

	router := api.SetupRouter(directory, registry, cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		customLog.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			customLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	customLog.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		customLog.Warnf("Server shutdown: %v", err)
	}
}
