// MediaCellar Server
//
// Features:
// - Password-protected browsing of a local media tree
// - Range-capable video streaming, image viewing, downloads
// - Filename search with depth and result bounds
// - Named albums backed by PostgreSQL
// - SSE change events, read-only WebDAV share
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/albums"
	"github.com/mediacellar/mediacellar/internal/api"
	"github.com/mediacellar/mediacellar/internal/auth"
	"github.com/mediacellar/mediacellar/internal/config"
	"github.com/mediacellar/mediacellar/internal/events"
	"github.com/mediacellar/mediacellar/internal/library"
	"github.com/mediacellar/mediacellar/internal/logging"
	"github.com/mediacellar/mediacellar/internal/metrics"
	"github.com/mediacellar/mediacellar/internal/webdav"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("MediaCellar Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("root", cfg.MediaRoot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL album store
	logging.Info("connecting to PostgreSQL...")
	albumStore, err := albums.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer albumStore.Close()

	logging.Info("running migrations...")
	if err := albumStore.Migrate(); err != nil {
		logging.Fatal("migration failed", zap.Error(err))
	}

	// Initialize auth
	authHandler := auth.New(albumStore.DB(), cfg.JWTSecret)
	if err := authHandler.EnsureOperator(ctx, cfg.OperatorUsername, cfg.OperatorPassword); err != nil {
		logging.Error("failed to ensure operator account", zap.Error(err))
	}

	// Initialize the media library
	lib, err := library.New(library.Options{
		Root:             cfg.MediaRoot,
		Fs:               afero.NewOsFs(),
		VideoExtensions:  cfg.VideoExtensions,
		ImageExtensions:  cfg.ImageExtensions,
		SearchMaxDepth:   cfg.SearchMaxDepth,
		SearchMaxResults: cfg.SearchMaxResults,
	})
	if err != nil {
		logging.Fatal("library init failed", zap.Error(err))
	}
	logging.Info("media library initialized", zap.String("root", lib.Root()))

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()
	logging.Info("SSE broadcaster initialized")

	// Read-only WebDAV share over the media root
	davHandler := webdav.NewHandler(cfg.MediaRoot, authHandler)

	// Create API server
	srv := api.NewServer(lib, albumStore, authHandler, broadcaster, davHandler)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Start periodic metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				albumStore.UpdateConnectionMetrics()
			}
		}
	}()

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}
