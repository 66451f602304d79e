package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"share-drop/internal/db"
	"share-drop/internal/server"
)

func main() {
	// Local development convenience; in containers the env is already set.
	_ = godotenv.Load()

	addr := getenvDefault("SDROP_ADDR", ":8080")

	build := server.BuildInfo{
		Version: getenvDefault("SDROP_VERSION", "dev"),
		Commit:  getenvDefault("SDROP_COMMIT", "unknown"),
	}

	auth := server.AuthConfig{
		SessionSecret: getenvDefault("SDROP_SESSION_SECRET", ""),
		SessionTTL:    12 * time.Hour,
		CookieName:    "sdrop_session",
	}

	linkSecret := getenvDefault("SDROP_LINK_SECRET", "")

	// Safety: refuse to start if secrets are missing.
	if auth.SessionSecret == "" || linkSecret == "" {
		log.Printf("service=backend msg=%q", "missing SDROP_SESSION_SECRET or SDROP_LINK_SECRET")
		os.Exit(1)
	}

	// Database
	dsn := getenvDefault("DATABASE_URL", "")
	dbConn, err := server.OpenDB(dsn)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	auth.DB = dbConn

	// Object storage
	mc, bucket, err := server.NewMinioClient()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "minio_connect_failed", err)
		os.Exit(1)
	}

	srv, err := server.New(server.Config{
		Addr:           addr,
		Build:          build,
		Auth:           auth,
		DB:             dbConn,
		Minio:          mc,
		Bucket:         bucket,
		BaseURL:        getenvDefault("SDROP_BASE_URL", "http://localhost:8080"),
		LinkSecret:     []byte(linkSecret),
		MaxUploadBytes: server.MaxUploadBytesFromEnv(),
	})
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "server_init_failed", err)
		os.Exit(1)
	}

	// Scheduled purge of expired uploads.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	cleanup, err := server.StartCleanup(cleanupCtx, server.CleanupConfigFromEnv(dbConn, mc, bucket))
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "cleanup_init_failed", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cleanup != nil {
			cleanup.Stop()
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
