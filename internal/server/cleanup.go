// cleanup.go - Scheduled purge of expired auto-delete uploads.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/robfig/cron/v3"
)

type CleanupConfig struct {
	Enabled  bool
	Schedule string // cron expression
	DB       *sql.DB
	Minio    *minio.Client
	Bucket   string
}

// CleanupConfigFromEnv reads SDROP_CLEANUP_ENABLED and SDROP_CLEANUP_SCHEDULE.
// The purge runs every 15 minutes unless a schedule overrides it.
func CleanupConfigFromEnv(db *sql.DB, mc *minio.Client, bucket string) CleanupConfig {
	cfg := CleanupConfig{
		Enabled:  true,
		Schedule: "*/15 * * * *",
		DB:       db,
		Minio:    mc,
		Bucket:   bucket,
	}
	if v := os.Getenv("SDROP_CLEANUP_ENABLED"); v == "false" || v == "0" {
		cfg.Enabled = false
	}
	if v := os.Getenv("SDROP_CLEANUP_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	return cfg
}

// Cleanup owns the cron scheduler behind the expiry purge.
type Cleanup struct {
	cron *cron.Cron
}

// Stop halts the scheduler. Any purge already running finishes first.
func (c *Cleanup) Stop() {
	if c == nil || c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
}

// StartCleanup schedules the purge job. It returns nil when cleanup is
// disabled, which callers treat as a no-op handle.
func StartCleanup(ctx context.Context, cfg CleanupConfig) (*Cleanup, error) {
	if !cfg.Enabled {
		Info("cleanup_disabled", nil)
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := runCleanup(runCtx, cfg); err != nil {
			Error("cleanup_run_failed", nil, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bad cleanup schedule %q: %w", cfg.Schedule, err)
	}

	c.Start()
	Info("cleanup_started", map[string]interface{}{"schedule": cfg.Schedule})
	return &Cleanup{cron: c}, nil
}

// runCleanup deletes every expired auto-delete file: object first, then the
// row, so a storage failure leaves the row for the next pass.
func runCleanup(ctx context.Context, cfg CleanupConfig) error {
	rows, err := cfg.DB.QueryContext(ctx, `
		SELECT id, object_key FROM files
		WHERE auto_delete AND expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type expired struct{ id, key string }
	var batch []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.key); err != nil {
			return err
		}
		batch = append(batch, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	purged := 0
	for _, e := range batch {
		err := cfg.Minio.RemoveObject(ctx, cfg.Bucket, e.key, minio.RemoveObjectOptions{})
		if err != nil {
			Warn("cleanup_object_failed", map[string]interface{}{"file_id": e.id})
			continue
		}
		if _, err := cfg.DB.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, e.id); err != nil {
			Warn("cleanup_row_failed", map[string]interface{}{"file_id": e.id})
			continue
		}
		purged++
	}

	Info("cleanup_completed", map[string]interface{}{
		"expired": len(batch),
		"purged":  purged,
	})
	return nil
}
