package server

import (
	"context"
	"testing"
)

func TestCleanupConfigFromEnv(t *testing.T) {
	t.Setenv("SDROP_CLEANUP_ENABLED", "")
	t.Setenv("SDROP_CLEANUP_SCHEDULE", "")
	cfg := CleanupConfigFromEnv(nil, nil, "files")
	if !cfg.Enabled {
		t.Fatalf("cleanup should default to enabled")
	}
	if cfg.Schedule != "*/15 * * * *" {
		t.Fatalf("unexpected default schedule %q", cfg.Schedule)
	}

	t.Setenv("SDROP_CLEANUP_ENABLED", "false")
	t.Setenv("SDROP_CLEANUP_SCHEDULE", "@hourly")
	cfg = CleanupConfigFromEnv(nil, nil, "files")
	if cfg.Enabled {
		t.Fatalf("cleanup should be disabled")
	}
	if cfg.Schedule != "@hourly" {
		t.Fatalf("schedule override not applied: %q", cfg.Schedule)
	}
}

func TestStartCleanupDisabled(t *testing.T) {
	c, err := StartCleanup(context.Background(), CleanupConfig{Enabled: false})
	if err != nil {
		t.Fatalf("StartCleanup error: %v", err)
	}
	if c != nil {
		t.Fatalf("disabled cleanup should return a nil handle")
	}
	c.Stop() // nil handle is a safe no-op
}

func TestStartCleanupBadSchedule(t *testing.T) {
	_, err := StartCleanup(context.Background(), CleanupConfig{
		Enabled:  true,
		Schedule: "nonsense",
	})
	if err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}
