package main

import (
	"context"
	"testing"
	"time"
)

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("HEARTH_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a nonexistent config path")
	}
}
