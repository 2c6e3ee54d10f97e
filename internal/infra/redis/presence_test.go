package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestPresenceSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	presence := NewPresence(newClient(mr), time.Minute)

	if err := presence.Mark(ctx, "conn-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	_ = presence.Mark(ctx, "conn-2")
	if !mr.Exists("quiz:presence:conn-1") {
		t.Fatalf("expected redis key to be set")
	}
	if n, err := presence.Count(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 live subscribers, got %d (%v)", n, err)
	}

	_ = presence.Clear(ctx, "conn-1")
	if mr.Exists("quiz:presence:conn-1") {
		t.Fatalf("expected redis key to be removed")
	}

	mr.FastForward(2 * time.Minute)
	if n, _ := presence.Count(ctx); n != 0 {
		t.Fatalf("expected stale key to expire, got %d", n)
	}
}
