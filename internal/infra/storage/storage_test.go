package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalPutWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store := NewLocal(dir, "/uploads")

	ref, err := store.Put(context.Background(), "mars.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "/uploads/mars.png" {
		t.Fatalf("unexpected reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(dir, "mars.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestLocalPutRejectsPathTraversal(t *testing.T) {
	store := NewLocal(t.TempDir(), "/uploads")
	if _, err := store.Put(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}
