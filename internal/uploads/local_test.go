package uploads

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	key := NewKey(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), "image/png")
	if !strings.HasPrefix(key, "2026/03/14/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}

	if err := l.Save(ctx, key, "image/png", []byte("pretend png")); err != nil {
		t.Fatalf("save: %v", err)
	}

	rc, err := l.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(data) != "pretend png" {
		t.Fatalf("read back %q (%v)", data, err)
	}

	if err := l.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.Open(ctx, key); err == nil {
		t.Fatalf("open after delete should fail")
	}
}

func TestExtForContentType(t *testing.T) {
	cases := map[string]string{
		"image/png":  ".png",
		" IMAGE/PNG": ".png",
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"":           ".jpg",
	}
	for ct, want := range cases {
		if got := extForContentType(ct); got != want {
			t.Errorf("extForContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	for _, key := range []string{"../escape.jpg", "/etc/passwd", "a/../../b"} {
		if err := l.Save(context.Background(), key, "", []byte("x")); err == nil {
			t.Errorf("Save(%q) accepted a traversal key", key)
		}
	}
}

func TestLocalSweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := NewLocal(dir, nil)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	if err := l.Save(ctx, "old/stale.jpg", "", []byte("old")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := l.Save(ctx, "new/fresh.jpg", "", []byte("new")); err != nil {
		t.Fatalf("save: %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old", "stale.jpg"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := l.Sweep(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := l.Open(ctx, "new/fresh.jpg"); err != nil {
		t.Fatalf("fresh upload was swept: %v", err)
	}
}
