package disk

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidstreamlabs/vidstream-backend/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	payload := []byte("frame data here")

	written, err := store.Put(ctx, "videos/video-1.mp4", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if written != int64(len(payload)) {
		t.Fatalf("expected %d bytes written, got %d", len(payload), written)
	}

	rc, err := store.Open(ctx, "videos/video-1.mp4")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestPutLeavesNoTempFilesBehind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "a.bin", strings.NewReader("abc")); err != nil {
		t.Fatalf("put: %v", err)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".upload-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestOpenRangeServesExactWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "clip.bin", strings.NewReader("0123456789")); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := store.OpenRange(ctx, "clip.bin", 3, 4)
	if err != nil {
		t.Fatalf("open range: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("expected %q, got %q", "3456", got)
	}
}

func TestOpenRangeSurvivesDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "clip.bin", strings.NewReader("0123456789")); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := store.OpenRange(ctx, "clip.bin", 0, 10)
	if err != nil {
		t.Fatalf("open range: %v", err)
	}
	defer rc.Close()

	if err := store.Delete(ctx, "clip.bin"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read after delete: %v", err)
	}
	if string(got) != "0123456789" {
		t.Fatalf("expected full payload, got %q", got)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []string{
		"",
		"..",
		"../outside.bin",
		"nested/../../outside.bin",
		filepath.Join(string(os.PathSeparator), "etc", "passwd"),
	}
	for _, key := range cases {
		if _, err := store.Stat(ctx, key); !errors.Is(err, storage.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
	}
}

func TestStatAndDeleteMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Stat(ctx, "missing.bin"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from stat, got %v", err)
	}
	if err := store.Delete(ctx, "missing.bin"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from delete, got %v", err)
	}

	exists, err := store.Exists(ctx, "missing.bin")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected missing key to not exist")
	}
}
