package consumer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage/disk"
)

func TestBlobProcessorVerifiesBlob(t *testing.T) {
	blobs, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	processor, err := NewBlobProcessor(blobs, 0)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	ctx := context.Background()

	key := "videos/" + uuid.NewString() + "/clip.mp4"
	if _, err := blobs.Put(ctx, key, strings.NewReader("0123456789")); err != nil {
		t.Fatalf("put: %v", err)
	}

	video := &models.Video{ID: uuid.New(), StorageKey: key, SizeBytes: 10}
	if err := processor.Process(ctx, video); err != nil {
		t.Fatalf("process: %v", err)
	}
}

func TestBlobProcessorFailsOnMissingBlob(t *testing.T) {
	blobs, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	processor, err := NewBlobProcessor(blobs, 0)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	video := &models.Video{ID: uuid.New(), StorageKey: "videos/missing/clip.mp4", SizeBytes: 10}
	if err := processor.Process(context.Background(), video); err == nil {
		t.Fatal("expected error for missing blob")
	}
}

func TestBlobProcessorFailsOnSizeMismatch(t *testing.T) {
	blobs, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	processor, err := NewBlobProcessor(blobs, 0)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	ctx := context.Background()

	key := "videos/" + uuid.NewString() + "/clip.mp4"
	if _, err := blobs.Put(ctx, key, strings.NewReader("short")); err != nil {
		t.Fatalf("put: %v", err)
	}

	video := &models.Video{ID: uuid.New(), StorageKey: key, SizeBytes: 999}
	if err := processor.Process(ctx, video); err == nil {
		t.Fatal("expected error for size mismatch")
	}
}
