package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage"
)

// Processor performs the actual media work for one video. Implementations
// are opaque to the consumer: an error means the video failed processing.
type Processor interface {
	Process(ctx context.Context, video *models.Video) error
}

// BlobProcessor is the default processor. It verifies the stored blob is
// present and sized as recorded, standing in for the transcode step at the
// processing boundary.
type BlobProcessor struct {
	blobs storage.Store
	delay time.Duration
}

// NewBlobProcessor constructs the verification processor. A non-zero delay
// simulates processing latency in dev environments.
func NewBlobProcessor(blobs storage.Store, delay time.Duration) (*BlobProcessor, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	return &BlobProcessor{blobs: blobs, delay: delay}, nil
}

// Process checks the blob backing the video record.
func (p *BlobProcessor) Process(ctx context.Context, video *models.Video) error {
	if video == nil {
		return errors.New("video is required")
	}

	info, err := p.blobs.Stat(ctx, video.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("blob %s missing", video.StorageKey)
		}
		return fmt.Errorf("stat blob: %w", err)
	}
	if info.Size != video.SizeBytes {
		return fmt.Errorf("blob size %d does not match recorded %d", info.Size, video.SizeBytes)
	}

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
