package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
)

// Coordinator applies processing outcomes to video records. Transitions are
// valid only from processing; terminal states are final and repeat callbacks
// are no-ops.
type Coordinator struct {
	repo     videoRepository
	notifier *Notifier
	meters   *metrics.VideoMetrics
	logg     *logger.Logger
}

// NewCoordinator constructs the processing-outcome coordinator.
func NewCoordinator(repo videoRepository, notifier *Notifier, meters *metrics.VideoMetrics, logg *logger.Logger) (*Coordinator, error) {
	if repo == nil {
		return nil, fmt.Errorf("video repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Coordinator{
		repo:     repo,
		notifier: notifier,
		meters:   meters,
		logg:     logg,
	}, nil
}

// MarkReady flips a processing video to ready.
func (c *Coordinator) MarkReady(ctx context.Context, videoID uuid.UUID) error {
	return c.transition(ctx, videoID, enums.VideoStatusReady, nil)
}

// MarkFailed flips a processing video to failed and records the reason. The
// blob is retained for diagnostics.
func (c *Coordinator) MarkFailed(ctx context.Context, videoID uuid.UUID, reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		trimmed = "processing failed"
	}
	return c.transition(ctx, videoID, enums.VideoStatusFailed, &trimmed)
}

func (c *Coordinator) transition(ctx context.Context, videoID uuid.UUID, to enums.VideoStatus, failureReason *string) error {
	if videoID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "video id required")
	}

	applied, err := c.repo.UpdateStatusFrom(ctx, videoID, enums.VideoStatusProcessing, to, failureReason)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply status transition")
	}
	logCtx := c.logg.WithVideoID(ctx, videoID.String())

	if !applied {
		// Distinguish an unknown id from a repeat callback.
		current, findErr := c.repo.FindByID(ctx, videoID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load video")
		}
		c.logg.Info(c.logg.WithField(logCtx, "status", string(current.Status)), "skipping transition for terminal video")
		return nil
	}

	c.meters.IncTransition(string(to))
	c.logg.Info(c.logg.WithField(logCtx, "status", string(to)), "video status updated")
	c.notifier.publish(StatusChange{
		VideoID:       videoID,
		Status:        to,
		FailureReason: failureReason,
	})
	return nil
}
