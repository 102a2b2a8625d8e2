// Package consumer drives the processing side of the async job boundary:
// it receives dispatched jobs, runs the processor, and applies the outcome
// through the coordinator.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsublib "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidstreamlabs/vidstream-backend/internal/videos"
	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

type coordinator interface {
	MarkReady(ctx context.Context, videoID uuid.UUID) error
	MarkFailed(ctx context.Context, videoID uuid.UUID, reason string) error
}

// Handler runs one job end to end: load the row, invoke the processor, and
// apply the outcome. It is shared by the Pub/Sub consumer and the in-process
// runner.
type Handler struct {
	repo      repository
	coord     coordinator
	processor Processor
	meters    *metrics.VideoMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewHandler constructs the job handler.
func NewHandler(repo repository, coord coordinator, processor Processor, meters *metrics.VideoMetrics, logg *logger.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("video repository is required")
	}
	if coord == nil {
		return nil, errors.New("coordinator is required")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Handler{
		repo:      repo,
		coord:     coord,
		processor: processor,
		meters:    meters,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Handle executes a single job. Unknown ids and already-terminal rows are
// logged no-ops; a returned error signals the caller to decide redelivery.
func (h *Handler) Handle(ctx context.Context, job videos.Job) error {
	video, err := h.repo.FindByID(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logg.Warn(ctx, "video row not found for job")
			return nil
		}
		return err
	}

	if video.Status.IsTerminal() {
		h.logg.Info(h.logg.WithField(ctx, "status", string(video.Status)), "video already in terminal status")
		return nil
	}

	started := h.now()
	processErr := h.processor.Process(ctx, video)
	h.meters.ObserveProcessing(h.now().Sub(started))

	if processErr != nil {
		if isTransientDBError(processErr) {
			return processErr
		}
		h.logg.Warn(h.logg.WithField(ctx, "reason", processErr.Error()), "processing failed, marking video failed")
		return h.coord.MarkFailed(ctx, video.ID, processErr.Error())
	}

	return h.coord.MarkReady(ctx, video.ID)
}

// Consumer processes video jobs from a Pub/Sub subscription.
type Consumer struct {
	handler      *Handler
	subscription *pubsublib.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(handler *Handler, subscription *pubsublib.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("job handler is required")
	}
	if subscription == nil {
		return nil, errors.New("processing subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		handler:      handler,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsublib.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsublib.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var job videos.Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.logg.Error(logCtx, "failed to decode job payload", err)
		return processResult{ack: true}
	}
	if job.VideoID == uuid.Nil {
		c.logg.Error(logCtx, "job missing video id", errors.New("empty video_id"))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithVideoID(logCtx, job.VideoID.String())

	err := c.handler.Handle(logCtx, job)
	if err != nil && isTransientDBError(err) {
		c.logg.Error(logCtx, "transient failure, requesting redelivery", err)
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(logCtx, "job handling failed", err)
	}
	return processResult{ack: true}
}

func isTransientDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
