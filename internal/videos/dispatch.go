package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsublib "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const (
	jobTypeAttribute   = "type"
	jobTypeProcess     = "video.process"
	defaultPublishWait = 10 * time.Second
)

// Job identifies a video awaiting processing. The payload crossing the async
// boundary is intentionally just the id; the worker re-reads the row.
type Job struct {
	VideoID uuid.UUID `json:"video_id"`
}

// Dispatcher hands a processing job to the worker side.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// PubSubDispatcher publishes jobs to the processing topic.
type PubSubDispatcher struct {
	publisher *pubsublib.Publisher
}

// NewPubSubDispatcher wraps a Pub/Sub publisher handle.
func NewPubSubDispatcher(publisher *pubsublib.Publisher) (*PubSubDispatcher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return &PubSubDispatcher{publisher: publisher}, nil
}

// Dispatch publishes the job and waits for server acknowledgement.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, job Job) error {
	if job.VideoID == uuid.Nil {
		return errors.New("job video id is required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishWait)
	defer cancel()

	result := d.publisher.Publish(publishCtx, &pubsublib.Message{
		Data: payload,
		Attributes: map[string]string{
			jobTypeAttribute: jobTypeProcess,
			"video_id":       job.VideoID.String(),
		},
	})
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing job: %w", err)
	}
	return nil
}

// ChanDispatcher queues jobs on a bounded in-process channel. Used in dev
// mode and tests where no broker is available; the worker pool drains Jobs.
type ChanDispatcher struct {
	jobs chan Job
}

// NewChanDispatcher creates a dispatcher with the given queue capacity.
func NewChanDispatcher(buffer int) *ChanDispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChanDispatcher{jobs: make(chan Job, buffer)}
}

// Dispatch enqueues without blocking; a full queue is an error the caller
// logs, leaving the record in processing for a later requeue.
func (d *ChanDispatcher) Dispatch(ctx context.Context, job Job) error {
	if job.VideoID == uuid.Nil {
		return errors.New("job video id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return errors.New("processing queue is full")
	}
}

// Jobs exposes the queue for the in-process worker pool.
func (d *ChanDispatcher) Jobs() <-chan Job {
	return d.jobs
}

// Close stops accepting jobs and lets the draining pool finish.
func (d *ChanDispatcher) Close() {
	close(d.jobs)
}
