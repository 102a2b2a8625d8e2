package videos

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestChanDispatcherQueuesJobs(t *testing.T) {
	d := NewChanDispatcher(2)
	ctx := context.Background()

	jobA := Job{VideoID: uuid.New()}
	if err := d.Dispatch(ctx, jobA); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := d.Dispatch(ctx, Job{VideoID: uuid.New()}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if err := d.Dispatch(ctx, Job{VideoID: uuid.New()}); err == nil {
		t.Fatal("expected error when queue is full")
	}

	got := <-d.Jobs()
	if got.VideoID != jobA.VideoID {
		t.Fatalf("expected FIFO delivery, got %s", got.VideoID)
	}
}

func TestChanDispatcherRejectsEmptyJob(t *testing.T) {
	d := NewChanDispatcher(1)
	if err := d.Dispatch(context.Background(), Job{}); err == nil {
		t.Fatal("expected error for missing video id")
	}
}

func TestChanDispatcherRespectsContext(t *testing.T) {
	d := NewChanDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Dispatch(ctx, Job{VideoID: uuid.New()}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestChanDispatcherCloseDrains(t *testing.T) {
	d := NewChanDispatcher(1)
	if err := d.Dispatch(context.Background(), Job{VideoID: uuid.New()}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	d.Close()

	if _, ok := <-d.Jobs(); !ok {
		t.Fatal("expected queued job before close")
	}
	if _, ok := <-d.Jobs(); ok {
		t.Fatal("expected closed channel")
	}
}
