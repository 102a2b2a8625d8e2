package videos

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage/disk"
)

type stubRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Video
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: make(map[uuid.UUID]*models.Video)}
}

func (r *stubRepo) Create(ctx context.Context, video *models.Video) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	clone := *video
	r.rows[video.ID] = &clone
	return video, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *stubRepo) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *stubRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Video
	for _, row := range r.rows {
		if row.OwnerID == ownerID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (r *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *stubRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.VideoStatus, failureReason *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	row.FailureReason = failureReason
	return true, nil
}

type stubDispatcher struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (d *stubDispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, repo *stubRepo, dispatcher *stubDispatcher) (*Service, *disk.Store) {
	t.Helper()
	blobs, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	svc, err := NewService(repo, blobs, dispatcher, nil, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, blobs
}

func TestIngestCreatesBlobRowAndJob(t *testing.T) {
	repo := newStubRepo()
	dispatcher := &stubDispatcher{}
	svc, blobs := newTestService(t, repo, dispatcher)
	ownerID := uuid.New()

	video, err := svc.Ingest(context.Background(), ownerID, IngestInput{
		Reader:    strings.NewReader("payload bytes"),
		FileName:  "holiday clip.mp4",
		SizeBytes: 13,
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if video.Status != enums.VideoStatusProcessing {
		t.Fatalf("expected processing status, got %s", video.Status)
	}
	if video.OwnerID != ownerID {
		t.Fatalf("unexpected owner %s", video.OwnerID)
	}
	if video.SizeBytes != 13 {
		t.Fatalf("expected 13 bytes recorded, got %d", video.SizeBytes)
	}
	if video.OriginalName != "holiday-clip.mp4" {
		t.Fatalf("unexpected display name %q", video.OriginalName)
	}

	exists, err := blobs.Exists(context.Background(), video.StorageKey)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected blob to be written")
	}
	if _, ok := repo.rows[video.ID]; !ok {
		t.Fatal("expected metadata row to be created")
	}
	if len(dispatcher.jobs) != 1 || dispatcher.jobs[0].VideoID != video.ID {
		t.Fatalf("expected one dispatched job for %s, got %+v", video.ID, dispatcher.jobs)
	}
}

func TestIngestRejectsNonVideoMime(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})

	_, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader("plain text"),
		FileName:  "notes.txt",
		SizeBytes: 10,
		MimeType:  "text/plain",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected no metadata row for rejected upload")
	}
	assertNoBlobs(t, blobs)
}

func TestIngestRejectsOversizedDeclaration(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})

	_, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader("x"),
		FileName:  "big.mp4",
		SizeBytes: 2 << 20,
		MimeType:  "video/mp4",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIngestRejectsOversizedPayload(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})

	// Declared size fits but the payload exceeds the ceiling.
	_, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader(strings.Repeat("a", (1<<20)+5)),
		FileName:  "liar.mp4",
		SizeBytes: 100,
		MimeType:  "video/mp4",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected no metadata row")
	}
	assertNoBlobs(t, blobs)
}

func TestIngestCleansUpBlobWhenRowInsertFails(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = errors.New("insert failed")
	svc, blobs := newTestService(t, repo, &stubDispatcher{})

	_, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader("payload"),
		FileName:  "clip.mp4",
		SizeBytes: 7,
		MimeType:  "video/mp4",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	assertNoBlobs(t, blobs)
}

func TestIngestSucceedsWhenDispatchFails(t *testing.T) {
	repo := newStubRepo()
	dispatcher := &stubDispatcher{err: errors.New("queue down")}
	svc, _ := newTestService(t, repo, dispatcher)

	video, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader("payload"),
		FileName:  "clip.mp4",
		SizeBytes: 7,
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest should not surface dispatch failure: %v", err)
	}
	if video.Status != enums.VideoStatusProcessing {
		t.Fatalf("expected record to stay processing, got %s", video.Status)
	}
}

func TestDeleteRemovesBlobAndRow(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})
	ownerID := uuid.New()

	video, err := svc.Ingest(context.Background(), ownerID, IngestInput{
		Reader:    strings.NewReader("payload"),
		FileName:  "clip.mp4",
		SizeBytes: 7,
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := svc.Delete(context.Background(), video.ID, ownerID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.rows[video.ID]; ok {
		t.Fatal("expected row to be removed")
	}
	exists, err := blobs.Exists(context.Background(), video.StorageKey)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected blob to be removed")
	}
}

func TestDeleteByNonOwnerReturnsNotFound(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})
	ownerID := uuid.New()

	video, err := svc.Ingest(context.Background(), ownerID, IngestInput{
		Reader:    strings.NewReader("payload"),
		FileName:  "clip.mp4",
		SizeBytes: 7,
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	err = svc.Delete(context.Background(), video.ID, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found for non-owner, got %v", err)
	}
	if _, ok := repo.rows[video.ID]; !ok {
		t.Fatal("expected row to remain")
	}
	exists, err := blobs.Exists(context.Background(), video.StorageKey)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected blob to remain")
	}
}

func TestDeleteToleratesMissingBlob(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})
	ownerID := uuid.New()

	video, err := svc.Ingest(context.Background(), ownerID, IngestInput{
		Reader:    strings.NewReader("payload"),
		FileName:  "clip.mp4",
		SizeBytes: 7,
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := blobs.Delete(context.Background(), video.StorageKey); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	if err := svc.Delete(context.Background(), video.ID, ownerID); err != nil {
		t.Fatalf("delete with missing blob: %v", err)
	}
	if _, ok := repo.rows[video.ID]; ok {
		t.Fatal("expected row to be removed")
	}
}

func assertNoBlobs(t *testing.T, blobs *disk.Store) {
	t.Helper()
	var found []string
	err := filepath.WalkDir(blobs.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking store root: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected empty blob store, found %v", found)
	}
}
