package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage"
)

const defaultMimeType = "video/mp4"

type videoRepository interface {
	Create(ctx context.Context, video *models.Video) (*models.Video, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Video, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.VideoStatus, failureReason *string) (bool, error)
}

// Service owns the upload, lookup, and deletion semantics for videos.
type Service struct {
	repo       videoRepository
	blobs      storage.Store
	dispatcher Dispatcher
	meters     *metrics.VideoMetrics
	logg       *logger.Logger
	maxBytes   int64
}

// NewService wires the video service to its persistence, blob, and dispatch
// dependencies.
func NewService(repo videoRepository, blobs storage.Store, dispatcher Dispatcher, meters *metrics.VideoMetrics, logg *logger.Logger, maxBytes int64) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("video repository required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &Service{
		repo:       repo,
		blobs:      blobs,
		dispatcher: dispatcher,
		meters:     meters,
		logg:       logg,
		maxBytes:   maxBytes,
	}, nil
}

// IngestInput models an incoming upload.
type IngestInput struct {
	Reader    io.Reader
	FileName  string
	Title     string
	SizeBytes int64
	MimeType  string
}

// Ingest validates the upload, persists the blob then the metadata row, and
// dispatches a processing job. The record is returned in status processing.
func (s *Service) Ingest(ctx context.Context, ownerID uuid.UUID, input IngestInput) (*models.Video, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "video payload is required")
	}
	if input.SizeBytes <= 0 {
		s.meters.IncUpload("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload size must be positive")
	}
	if input.SizeBytes > s.maxBytes {
		s.meters.IncUpload("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("upload exceeds %d byte limit", s.maxBytes))
	}

	mimeType := strings.TrimSpace(input.MimeType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	if !isVideoMime(mimeType) {
		s.meters.IncUpload("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only video uploads are accepted")
	}

	videoID := uuid.New()
	storageKey := buildStorageKey(videoID, input.FileName)

	// The +1 lets us detect payloads that lie about their declared size.
	written, err := s.blobs.Put(ctx, storageKey, io.LimitReader(input.Reader, s.maxBytes+1))
	if err != nil {
		s.meters.IncUpload("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist video payload")
	}
	if written == 0 || written > s.maxBytes {
		s.removeBlob(ctx, storageKey)
		s.meters.IncUpload("rejected")
		if written == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "video payload is empty")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("upload exceeds %d byte limit", s.maxBytes))
	}

	video := &models.Video{
		ID:           videoID,
		OwnerID:      ownerID,
		OriginalName: displayName(input.Title, input.FileName),
		StorageKey:   storageKey,
		SizeBytes:    written,
		MimeType:     mimeType,
		Status:       enums.VideoStatusProcessing,
	}

	if _, err := s.repo.Create(ctx, video); err != nil {
		s.removeBlob(ctx, storageKey)
		s.meters.IncUpload("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist video row")
	}

	s.meters.IncUpload("accepted")
	s.meters.ObserveUploadSize(written)

	// Dispatch is fire-and-forget: the record stays processing and a later
	// redelivery or manual requeue picks it up.
	if err := s.dispatcher.Dispatch(ctx, Job{VideoID: videoID}); err != nil {
		s.logg.Error(s.logg.WithVideoID(ctx, videoID.String()), "dispatching processing job failed", err)
	}

	return video, nil
}

// Get returns a video scoped to its owner.
func (s *Service) Get(ctx context.Context, videoID, requesterID uuid.UUID) (*models.Video, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	video, err := s.repo.FindByIDAndOwner(ctx, videoID, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load video")
	}
	return video, nil
}

// ListParams bounds a listing request.
type ListParams struct {
	Limit  int
	Offset int
}

// List returns the requester's videos newest first.
func (s *Service) List(ctx context.Context, requesterID uuid.UUID, params ListParams) ([]models.Video, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByOwner(ctx, requesterID, params.Limit, params.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list videos")
	}
	return rows, nil
}

// Delete removes the blob then the metadata row. The lookup is scoped to the
// requester so non-owners observe not-found rather than forbidden.
func (s *Service) Delete(ctx context.Context, videoID, requesterID uuid.UUID) error {
	if requesterID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	video, err := s.repo.FindByIDAndOwner(ctx, videoID, requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load video")
	}

	// Blob first: a crash here leaves a re-deletable row, never an
	// unreachable blob.
	if err := s.blobs.Delete(ctx, video.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete video payload")
	}

	if err := s.repo.Delete(ctx, video.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete video row")
	}
	return nil
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "storage_key", key), "cleaning up orphaned blob failed")
	}
}

func isVideoMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "video/")
}

func displayName(title, fileName string) string {
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		return trimmed
	}
	if clean := sanitizeFileName(fileName); clean != "" {
		return clean
	}
	return "untitled"
}

func buildStorageKey(id uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = id.String() + ".mp4"
	}
	return fmt.Sprintf("videos/%s/%s", id.String(), cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == ".." {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
