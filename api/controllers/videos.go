package controllers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidstreamlabs/vidstream-backend/api/middleware"
	"github.com/vidstreamlabs/vidstream-backend/api/responses"
	"github.com/vidstreamlabs/vidstream-backend/api/validators"
	"github.com/vidstreamlabs/vidstream-backend/internal/videos"
	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
	"github.com/vidstreamlabs/vidstream-backend/pkg/metrics"
)

// uploadFormMemory caps how much of a multipart upload is buffered in memory
// before spilling to temp files.
const uploadFormMemory = 32 << 20

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxListOffset    = 1_000_000
)

// VideoService is the surface the video controllers need.
type VideoService interface {
	Ingest(ctx context.Context, ownerID uuid.UUID, input videos.IngestInput) (*models.Video, error)
	Get(ctx context.Context, videoID, requesterID uuid.UUID) (*models.Video, error)
	List(ctx context.Context, requesterID uuid.UUID, params videos.ListParams) ([]models.Video, error)
	Delete(ctx context.Context, videoID, requesterID uuid.UUID) error
	Stream(ctx context.Context, videoID uuid.UUID, rangeHeader string) (*videos.StreamPlan, error)
}

func requesterID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return id, nil
}

func videoIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "videoId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid video id")
	}
	return id, nil
}

// VideoUpload accepts a multipart upload under the "video" form field with an
// optional "title" field. The created record is returned in status processing.
func VideoUpload(svc VideoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		ownerID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := r.ParseMultipartForm(uploadFormMemory); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart payload"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("video")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "video form field is required"))
			return
		}
		defer file.Close()

		video, err := svc.Ingest(r.Context(), ownerID, videos.IngestInput{
			Reader:    file,
			FileName:  header.Filename,
			Title:     validators.SanitizeString(r.FormValue("title"), 255),
			SizeBytes: header.Size,
			MimeType:  header.Header.Get("Content-Type"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, video)
	}
}

// VideoList returns the requester's videos newest first.
func VideoList(svc VideoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, maxListOffset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), userID, videos.ListParams{Limit: limit, Offset: offset})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteList(w, len(rows), rows)
	}
}

// VideoDetail returns a single owned video.
func VideoDetail(svc VideoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		videoID, err := videoIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		video, err := svc.Get(r.Context(), videoID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, video)
	}
}

// VideoDelete removes an owned video and its stored payload.
func VideoDelete(svc VideoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		videoID, err := videoIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), videoID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// VideoStream serves the raw video bytes, honoring single byte ranges. The
// endpoint is public: anyone with the id can fetch the content.
func VideoStream(svc VideoService, meters *metrics.VideoMetrics, chunkSize int, logg *logger.Logger) http.HandlerFunc {
	if chunkSize <= 0 {
		chunkSize = 32 << 10
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")

		videoID, err := videoIDParam(r)
		if err != nil {
			meters.IncStream(http.StatusBadRequest)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.Stream(r.Context(), videoID, r.Header.Get("Range"))
		if err != nil {
			status := pkgerrors.MetadataFor(pkgerrors.As(err).Code()).HTTPStatus
			if detail := rangeDetail(err); detail != "" {
				w.Header().Set("Content-Range", detail)
			}
			meters.IncStream(status)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer plan.Body.Close()

		w.Header().Set("Content-Type", plan.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(plan.ContentLength, 10))
		if plan.ContentRange != "" {
			w.Header().Set("Content-Range", plan.ContentRange)
		}
		w.WriteHeader(plan.Status)
		meters.IncStream(plan.Status)

		n, copyErr := io.CopyBuffer(w, plan.Body, make([]byte, chunkSize))
		meters.AddStreamedBytes(n)
		if copyErr != nil && logg != nil {
			// Usually a client hanging up mid-stream.
			logg.Warn(logg.WithVideoID(r.Context(), videoID.String()), "streaming aborted")
		}
	}
}

// rangeDetail pulls the content_range detail off an unsatisfiable-range error
// so it can double as the Content-Range response header.
func rangeDetail(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRangeInvalid {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := details["content_range"].(string); ok {
		return v
	}
	return ""
}
