package videos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
	"github.com/vidstreamlabs/vidstream-backend/pkg/storage"
)

// StreamPlan carries everything the HTTP layer needs to write a streaming
// response: status, headers, and a body reader the caller must close.
type StreamPlan struct {
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string
	Body          io.ReadCloser
}

// byteRange is a closed interval within a blob of the given total size.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

func (r byteRange) contentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, total)
}

// errUnsatisfiableRange marks a syntactically valid range outside the blob.
var errUnsatisfiableRange = errors.New("range not satisfiable")

// errMalformedRange marks a Range header we cannot parse; policy is to fall
// back to the full-content response.
var errMalformedRange = errors.New("malformed range header")

// Stream resolves the video and produces a full (200) or partial (206)
// response plan from the raw Range header value.
func (s *Service) Stream(ctx context.Context, videoID uuid.UUID, rangeHeader string) (*StreamPlan, error) {
	video, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load video")
	}

	info, err := s.blobs.Stat(ctx, video.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Metadata/blob divergence: the client sees a plain 404 but we
			// log loudly so the inconsistency is visible.
			s.logg.Error(s.logg.WithVideoID(ctx, video.ID.String()), "video blob missing for existing record", err)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stat video payload")
	}
	total := info.Size

	reqRange, err := parseRangeHeader(rangeHeader, total)
	switch {
	case err == nil && reqRange != nil:
		body, openErr := s.blobs.OpenRange(ctx, video.StorageKey, reqRange.start, reqRange.length())
		if openErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, openErr, "open video payload")
		}
		return &StreamPlan{
			Status:        206,
			ContentType:   video.MimeType,
			ContentLength: reqRange.length(),
			ContentRange:  reqRange.contentRange(total),
			Body:          body,
		}, nil

	case errors.Is(err, errUnsatisfiableRange):
		return nil, pkgerrors.New(pkgerrors.CodeRangeInvalid, "requested range not satisfiable").
			WithDetails(map[string]any{"content_range": fmt.Sprintf("bytes */%d", total)})

	default:
		// No Range header, or one we could not parse: serve the whole blob.
		body, openErr := s.blobs.Open(ctx, video.StorageKey)
		if openErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, openErr, "open video payload")
		}
		return &StreamPlan{
			Status:        200,
			ContentType:   video.MimeType,
			ContentLength: total,
			Body:          body,
		}, nil
	}
}

// parseRangeHeader interprets a single bytes=start-[end] range. It returns
// (nil, nil) when the header is absent, errMalformedRange when unparseable,
// and errUnsatisfiableRange when the window falls outside the blob.
func parseRangeHeader(header string, total int64) (*byteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errMalformedRange
	}
	// Multi-range requests are not supported; treat them as malformed.
	if strings.Contains(spec, ",") {
		return nil, errMalformedRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, errMalformedRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		// Suffix ranges (bytes=-N) serve the trailing N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, errMalformedRange
		}
		if total == 0 {
			return nil, errUnsatisfiableRange
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return &byteRange{start: start, end: total - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, errMalformedRange
	}

	end := total - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return nil, errMalformedRange
		}
	}

	if start > end || start >= total {
		return nil, errUnsatisfiableRange
	}
	if end >= total {
		end = total - 1
	}
	return &byteRange{start: start, end: end}, nil
}
