package videos

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
	pkgerrors "github.com/vidstreamlabs/vidstream-backend/pkg/errors"
)

func ingestFixture(t *testing.T, svc *Service, payload string) uuid.UUID {
	t.Helper()
	video, err := svc.Ingest(context.Background(), uuid.New(), IngestInput{
		Reader:    strings.NewReader(payload),
		FileName:  "clip.mp4",
		SizeBytes: int64(len(payload)),
		MimeType:  "video/mp4",
	})
	if err != nil {
		t.Fatalf("ingest fixture: %v", err)
	}
	return video.ID
}

func TestStreamFullContent(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})
	payload := "0123456789abcdef"
	videoID := ingestFixture(t, svc, payload)

	plan, err := svc.Stream(context.Background(), videoID, "")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer plan.Body.Close()

	if plan.Status != 200 {
		t.Fatalf("expected 200, got %d", plan.Status)
	}
	if plan.ContentType != "video/mp4" {
		t.Fatalf("unexpected content type %q", plan.ContentType)
	}
	if plan.ContentLength != int64(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), plan.ContentLength)
	}
	if plan.ContentRange != "" {
		t.Fatalf("unexpected content range %q", plan.ContentRange)
	}

	body, err := io.ReadAll(plan.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != payload {
		t.Fatalf("body mismatch: %q", body)
	}
}

func TestStreamRangeWindows(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})
	payload := "0123456789"
	videoID := ingestFixture(t, svc, payload)

	cases := []struct {
		name      string
		header    string
		wantBody  string
		wantRange string
	}{
		{"bounded", "bytes=2-5", "2345", "bytes 2-5/10"},
		{"openEnded", "bytes=7-", "789", "bytes 7-9/10"},
		{"suffix", "bytes=-3", "789", "bytes 7-9/10"},
		{"endClamped", "bytes=8-99", "89", "bytes 8-9/10"},
		{"singleByte", "bytes=0-0", "0", "bytes 0-0/10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := svc.Stream(context.Background(), videoID, tc.header)
			if err != nil {
				t.Fatalf("stream: %v", err)
			}
			defer plan.Body.Close()

			if plan.Status != 206 {
				t.Fatalf("expected 206, got %d", plan.Status)
			}
			if plan.ContentRange != tc.wantRange {
				t.Fatalf("expected range %q, got %q", tc.wantRange, plan.ContentRange)
			}
			if plan.ContentLength != int64(len(tc.wantBody)) {
				t.Fatalf("expected length %d, got %d", len(tc.wantBody), plan.ContentLength)
			}
			body, err := io.ReadAll(plan.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(body) != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, body)
			}
		})
	}
}

func TestStreamMalformedRangeFallsBackToFull(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})
	payload := "0123456789"
	videoID := ingestFixture(t, svc, payload)

	for _, header := range []string{"bytes=abc-def", "frames=0-1", "bytes=5", "bytes=1-2,4-5"} {
		plan, err := svc.Stream(context.Background(), videoID, header)
		if err != nil {
			t.Fatalf("stream with header %q: %v", header, err)
		}
		if plan.Status != 200 {
			t.Fatalf("expected full response for %q, got %d", header, plan.Status)
		}
		plan.Body.Close()
	}
}

func TestStreamUnsatisfiableRange(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})
	videoID := ingestFixture(t, svc, "0123456789")

	for _, header := range []string{"bytes=10-", "bytes=99-100", "bytes=5-2"} {
		_, err := svc.Stream(context.Background(), videoID, header)
		if !pkgerrors.IsCode(err, pkgerrors.CodeRangeInvalid) {
			t.Fatalf("expected range error for %q, got %v", header, err)
		}
	}
}

func TestStreamUnknownVideoReturnsNotFound(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})

	_, err := svc.Stream(context.Background(), uuid.New(), "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestStreamMissingBlobReturnsNotFound(t *testing.T) {
	repo := newStubRepo()
	svc, blobs := newTestService(t, repo, &stubDispatcher{})
	videoID := ingestFixture(t, svc, "0123456789")

	video, err := repo.FindByID(context.Background(), videoID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := blobs.Delete(context.Background(), video.StorageKey); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	_, err = svc.Stream(context.Background(), videoID, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found for missing blob, got %v", err)
	}
}

func TestStreamAfterReadyServesRange(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(t, repo, &stubDispatcher{})
	payload := strings.Repeat("v", 4096)
	videoID := ingestFixture(t, svc, payload)

	applied, err := repo.UpdateStatusFrom(context.Background(), videoID, enums.VideoStatusProcessing, enums.VideoStatusReady, nil)
	if err != nil || !applied {
		t.Fatalf("mark ready: applied=%v err=%v", applied, err)
	}

	plan, err := svc.Stream(context.Background(), videoID, "bytes=1024-2047")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer plan.Body.Close()

	if plan.Status != 206 {
		t.Fatalf("expected 206, got %d", plan.Status)
	}
	if plan.ContentRange != "bytes 1024-2047/4096" {
		t.Fatalf("unexpected content range %q", plan.ContentRange)
	}
	body, err := io.ReadAll(plan.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(body) != 1024 {
		t.Fatalf("expected 1024 bytes, got %d", len(body))
	}
}

func TestParseRangeHeaderTable(t *testing.T) {
	cases := []struct {
		header    string
		total     int64
		wantStart int64
		wantEnd   int64
		wantErr   error
		wantNil   bool
	}{
		{header: "", total: 10, wantNil: true},
		{header: "bytes=0-4", total: 10, wantStart: 0, wantEnd: 4},
		{header: "bytes=5-", total: 10, wantStart: 5, wantEnd: 9},
		{header: "bytes=-2", total: 10, wantStart: 8, wantEnd: 9},
		{header: "bytes=-20", total: 10, wantStart: 0, wantEnd: 9},
		{header: "bytes=0-100", total: 10, wantStart: 0, wantEnd: 9},
		{header: "bytes=10-", total: 10, wantErr: errUnsatisfiableRange},
		{header: "bytes=6-3", total: 10, wantErr: errUnsatisfiableRange},
		{header: "bytes=-0", total: 10, wantErr: errMalformedRange},
		{header: "bytes=x-y", total: 10, wantErr: errMalformedRange},
		{header: "bits=0-4", total: 10, wantErr: errMalformedRange},
	}

	for _, tc := range cases {
		got, err := parseRangeHeader(tc.header, tc.total)
		if tc.wantErr != nil {
			if err != tc.wantErr {
				t.Fatalf("%q: expected %v, got %v", tc.header, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.header, err)
		}
		if tc.wantNil {
			if got != nil {
				t.Fatalf("%q: expected nil range", tc.header)
			}
			continue
		}
		if got == nil || got.start != tc.wantStart || got.end != tc.wantEnd {
			t.Fatalf("%q: expected [%d,%d], got %+v", tc.header, tc.wantStart, tc.wantEnd, got)
		}
	}
}
