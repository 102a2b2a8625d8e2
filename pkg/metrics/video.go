package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VideoMetrics records counters and histograms for the upload, processing,
// and streaming paths.
type VideoMetrics struct {
	uploads        *prometheus.CounterVec
	uploadBytes    prometheus.Histogram
	streams        *prometheus.CounterVec
	streamedBytes  prometheus.Counter
	transitions    *prometheus.CounterVec
	processingTime prometheus.Histogram
}

// NewVideoMetrics registers the video metrics on the provided registerer.
func NewVideoMetrics(reg prometheus.Registerer) *VideoMetrics {
	if reg == nil {
		return &VideoMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_uploads_total",
		Help: "Video upload attempts by outcome.",
	}, []string{"outcome"})
	uploadBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "video_upload_bytes",
		Help:    "Size of accepted uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(1<<20, 2, 8),
	})
	streams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_stream_requests_total",
		Help: "Streaming requests by HTTP status code.",
	}, []string{"status"})
	streamedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "video_streamed_bytes_total",
		Help: "Total payload bytes served by the streaming endpoint.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_status_transitions_total",
		Help: "Video lifecycle transitions by target status.",
	}, []string{"to"})
	processingTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "video_processing_seconds",
		Help:    "Wall time spent processing a video job.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(uploads, uploadBytes, streams, streamedBytes, transitions, processingTime)
	return &VideoMetrics{
		uploads:        uploads,
		uploadBytes:    uploadBytes,
		streams:        streams,
		streamedBytes:  streamedBytes,
		transitions:    transitions,
		processingTime: processingTime,
	}
}

// IncUpload counts an upload attempt by outcome (accepted, rejected, failed).
func (m *VideoMetrics) IncUpload(outcome string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveUploadSize records the byte size of an accepted upload.
func (m *VideoMetrics) ObserveUploadSize(size int64) {
	if m == nil || m.uploadBytes == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}

// IncStream counts a streaming request by response status code.
func (m *VideoMetrics) IncStream(statusCode int) {
	if m == nil || m.streams == nil {
		return
	}
	m.streams.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// AddStreamedBytes accumulates payload bytes served to clients.
func (m *VideoMetrics) AddStreamedBytes(n int64) {
	if m == nil || m.streamedBytes == nil || n <= 0 {
		return
	}
	m.streamedBytes.Add(float64(n))
}

// IncTransition counts a lifecycle transition to the named status.
func (m *VideoMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// ObserveProcessing records how long a processing job took.
func (m *VideoMetrics) ObserveProcessing(duration time.Duration) {
	if m == nil || m.processingTime == nil {
		return
	}
	m.processingTime.Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
