package enums

import "fmt"

// VideoStatus describes the lifecycle state of an uploaded video.
type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

var validVideoStatuses = []VideoStatus{
	VideoStatusProcessing,
	VideoStatusReady,
	VideoStatusFailed,
}

// String returns the literal string for the status.
func (v VideoStatus) String() string {
	return string(v)
}

// IsValid reports whether the status is known.
func (v VideoStatus) IsValid() bool {
	for _, candidate := range validVideoStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transition.
func (v VideoStatus) IsTerminal() bool {
	return v == VideoStatusReady || v == VideoStatusFailed
}

// ParseVideoStatus converts raw input into a VideoStatus.
func ParseVideoStatus(value string) (VideoStatus, error) {
	for _, candidate := range validVideoStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid video status %q", value)
}
