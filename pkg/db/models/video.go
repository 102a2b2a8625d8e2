package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
)

// Video captures the metadata record for an uploaded video. The blob itself
// lives in the storage backend under StorageKey; the row only references it.
type Video struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerID       uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	OriginalName  string            `gorm:"column:original_name;not null" json:"original_name"`
	StorageKey    string            `gorm:"column:storage_key;not null;unique" json:"-"`
	SizeBytes     int64             `gorm:"column:size_bytes;not null" json:"size_bytes"`
	MimeType      string            `gorm:"column:mime_type;not null" json:"mime_type"`
	Status        enums.VideoStatus `gorm:"column:status;not null" json:"status"`
	FailureReason *string           `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
