package videos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidstreamlabs/vidstream-backend/pkg/db/models"
	"github.com/vidstreamlabs/vidstream-backend/pkg/enums"
)

// Repository persists video metadata through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a video repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a video record.
func (r *Repository) Create(ctx context.Context, video *models.Video) (*models.Video, error) {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

// FindByID retrieves a video record by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var v models.Video
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByIDAndOwner retrieves a video scoped to its owner. Non-owners see the
// same not-found error as a missing row.
func (r *Repository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Video, error) {
	var v models.Video
	if err := r.db.WithContext(ctx).First(&v, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByOwner returns the owner's videos newest first. A non-positive limit
// means no cap.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Video, error) {
	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var rows []models.Video
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes a video record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error
}

// UpdateStatusFrom applies a lifecycle transition with a conditional UPDATE
// guarded on the current status. It reports whether the transition was
// applied; false means the row is absent or no longer in the from status.
func (r *Repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.VideoStatus, failureReason *string) (bool, error) {
	updates := map[string]any{
		"status":         to,
		"failure_reason": failureReason,
	}
	result := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
