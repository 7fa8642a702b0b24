package devices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keygate/keygate-backend/pkg/db/models"
)

// Repository defines persistence operations for device identities.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) (*models.Device, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a devices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error) {
	var device models.Device
	// Fingerprints are not unique-constrained; prefer the earliest row so a
	// duplicate insert never flips which identity a fingerprint resolves to.
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("created_at ASC").
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
		return nil, err
	}
	return device, nil
}

func (r *repository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Update("name", name).Error
}
