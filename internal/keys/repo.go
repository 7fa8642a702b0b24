package keys

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/enums"
)

// Repository defines persistence operations for administrative key management.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, key *models.LicenseKey) (*models.LicenseKey, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.LicenseKey, error)
	List(ctx context.Context, opts listQuery) ([]models.LicenseKey, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListActivations(ctx context.Context, licenseKeyID uuid.UUID) ([]models.Activation, error)
	FindActivation(ctx context.Context, id uuid.UUID) (*models.Activation, error)
	UnbindActivation(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a keys repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, key *models.LicenseKey) (*models.LicenseKey, error) {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, err
	}
	return key, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LicenseKey, error) {
	var key models.LicenseKey
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repository) List(ctx context.Context, opts listQuery) ([]models.LicenseKey, error) {
	query := r.db.WithContext(ctx).Model(&models.LicenseKey{})

	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.LicenseKey
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.LicenseKey{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListActivations(ctx context.Context, licenseKeyID uuid.UUID) ([]models.Activation, error) {
	var rows []models.Activation
	err := r.db.WithContext(ctx).
		Where("license_key_id = ?", licenseKeyID).
		Order("bound_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActivation(ctx context.Context, id uuid.UUID) (*models.Activation, error) {
	var activation models.Activation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&activation).Error
	if err != nil {
		return nil, err
	}
	return &activation, nil
}

// UnbindActivation force-closes one activation regardless of liveness. This
// is the administrative escape hatch that bypasses the ledger's normal
// supersession rules.
func (r *repository) UnbindActivation(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Activation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.ActivationStatusUnbound,
			"unbound_at": at,
		}).Error
}
