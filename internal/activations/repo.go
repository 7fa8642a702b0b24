package activations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/enums"
)

// Repository defines persistence operations for the activation ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindKeyForUpdate(ctx context.Context, key string) (*models.LicenseKey, error)
	FindKeyByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LicenseKey, error)
	UpdateKey(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindActivation(ctx context.Context, id uuid.UUID) (*models.Activation, error)
	FindLatestBound(ctx context.Context, licenseKeyID uuid.UUID) (*models.Activation, error)
	UnbindAllBound(ctx context.Context, licenseKeyID uuid.UUID, at time.Time) error
	CreateActivation(ctx context.Context, activation *models.Activation) (*models.Activation, error)
	UpdateActivation(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an activations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindKeyForUpdate loads a license key by its key string and takes a row
// lock. The lock serializes the read-decide-write sequence per key so two
// concurrent activations cannot both conclude the key is free.
func (r *repository) FindKeyForUpdate(ctx context.Context, key string) (*models.LicenseKey, error) {
	var row models.LicenseKey
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", key).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindKeyByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.LicenseKey, error) {
	var row models.LicenseKey
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateKey(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.LicenseKey{}).
		Where("id = ?", id).
		Updates(updates).Error
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

// FindLatestBound returns the most recently bound activation still flagged
// Bound for the key, or nil when none exists. Callers derive liveness from
// last_seen_at; the flag alone says nothing about being online.
func (r *repository) FindLatestBound(ctx context.Context, licenseKeyID uuid.UUID) (*models.Activation, error) {
	var activation models.Activation
	err := r.db.WithContext(ctx).
		Where("license_key_id = ? AND status = ?", licenseKeyID, enums.ActivationStatusBound).
		Order("bound_at DESC").
		First(&activation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &activation, nil
}

// UnbindAllBound closes every Bound row for the key. At most one should
// exist under correct sequencing, but stale duplicates are closed too.
func (r *repository) UnbindAllBound(ctx context.Context, licenseKeyID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Activation{}).
		Where("license_key_id = ? AND status = ?", licenseKeyID, enums.ActivationStatusBound).
		Updates(map[string]any{
			"status":     enums.ActivationStatusUnbound,
			"unbound_at": at,
		}).Error
}

func (r *repository) CreateActivation(ctx context.Context, activation *models.Activation) (*models.Activation, error) {
	if err := r.db.WithContext(ctx).Create(activation).Error; err != nil {
		return nil, err
	}
	return activation, nil
}

func (r *repository) UpdateActivation(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Activation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
