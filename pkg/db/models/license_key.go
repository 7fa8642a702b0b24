package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/pkg/enums"
)

// LicenseKey is the unit of entitlement a client redeems. The key string is
// an opaque bearer identifier; status gates whether it can bind to a device.
type LicenseKey struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Key               string          `gorm:"column:key;not null;unique"`
	Status            enums.KeyStatus `gorm:"column:status;type:key_status;not null;default:'active'"`
	Note              string          `gorm:"column:note"`
	OfflineTTLMinutes int             `gorm:"column:offline_ttl_minutes;not null;default:0"`
	LastViolationAt   *time.Time      `gorm:"column:last_violation_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's pluralization.
func (LicenseKey) TableName() string {
	return "license_keys"
}
