package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a client endpoint correlated by its fingerprint string. The
// fingerprint is client-supplied and untrusted; it is a correlation key, not
// an identity proof, so no uniqueness is enforced beyond equality lookups.
// Devices are append-only and never deleted.
type Device struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Fingerprint string    `gorm:"column:fingerprint;not null;index"`
	Name        *string   `gorm:"column:name"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
