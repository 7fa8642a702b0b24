package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/pkg/enums"
)

// Activation binds one license key to one device. Rows are never physically
// deleted; supersession flips status to unbound so the history stays
// auditable. Liveness is always derived from LastSeenAt against the
// heartbeat timeout, never from the status flag alone.
type Activation struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseKeyID  uuid.UUID              `gorm:"column:license_key_id;type:uuid;not null;index"`
	DeviceID      uuid.UUID              `gorm:"column:device_id;type:uuid;not null"`
	Status        enums.ActivationStatus `gorm:"column:status;type:activation_status;not null;default:'bound'"`
	BoundAt       time.Time              `gorm:"column:bound_at;not null"`
	UnboundAt     *time.Time             `gorm:"column:unbound_at"`
	LastSeenAt    *time.Time             `gorm:"column:last_seen_at"`
	ClientVersion *string                `gorm:"column:client_version"`
	ClientBuild   *string                `gorm:"column:client_build"`
	SessionToken  string                 `gorm:"column:session_token"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}
