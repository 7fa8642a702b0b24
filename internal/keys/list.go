package keys

import (
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/enums"
	pkgpagination "github.com/keygate/keygate-backend/pkg/pagination"
)

type ListParams struct {
	Status *enums.KeyStatus
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID                uuid.UUID       `json:"id"`
	Key               string          `json:"key"`
	Status            enums.KeyStatus `json:"status"`
	Note              string          `json:"note"`
	OfflineTTLMinutes int             `json:"offline_ttl_minutes"`
	LastViolationAt   *time.Time      `json:"last_violation_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type listQuery struct {
	status *enums.KeyStatus
	limit  int
	cursor *pkgpagination.Cursor
}

func toListItem(m models.LicenseKey) ListItem {
	return ListItem{
		ID:                m.ID,
		Key:               m.Key,
		Status:            m.Status,
		Note:              m.Note,
		OfflineTTLMinutes: m.OfflineTTLMinutes,
		LastViolationAt:   m.LastViolationAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
