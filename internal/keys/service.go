package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keygate/keygate-backend/pkg/db"
	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/enums"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
	pkgpagination "github.com/keygate/keygate-backend/pkg/pagination"
)

// maxKeyGenRetries bounds regeneration attempts on key-string collisions.
const maxKeyGenRetries = 5

const maxBatchSize = 100

// Service exposes administrative license key management. The activation
// protocol itself never calls these; they are the admin surface that feeds
// keys into the ledger.
type Service interface {
	CreateKeys(ctx context.Context, input CreateInput) ([]models.LicenseKey, error)
	ListKeys(ctx context.Context, params ListParams) (*ListResult, error)
	GetKey(ctx context.Context, id uuid.UUID) (*KeyDetail, error)
	UpdateKey(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.LicenseKey, error)
	EnableKey(ctx context.Context, id uuid.UUID) error
	DisableKey(ctx context.Context, id uuid.UUID) error
	DeleteKey(ctx context.Context, id uuid.UUID) error
	UnlockKey(ctx context.Context, id uuid.UUID) error
	ForceUnbind(ctx context.Context, activationID uuid.UUID) error
}

// CreateInput describes a batch of keys to mint.
type CreateInput struct {
	Count             int
	Note              string
	OfflineTTLMinutes int
}

// UpdateInput carries the mutable key attributes; nil fields are left alone.
type UpdateInput struct {
	Note              *string
	OfflineTTLMinutes *int
}

// KeyDetail is the admin view of one key with its activation history.
type KeyDetail struct {
	Key         models.LicenseKey   `json:"key"`
	Activations []models.Activation `json:"activations"`
}

type service struct {
	repo Repository
	now  func() time.Time

	generate func() (string, error)
}

// NewService builds the key management service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("keys repository required")
	}
	return &service{
		repo:     repo,
		now:      time.Now,
		generate: GenerateKey,
	}, nil
}

func (s *service) CreateKeys(ctx context.Context, input CreateInput) ([]models.LicenseKey, error) {
	count := input.Count
	if count <= 0 {
		count = 1
	}
	if count > maxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("count must be at most %d", maxBatchSize))
	}
	if input.OfflineTTLMinutes < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offline_ttl_minutes must not be negative")
	}

	created := make([]models.LicenseKey, 0, count)
	for i := 0; i < count; i++ {
		key, err := s.createOne(ctx, input)
		if err != nil {
			return nil, err
		}
		created = append(created, *key)
	}
	return created, nil
}

// createOne regenerates on key-string collisions; the unique index is the
// real uniqueness guarantee.
func (s *service) createOne(ctx context.Context, input CreateInput) (*models.LicenseKey, error) {
	for attempt := 0; attempt < maxKeyGenRetries; attempt++ {
		keyString, err := s.generate()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate key string")
		}

		created, err := s.repo.Create(ctx, &models.LicenseKey{
			Key:               keyString,
			Status:            enums.KeyStatusActive,
			Note:              strings.TrimSpace(input.Note),
			OfflineTTLMinutes: input.OfflineTTLMinutes,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license key")
		}
		return created, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "exhausted key generation retries")
}

func (s *service) ListKeys(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		status: params.Status,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list license keys")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) GetKey(ctx context.Context, id uuid.UUID) (*KeyDetail, error) {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return nil, err
	}
	activations, err := s.repo.ListActivations(ctx, key.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activations")
	}
	return &KeyDetail{Key: *key, Activations: activations}, nil
}

func (s *service) UpdateKey(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.LicenseKey, error) {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Note != nil {
		note := strings.TrimSpace(*input.Note)
		updates["note"] = note
		key.Note = note
	}
	if input.OfflineTTLMinutes != nil {
		if *input.OfflineTTLMinutes < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offline_ttl_minutes must not be negative")
		}
		updates["offline_ttl_minutes"] = *input.OfflineTTLMinutes
		key.OfflineTTLMinutes = *input.OfflineTTLMinutes
	}
	if len(updates) == 0 {
		return key, nil
	}

	if err := s.repo.Update(ctx, key.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license key")
	}
	return key, nil
}

func (s *service) EnableKey(ctx context.Context, id uuid.UUID) error {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return err
	}
	if key.Status == enums.KeyStatusDeleted {
		return pkgerrors.New(pkgerrors.CodeConflict, "deleted keys cannot be re-enabled")
	}
	return s.setStatus(ctx, key.ID, enums.KeyStatusActive)
}

func (s *service) DisableKey(ctx context.Context, id uuid.UUID) error {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return err
	}
	if key.Status == enums.KeyStatusDeleted {
		return pkgerrors.New(pkgerrors.CodeConflict, "deleted keys cannot be disabled")
	}
	return s.setStatus(ctx, key.ID, enums.KeyStatusDisabled)
}

// DeleteKey is a logical delete; the row stays for the audit trail.
func (s *service) DeleteKey(ctx context.Context, id uuid.UUID) error {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return err
	}
	return s.setStatus(ctx, key.ID, enums.KeyStatusDeleted)
}

// UnlockKey clears a concurrency lock. The violation timestamp is kept for
// the audit trail.
func (s *service) UnlockKey(ctx context.Context, id uuid.UUID) error {
	key, err := s.findKey(ctx, id)
	if err != nil {
		return err
	}
	if key.Status != enums.KeyStatusTempLocked {
		return pkgerrors.New(pkgerrors.CodeConflict, "key is not locked")
	}
	return s.setStatus(ctx, key.ID, enums.KeyStatusActive)
}

func (s *service) ForceUnbind(ctx context.Context, activationID uuid.UUID) error {
	if activationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "activation id is required")
	}
	activation, err := s.repo.FindActivation(ctx, activationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup activation")
	}
	if activation.Status == enums.ActivationStatusUnbound {
		return nil
	}
	if err := s.repo.UnbindActivation(ctx, activation.ID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind activation")
	}
	return nil
}

func (s *service) findKey(ctx context.Context, id uuid.UUID) (*models.LicenseKey, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key id is required")
	}
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license key")
	}
	return key, nil
}

func (s *service) setStatus(ctx context.Context, id uuid.UUID, status enums.KeyStatus) error {
	if err := s.repo.Update(ctx, id, map[string]any{"status": status}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update key status")
	}
	return nil
}
