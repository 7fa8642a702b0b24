package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/keygate/keygate-backend/pkg/db/models"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
)

// Service resolves device fingerprints to stable device identities.
type Service interface {
	EnsureDevice(ctx context.Context, tx *gorm.DB, fingerprint string, name *string) (*models.Device, error)
}

type service struct {
	repo Repository

	// overwriteName controls whether re-attaching a known fingerprint updates
	// its stored display name. Default policy is to keep the first name seen.
	overwriteName bool
}

// NewService builds a device registry service.
func NewService(repo Repository, overwriteName bool) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	return &service{repo: repo, overwriteName: overwriteName}, nil
}

// EnsureDevice looks up a device by fingerprint, creating one on first
// sight. The fingerprint is a client-supplied correlation key, never an
// identity proof.
func (s *service) EnsureDevice(ctx context.Context, tx *gorm.DB, fingerprint string, name *string) (*models.Device, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device fingerprint required")
	}

	repo := s.repo.WithTx(tx)

	device, err := repo.FindByFingerprint(ctx, fingerprint)
	if err == nil {
		if s.overwriteName && name != nil && (device.Name == nil || *device.Name != *name) {
			if err := repo.UpdateName(ctx, device.ID, *name); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device name")
			}
			device.Name = name
		}
		return device, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find device")
	}

	created, err := repo.Create(ctx, &models.Device{
		Fingerprint: fingerprint,
		Name:        name,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create device")
	}
	return created, nil
}
