package devices

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keygate/keygate-backend/pkg/db/models"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
)

type stubDevicesRepo struct {
	byFingerprint map[string]*models.Device
	created       []*models.Device
	renamed       map[uuid.UUID]string
}

func newStubDevicesRepo() *stubDevicesRepo {
	return &stubDevicesRepo{
		byFingerprint: map[string]*models.Device{},
		renamed:       map[uuid.UUID]string{},
	}
}

func (s *stubDevicesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubDevicesRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error) {
	if device, ok := s.byFingerprint[fingerprint]; ok {
		return device, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDevicesRepo) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	s.byFingerprint[device.Fingerprint] = device
	s.created = append(s.created, device)
	return device, nil
}

func (s *stubDevicesRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	s.renamed[id] = name
	return nil
}

func TestEnsureDeviceCreatesOnFirstSight(t *testing.T) {
	repo := newStubDevicesRepo()
	svc, err := NewService(repo, false)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	name := "workstation"
	device, err := svc.EnsureDevice(context.Background(), nil, "fp-1", &name)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if device.Fingerprint != "fp-1" {
		t.Fatalf("unexpected fingerprint %s", device.Fingerprint)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one create got %d", len(repo.created))
	}
}

func TestEnsureDeviceReturnsExisting(t *testing.T) {
	repo := newStubDevicesRepo()
	existingName := "original"
	existing := &models.Device{ID: uuid.New(), Fingerprint: "fp-1", Name: &existingName}
	repo.byFingerprint["fp-1"] = existing

	svc, _ := NewService(repo, false)

	newName := "renamed"
	device, err := svc.EnsureDevice(context.Background(), nil, "fp-1", &newName)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if device.ID != existing.ID {
		t.Fatalf("expected existing device, got %s", device.ID)
	}
	if len(repo.created) != 0 {
		t.Fatalf("unexpected create call")
	}
	if len(repo.renamed) != 0 {
		t.Fatalf("name must not be overwritten under default policy")
	}
	if device.Name == nil || *device.Name != existingName {
		t.Fatalf("expected stored name preserved")
	}
}

func TestEnsureDeviceOverwritesNameWhenPolicyEnabled(t *testing.T) {
	repo := newStubDevicesRepo()
	existing := &models.Device{ID: uuid.New(), Fingerprint: "fp-1"}
	repo.byFingerprint["fp-1"] = existing

	svc, _ := NewService(repo, true)

	newName := "renamed"
	device, err := svc.EnsureDevice(context.Background(), nil, "fp-1", &newName)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got, ok := repo.renamed[existing.ID]; !ok || got != newName {
		t.Fatalf("expected rename to %q, got %q", newName, got)
	}
	if device.Name == nil || *device.Name != newName {
		t.Fatalf("expected returned device to carry new name")
	}
}

func TestEnsureDeviceRejectsEmptyFingerprint(t *testing.T) {
	repo := newStubDevicesRepo()
	svc, _ := NewService(repo, false)

	_, err := svc.EnsureDevice(context.Background(), nil, "   ", nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}
