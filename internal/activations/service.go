package activations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/keygate/keygate-backend/pkg/auth"
	"github.com/keygate/keygate-backend/pkg/config"
	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/enums"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeviceResolver resolves a fingerprint to a device identity inside the
// ledger transaction.
type DeviceResolver interface {
	EnsureDevice(ctx context.Context, tx *gorm.DB, fingerprint string, name *string) (*models.Device, error)
}

// Service is the activation ledger: it binds keys to devices, detects
// concurrent use, records liveness, and issues bearer tokens.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*ActivateResult, error)
	Heartbeat(ctx context.Context, sessionToken string) (*HeartbeatResult, error)
}

// ActivateInput carries one activation request.
type ActivateInput struct {
	Key               string
	DeviceFingerprint string
	DeviceName        *string
	ClientVersion     *string
	ClientBuild       *string
}

// ActivateResult carries the issued tokens. OfflineToken is empty when the
// key has no offline grace configured.
type ActivateResult struct {
	SessionToken string
	OfflineToken string
}

// HeartbeatResult reports the offline-grace horizon granted by a successful
// heartbeat, or nil when the key has no offline grace.
type HeartbeatResult struct {
	AllowOfflineUntil *time.Time
}

type service struct {
	repo    Repository
	devices DeviceResolver
	tx      txRunner
	jwtCfg  config.JWTConfig
	cfg     config.LicenseConfig
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build the ledger.
type ServiceParams struct {
	Repo          Repository
	Devices       DeviceResolver
	TxRunner      txRunner
	JWTConfig     config.JWTConfig
	LicenseConfig config.LicenseConfig

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewService constructs the activation ledger with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("activations repository required")
	}
	if params.Devices == nil {
		return nil, fmt.Errorf("device resolver required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.LicenseConfig.HeartbeatTimeout <= 0 {
		return nil, fmt.Errorf("heartbeat timeout must be positive")
	}
	if params.LicenseConfig.SessionTTL() <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		devices: params.Devices,
		tx:      params.TxRunner,
		jwtCfg:  params.JWTConfig,
		cfg:     params.LicenseConfig,
		now:     now,
	}, nil
}

// Activate binds a license key to the device behind the fingerprint. The
// read-decide-write sequence runs under a row lock on the key so conflicting
// activations serialize instead of double-binding.
func (s *service) Activate(ctx context.Context, input ActivateInput) (*ActivateResult, error) {
	if strings.TrimSpace(input.Key) == "" || strings.TrimSpace(input.DeviceFingerprint) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingKeyOrFingerprint, "key and device_fingerprint are required")
	}

	now := s.now()
	var result *ActivateResult
	var denial *pkgerrors.Error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		key, err := repo.FindKeyForUpdate(ctx, strings.TrimSpace(input.Key))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeKeyNotFound, "license key not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license key")
		}
		if err := rejectUnusableKey(key.Status); err != nil {
			return err
		}

		device, err := s.devices.EnsureDevice(ctx, tx, input.DeviceFingerprint, input.DeviceName)
		if err != nil {
			return err
		}

		current, err := repo.FindLatestBound(ctx, key.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current activation")
		}
		online := s.isOnline(current, now)

		if online && current.DeviceID != device.ID {
			// Concurrent use. The lock must commit even though the request
			// fails, so the denial is captured and nil is returned here.
			if err := s.lockKey(ctx, repo, key.ID, now); err != nil {
				return err
			}
			denial = pkgerrors.New(pkgerrors.CodeConcurrentUse, "license key is online on another device")
			return nil
		}

		var activation *models.Activation
		if online {
			// Same device re-activating: reuse the row, refresh diagnostics.
			activation = current
			updates := map[string]any{"last_seen_at": now}
			if input.ClientVersion != nil {
				updates["client_version"] = *input.ClientVersion
			}
			if input.ClientBuild != nil {
				updates["client_build"] = *input.ClientBuild
			}
			if err := repo.UpdateActivation(ctx, activation.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh activation")
			}
		} else {
			if err := repo.UnbindAllBound(ctx, key.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close stale activations")
			}
			lastSeen := now
			activation, err = repo.CreateActivation(ctx, &models.Activation{
				LicenseKeyID:  key.ID,
				DeviceID:      device.ID,
				Status:        enums.ActivationStatusBound,
				BoundAt:       now,
				LastSeenAt:    &lastSeen,
				ClientVersion: input.ClientVersion,
				ClientBuild:   input.ClientBuild,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create activation")
			}
		}

		sessionToken, err := pkgauth.MintToken(s.jwtCfg, now, pkgauth.SessionSubject(activation.ID), s.cfg.SessionTTL())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
		}
		if err := repo.UpdateActivation(ctx, activation.ID, map[string]any{"session_token": sessionToken}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session token")
		}

		result = &ActivateResult{SessionToken: sessionToken}
		if key.OfflineTTLMinutes > 0 {
			offlineTTL := time.Duration(key.OfflineTTLMinutes) * time.Minute
			offlineToken, err := pkgauth.MintToken(s.jwtCfg, now, pkgauth.OfflineSubject(activation.ID), offlineTTL)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint offline token")
			}
			result.OfflineToken = offlineToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if denial != nil {
		return nil, denial
	}
	return result, nil
}

// Heartbeat records liveness for the activation behind the session token and
// re-checks for concurrent use. The conflict check runs before the caller's
// own last_seen_at refresh so the current call cannot mask a genuine
// conflict by looking like the most-recently-seen row.
func (s *service) Heartbeat(ctx context.Context, sessionToken string) (*HeartbeatResult, error) {
	subject, err := pkgauth.ParseToken(s.jwtCfg, sessionToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeTokenInvalid, "token verification failed")
	}
	activationID, ok := pkgauth.ActivationIDFromSubject(subject)
	if !ok {
		// Offline-grace tokens land here: their subject never resolves to an
		// activation, so they cannot be replayed as heartbeat credentials.
		return nil, pkgerrors.New(pkgerrors.CodeSessionNotFound, "token subject does not resolve to a session")
	}

	now := s.now()
	var result *HeartbeatResult
	var denial *pkgerrors.Error

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		activation, err := repo.FindActivation(ctx, activationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeSessionNotFound, "activation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activation")
		}

		key, err := repo.FindKeyByIDForUpdate(ctx, activation.LicenseKeyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeSessionNotFound, "license key missing for activation")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license key")
		}
		if key.Status != enums.KeyStatusActive {
			// A heartbeat never unlocks a locked key.
			return pkgerrors.New(pkgerrors.CodeKeyNotAvailable, "license key not available")
		}

		current, err := repo.FindLatestBound(ctx, key.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current activation")
		}
		if current != nil && current.ID != activation.ID && current.DeviceID != activation.DeviceID && s.isOnline(current, now) {
			if err := s.lockKey(ctx, repo, key.ID, now); err != nil {
				return err
			}
			denial = pkgerrors.New(pkgerrors.CodeConcurrentUse, "license key is online on another device")
			return nil
		}

		if err := repo.UpdateActivation(ctx, activation.ID, map[string]any{
			"last_seen_at": now,
			"status":       enums.ActivationStatusBound,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record liveness")
		}

		result = &HeartbeatResult{}
		if key.OfflineTTLMinutes > 0 {
			until := now.Add(time.Duration(key.OfflineTTLMinutes) * time.Minute)
			result.AllowOfflineUntil = &until
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if denial != nil {
		return nil, denial
	}
	return result, nil
}

// isOnline derives liveness from last_seen_at against the heartbeat timeout.
// The stored status flag is only advisory between observations.
func (s *service) isOnline(activation *models.Activation, now time.Time) bool {
	if activation == nil || activation.Status != enums.ActivationStatusBound {
		return false
	}
	if activation.LastSeenAt == nil {
		return false
	}
	return now.Sub(*activation.LastSeenAt) <= s.cfg.HeartbeatTimeout
}

func (s *service) lockKey(ctx context.Context, repo Repository, keyID uuid.UUID, now time.Time) error {
	err := repo.UpdateKey(ctx, keyID, map[string]any{
		"status":            enums.KeyStatusTempLocked,
		"last_violation_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock license key")
	}
	return nil
}

func rejectUnusableKey(status enums.KeyStatus) error {
	switch status {
	case enums.KeyStatusDeleted:
		return pkgerrors.New(pkgerrors.CodeKeyDeleted, "license key deleted")
	case enums.KeyStatusDisabled:
		return pkgerrors.New(pkgerrors.CodeKeyDisabled, "license key disabled")
	case enums.KeyStatusTempLocked:
		return pkgerrors.New(pkgerrors.CodeKeyLocked, "license key is temporarily locked")
	default:
		return nil
	}
}
