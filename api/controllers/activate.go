package controllers

import (
	"net/http"
	"time"

	"github.com/keygate/keygate-backend/api/responses"
	"github.com/keygate/keygate-backend/api/validators"
	"github.com/keygate/keygate-backend/internal/activations"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
	"github.com/keygate/keygate-backend/pkg/logger"
	"github.com/keygate/keygate-backend/pkg/metrics"
)

type activateRequest struct {
	Key               string  `json:"key" validate:"required"`
	DeviceFingerprint string  `json:"device_fingerprint" validate:"required"`
	DeviceName        *string `json:"device_name"`
	ClientVersion     *string `json:"client_version"`
	Build             *string `json:"build"`
}

type activateResponse struct {
	SessionToken string `json:"session_token"`
	OfflineToken string `json:"offline_token,omitempty"`
}

// Activate binds a license key to the calling device and returns the issued
// tokens. The response body is flat; installed clients do not unwrap the
// admin envelope.
func Activate(svc activations.Service, m *metrics.LicensingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		start := time.Now()
		defer func() {
			m.ObserveDuration("activate", time.Since(start))
		}()

		var payload activateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			// The protocol promises a single code for absent credentials, so
			// validation failures collapse into it.
			m.IncActivation(string(pkgerrors.CodeMissingKeyOrFingerprint))
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMissingKeyOrFingerprint, "key and device_fingerprint are required"))
			return
		}

		result, err := svc.Activate(r.Context(), activations.ActivateInput{
			Key:               payload.Key,
			DeviceFingerprint: payload.DeviceFingerprint,
			DeviceName:        payload.DeviceName,
			ClientVersion:     payload.ClientVersion,
			ClientBuild:       payload.Build,
		})
		if err != nil {
			m.IncActivation(resultLabel(err))
			if isConflict(err) {
				m.IncConflict()
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncActivation("ok")
		responses.WriteFlat(w, http.StatusOK, activateResponse{
			SessionToken: result.SessionToken,
			OfflineToken: result.OfflineToken,
		})
	}
}

func resultLabel(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}

func isConflict(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeConcurrentUse
}
