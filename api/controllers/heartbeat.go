package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/keygate/keygate-backend/api/responses"
	"github.com/keygate/keygate-backend/internal/activations"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
	"github.com/keygate/keygate-backend/pkg/logger"
	"github.com/keygate/keygate-backend/pkg/metrics"
)

type heartbeatResponse struct {
	OK bool `json:"ok"`
	// Always present on the wire, null when the key carries no offline grace.
	AllowOfflineUntil *time.Time `json:"allow_offline_until"`
}

// Heartbeat records liveness for the session behind the bearer token.
func Heartbeat(svc activations.Service, m *metrics.LicensingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		start := time.Now()
		defer func() {
			m.ObserveDuration("heartbeat", time.Since(start))
		}()

		token, ok := sessionBearerToken(r)
		if !ok {
			m.IncHeartbeat(string(pkgerrors.CodeNoToken))
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNoToken, "authorization token required"))
			return
		}

		result, err := svc.Heartbeat(r.Context(), token)
		if err != nil {
			m.IncHeartbeat(resultLabel(err))
			if isConflict(err) {
				m.IncConflict()
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncHeartbeat("ok")
		responses.WriteFlat(w, http.StatusOK, heartbeatResponse{
			OK:                true,
			AllowOfflineUntil: result.AllowOfflineUntil,
		})
	}
}

func sessionBearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", false
	}
	return token, true
}
