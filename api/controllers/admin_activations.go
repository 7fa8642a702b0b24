package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/api/responses"
	"github.com/keygate/keygate-backend/internal/keys"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
	"github.com/keygate/keygate-backend/pkg/logger"
)

// ActivationForceUnbind releases a device binding without waiting for the
// heartbeat timeout.
func ActivationForceUnbind(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "activationId"))
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid activation id"))
			return
		}

		if err := svc.ForceUnbind(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "unbound"})
	}
}
