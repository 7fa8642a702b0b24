package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/api/responses"
	"github.com/keygate/keygate-backend/api/validators"
	"github.com/keygate/keygate-backend/internal/keys"
	"github.com/keygate/keygate-backend/pkg/enums"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
	"github.com/keygate/keygate-backend/pkg/logger"
	"github.com/keygate/keygate-backend/pkg/pagination"
)

type keysCreateRequest struct {
	Count             int    `json:"count" validate:"omitempty,min=1,max=100"`
	Note              string `json:"note"`
	OfflineTTLMinutes int    `json:"offline_ttl_minutes" validate:"omitempty,min=0"`
}

type keysUpdateRequest struct {
	Note              *string `json:"note"`
	OfflineTTLMinutes *int    `json:"offline_ttl_minutes" validate:"omitempty,min=0"`
}

// KeysCreate mints a batch of license keys.
func KeysCreate(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		var payload keysCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateKeys(r.Context(), keys.CreateInput{
			Count:             payload.Count,
			Note:              payload.Note,
			OfflineTTLMinutes: payload.OfflineTTLMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"keys": created})
	}
}

// KeysList returns a cursor page of keys, optionally filtered by status.
func KeysList(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := keys.ListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseKeyStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		result, err := svc.ListKeys(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// KeysGet returns one key with its activation history.
func KeysGet(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		id, err := keyIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetKey(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// KeysUpdate patches the mutable attributes of a key.
func KeysUpdate(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		id, err := keyIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload keysUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateKey(r.Context(), id, keys.UpdateInput{
			Note:              payload.Note,
			OfflineTTLMinutes: payload.OfflineTTLMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, updated)
	}
}

// KeyEnable re-activates a disabled key.
func KeyEnable(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return keyStatusAction(svc, logg, "enabled", func(svc keys.Service, r *http.Request, id uuid.UUID) error {
		return svc.EnableKey(r.Context(), id)
	})
}

// KeyDisable blocks future activations of a key.
func KeyDisable(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return keyStatusAction(svc, logg, "disabled", func(svc keys.Service, r *http.Request, id uuid.UUID) error {
		return svc.DisableKey(r.Context(), id)
	})
}

// KeyDelete logically deletes a key.
func KeyDelete(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return keyStatusAction(svc, logg, "deleted", func(svc keys.Service, r *http.Request, id uuid.UUID) error {
		return svc.DeleteKey(r.Context(), id)
	})
}

// KeyUnlock clears a concurrency temp-lock.
func KeyUnlock(svc keys.Service, logg *logger.Logger) http.HandlerFunc {
	return keyStatusAction(svc, logg, "unlocked", func(svc keys.Service, r *http.Request, id uuid.UUID) error {
		return svc.UnlockKey(r.Context(), id)
	})
}

func keyStatusAction(svc keys.Service, logg *logger.Logger, status string, action func(keys.Service, *http.Request, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "keys service unavailable"))
			return
		}

		id, err := keyIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := action(svc, r, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}

func keyIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "keyId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid key id")
	}
	return id, nil
}
