package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keygate/keygate-backend/internal/activations"
	pkgerrors "github.com/keygate/keygate-backend/pkg/errors"
)

type stubActivationService struct {
	lastActivate  activations.ActivateInput
	lastHeartbeat string
	activateResp  *activations.ActivateResult
	heartbeatResp *activations.HeartbeatResult
	activateErr   error
	heartbeatErr  error
}

func (s *stubActivationService) Activate(ctx context.Context, input activations.ActivateInput) (*activations.ActivateResult, error) {
	s.lastActivate = input
	return s.activateResp, s.activateErr
}

func (s *stubActivationService) Heartbeat(ctx context.Context, token string) (*activations.HeartbeatResult, error) {
	s.lastHeartbeat = token
	return s.heartbeatResp, s.heartbeatErr
}

func TestActivateSuccess(t *testing.T) {
	svc := &stubActivationService{
		activateResp: &activations.ActivateResult{
			SessionToken: "session-token",
			OfflineToken: "offline-token",
		},
	}
	handler := Activate(svc, nil, nil)

	body := `{"key":"AAAAA-BBBBB-CCCCC-DDDDD-EEEEE","device_fingerprint":"fp-1","client_version":"1.4.2"}`
	req := httptest.NewRequest(http.MethodPost, "/activate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, wrapped := payload["data"]; wrapped {
		t.Fatal("expected flat response without envelope")
	}
	if payload["session_token"] != "session-token" {
		t.Fatalf("unexpected session token: %v", payload["session_token"])
	}
	if payload["offline_token"] != "offline-token" {
		t.Fatalf("unexpected offline token: %v", payload["offline_token"])
	}
	if svc.lastActivate.Key != "AAAAA-BBBBB-CCCCC-DDDDD-EEEEE" {
		t.Fatalf("unexpected key passed to service: %s", svc.lastActivate.Key)
	}
	if svc.lastActivate.ClientVersion == nil || *svc.lastActivate.ClientVersion != "1.4.2" {
		t.Fatal("expected client version forwarded")
	}
}

func TestActivateOmitsEmptyOfflineToken(t *testing.T) {
	svc := &stubActivationService{
		activateResp: &activations.ActivateResult{SessionToken: "session-token"},
	}
	handler := Activate(svc, nil, nil)

	body := `{"key":"K","device_fingerprint":"fp"}`
	req := httptest.NewRequest(http.MethodPost, "/activate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("offline_token")) {
		t.Fatalf("expected offline_token omitted: %s", rec.Body.String())
	}
}

func TestActivateMissingFields(t *testing.T) {
	svc := &stubActivationService{}
	handler := Activate(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/activate", bytes.NewBufferString(`{"key":"K"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	assertErrorCode(t, rec, string(pkgerrors.CodeMissingKeyOrFingerprint))
}

func TestActivateConflict(t *testing.T) {
	svc := &stubActivationService{
		activateErr: pkgerrors.New(pkgerrors.CodeConcurrentUse, "license key is online on another device"),
	}
	handler := Activate(svc, nil, nil)

	body := `{"key":"K","device_fingerprint":"fp"}`
	req := httptest.NewRequest(http.MethodPost, "/activate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423 got %d", rec.Code)
	}
	assertErrorCode(t, rec, string(pkgerrors.CodeConcurrentUse))
}

func TestHeartbeatSuccess(t *testing.T) {
	until := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	svc := &stubActivationService{
		heartbeatResp: &activations.HeartbeatResult{AllowOfflineUntil: &until},
	}
	handler := Heartbeat(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastHeartbeat != "session-token" {
		t.Fatalf("unexpected token forwarded: %s", svc.lastHeartbeat)
	}
	var payload heartbeatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.OK {
		t.Fatal("expected ok=true")
	}
	if payload.AllowOfflineUntil == nil || !payload.AllowOfflineUntil.Equal(until) {
		t.Fatalf("unexpected offline horizon: %v", payload.AllowOfflineUntil)
	}
}

func TestHeartbeatWithoutOfflineGrace(t *testing.T) {
	svc := &stubActivationService{heartbeatResp: &activations.HeartbeatResult{}}
	handler := Heartbeat(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	raw, present := body["allow_offline_until"]
	if !present {
		t.Fatal("allow_offline_until must be present even without offline grace")
	}
	if string(raw) != "null" {
		t.Fatalf("expected null offline horizon, got %s", raw)
	}
}

func TestHeartbeatMissingToken(t *testing.T) {
	svc := &stubActivationService{heartbeatResp: &activations.HeartbeatResult{}}
	handler := Heartbeat(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	assertErrorCode(t, rec, string(pkgerrors.CodeNoToken))
	if svc.lastHeartbeat != "" {
		t.Fatal("service should not be called without a token")
	}
}

func TestHeartbeatLockedKey(t *testing.T) {
	svc := &stubActivationService{
		heartbeatErr: pkgerrors.New(pkgerrors.CodeKeyNotAvailable, "license key not available"),
	}
	handler := Heartbeat(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423 got %d", rec.Code)
	}
	assertErrorCode(t, rec, string(pkgerrors.CodeKeyNotAvailable))
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.Error.Code != want {
		t.Fatalf("expected code %s got %s", want, payload.Error.Code)
	}
}
