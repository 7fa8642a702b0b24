package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/internal/activations"
	"github.com/keygate/keygate-backend/internal/auth"
	"github.com/keygate/keygate-backend/internal/keys"
	pkgAuth "github.com/keygate/keygate-backend/pkg/auth"
	"github.com/keygate/keygate-backend/pkg/auth/session"
	"github.com/keygate/keygate-backend/pkg/config"
	"github.com/keygate/keygate-backend/pkg/db/models"
	"github.com/keygate/keygate-backend/pkg/logger"
	"github.com/keygate/keygate-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type stubActivationService struct{}

func (stubActivationService) Activate(ctx context.Context, input activations.ActivateInput) (*activations.ActivateResult, error) {
	return &activations.ActivateResult{SessionToken: "session-token"}, nil
}

func (stubActivationService) Heartbeat(ctx context.Context, token string) (*activations.HeartbeatResult, error) {
	return &activations.HeartbeatResult{}, nil
}

type stubKeysService struct{}

func (stubKeysService) CreateKeys(ctx context.Context, input keys.CreateInput) ([]models.LicenseKey, error) {
	return []models.LicenseKey{{ID: uuid.New()}}, nil
}

func (stubKeysService) ListKeys(ctx context.Context, params keys.ListParams) (*keys.ListResult, error) {
	return &keys.ListResult{}, nil
}

func (stubKeysService) GetKey(ctx context.Context, id uuid.UUID) (*keys.KeyDetail, error) {
	return &keys.KeyDetail{}, nil
}

func (stubKeysService) UpdateKey(ctx context.Context, id uuid.UUID, input keys.UpdateInput) (*models.LicenseKey, error) {
	return &models.LicenseKey{ID: id}, nil
}

func (stubKeysService) EnableKey(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubKeysService) DisableKey(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubKeysService) DeleteKey(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubKeysService) UnlockKey(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (stubKeysService) ForceUnbind(ctx context.Context, activationID uuid.UUID) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			AdminExpirationMinutes: 60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubSessionManager{},
		stubAuthService{},
		stubActivationService{},
		stubKeysService{},
		nil,
		nil,
	)
}

func buildAdminToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAdminToken(cfg.JWT, time.Now(), uuid.New(), session.NewAccessID())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestActivateReachableWithoutAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"key":"AAAAA-BBBBB-CCCCC-DDDDD-EEEEE","device_fingerprint":"fp"}`
	req := httptest.NewRequest(http.MethodPost, "/activate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), `"data"`) {
		t.Fatalf("expected flat response: %s", resp.Body.String())
	}
}

func TestHeartbeatRejectsMissingToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "NO_TOKEN") {
		t.Fatalf("expected NO_TOKEN code: %s", resp.Body.String())
	}
}

func TestAdminKeysRequireAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	anon := httptest.NewRequest(http.MethodGet, "/api/admin/v1/keys/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anon)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/api/admin/v1/keys/", nil)
	authed.Header.Set("Authorization", "Bearer "+buildAdminToken(t, cfg))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authed)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminLoginReachableWithoutAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"email":"admin@example.com","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestForceUnbindRequiresAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/activations/"+uuid.NewString()+"/force-unbind", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	authed := httptest.NewRequest(http.MethodPost, "/api/admin/v1/activations/"+uuid.NewString()+"/force-unbind", nil)
	authed.Header.Set("Authorization", "Bearer "+buildAdminToken(t, cfg))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authed)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
