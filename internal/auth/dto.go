package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/pkg/db/models"
)

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminSummary is the admin identity exposed over the API. The password hash
// never leaves the service layer.
type AdminSummary struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LoginResponse carries the issued token pair.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Admin        AdminSummary `json:"admin"`
}

func toAdminSummary(m *models.AdminUser) AdminSummary {
	return AdminSummary{
		ID:          m.ID,
		Email:       m.Email,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
	}
}
