package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keygate/keygate-backend/pkg/config"
)

// AdminClaims is the decoded identity for an admin access token. AccessID is
// the jti and keys the server-side session record in redis.
type AdminClaims struct {
	AdminID  uuid.UUID
	AccessID string
}

// MintAdminToken issues an access token for the admin API. The jti is the
// caller-supplied access id so the session store can be checked on every
// authenticated request.
func MintAdminToken(cfg config.JWTConfig, now time.Time, adminID uuid.UUID, accessID string) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if adminID == uuid.Nil {
		return "", fmt.Errorf("admin id is required")
	}
	if accessID == "" {
		return "", fmt.Errorf("access id is required")
	}

	ttl := time.Duration(cfg.AdminExpirationMinutes) * time.Minute
	if ttl <= 0 {
		return "", fmt.Errorf("admin token ttl must be positive")
	}

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        accessID,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAdminToken validates an admin access token and returns its claims.
func ParseAdminToken(cfg config.JWTConfig, tokenString string) (*AdminClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	return adminClaimsFrom(claims)
}

// ParseAdminTokenAllowExpired parses the JWT without validating exp/nbf so
// refresh can inspect the jti of a just-expired access token.
func ParseAdminTokenAllowExpired(cfg config.JWTConfig, tokenString string) (*AdminClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &TokenClaims{}
	parser := jwt.NewParser(
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	_, err := parser.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
	)
	if err != nil {
		return nil, err
	}

	return adminClaimsFrom(claims)
}

func adminClaimsFrom(claims *TokenClaims) (*AdminClaims, error) {
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject is not an admin id: %w", err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("token jti missing")
	}
	return &AdminClaims{AdminID: adminID, AccessID: claims.ID}, nil
}
