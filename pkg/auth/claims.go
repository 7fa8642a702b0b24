package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OfflineSubjectPrefix scopes offline-grace tokens apart from session tokens.
// An offline token can never be replayed as a heartbeat credential because
// its subject does not resolve to an activation id.
const OfflineSubjectPrefix = "offline:"

// TokenClaims is the payload carried by every bearer token the service
// issues. The subject is the activation id for session tokens, or the
// prefixed activation id for offline-grace tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// SessionSubject builds the subject for a session token.
func SessionSubject(activationID uuid.UUID) string {
	return activationID.String()
}

// OfflineSubject builds the subject for an offline-grace token.
func OfflineSubject(activationID uuid.UUID) string {
	return OfflineSubjectPrefix + activationID.String()
}

// ActivationIDFromSubject resolves a session token subject back to an
// activation id. Offline subjects and malformed values fail.
func ActivationIDFromSubject(subject string) (uuid.UUID, bool) {
	if strings.HasPrefix(subject, OfflineSubjectPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
