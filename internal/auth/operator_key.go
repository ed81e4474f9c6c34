package auth

import (
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// VerifyOperatorKey compares a presented operator key against the configured
// bcrypt hash. Token issuance is the only caller.
func VerifyOperatorKey(hash, presented string) error {
	if hash == "" {
		return apperrors.NewUnauthorized("operator access not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)); err != nil {
		return apperrors.NewUnauthorized("invalid operator key")
	}
	return nil
}

// HashOperatorKey produces a bcrypt hash for provisioning.
func HashOperatorKey(key string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}
