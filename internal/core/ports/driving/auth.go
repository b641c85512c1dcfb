package driving

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// AuthService authenticates API callers by bearer token
type AuthService interface {
	// ValidateToken verifies a JWT and returns the caller's auth context.
	// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure.
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
