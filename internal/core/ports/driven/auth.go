package driven

import "github.com/Allerac/allerac-one-sub001/internal/core/domain"

// AuthAdapter handles bearer token cryptography.
// Tokens are issued by the chat front end; GenerateToken exists for tooling and tests.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
