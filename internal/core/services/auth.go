package services

import (
	"context"
	"strings"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
)

var _ driving.AuthService = (*tokenAuthService)(nil)

// tokenAuthService trusts any token the adapter can verify. Sessions and
// logins belong to the chat front end that issues the tokens.
type tokenAuthService struct {
	tokens driven.AuthAdapter
}

func NewAuthService(tokens driven.AuthAdapter) driving.AuthService {
	return &tokenAuthService{tokens: tokens}
}

func (s *tokenAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token = strings.TrimSpace(token); token == "" {
		return nil, domain.ErrTokenInvalid
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		// a token that names nobody cannot scope documents or memory
		return nil, domain.ErrTokenInvalid
	}
	return &domain.AuthContext{
		UserID:    claims.UserID,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}
