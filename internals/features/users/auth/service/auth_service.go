package service

import (
	"context"
	"time"

	userModel "schoolcrm_backend/internals/features/users/model"
)

/* ==========================
   Login / Logout
========================== */

type AuthService struct {
	Auth   *Authenticator
	Tokens *TokenService
}

func NewAuthService(a *Authenticator, t *TokenService) *AuthService {
	return &AuthService{Auth: a, Tokens: t}
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userModel.UserModel
}

func (s *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	u, err := s.Auth.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	token, exp, err := s.Tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Logout revokes the token; an empty token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.Tokens.Revoke(ctx, token)
}
