package http

import (
	"context"

	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
)

// BearerAuthenticator adapts TokenService to httpx.Authenticator.
type BearerAuthenticator struct {
	Tokens *service.TokenService
}

func (a BearerAuthenticator) AuthenticateBearer(ctx context.Context, token string) (httpx.Principal, error) {
	p, err := a.Tokens.Authenticate(ctx, token)
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{
		Subject:   p.Subject(),
		Role:      p.Role(),
		TokenID:   p.TokenID(),
		ExpiresAt: p.ExpiresAt(),
		Token:     token,
	}, nil
}
