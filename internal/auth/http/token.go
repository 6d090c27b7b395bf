package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
)

const (
	GrantTypeRefreshToken = "refresh_token"
	GrantTypeAuthCode     = "auth_code"
)

// TokenHandler serves POST /v1/auth/token. It accepts
// application/x-www-form-urlencoded bodies.
type TokenHandler struct {
	TokenService  *service.TokenService
	SocialService *service.SocialService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !httpx.IsFormRequest(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case GrantTypeRefreshToken:
		h.handleRefreshGrant(w, r)
	case GrantTypeAuthCode:
		h.handleAuthCodeGrant(w, r)
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refreshToken := strings.TrimSpace(r.PostForm.Get("refresh_token"))
	if refreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, refreshToken)
	if err != nil {
		writeServiceError(ctx, w, "refresh_token grant", err, authsdk.ErrInvalidGrant)
		return
	}
	writeTokenPair(w, pair)
}

func (h *TokenHandler) handleAuthCodeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := strings.TrimSpace(r.PostForm.Get("code"))
	if code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.SocialService.ExchangeAuthCode(ctx, code)
	if err != nil {
		writeServiceError(ctx, w, "auth_code grant", err, authsdk.ErrInvalidGrant)
		return
	}
	writeTokenPair(w, pair)
}

func writeTokenPair(w http.ResponseWriter, pair *domain.TokenPair) {
	issuedAt := pair.AccessExpiresAt.Add(-pair.ExpiresIn)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        int(pair.ExpiresIn.Seconds()),
		RefreshExpiresIn: int(pair.RefreshExpiresAt.Sub(issuedAt).Seconds()),
	})
}
