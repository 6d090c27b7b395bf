package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
)

// LogoutHandler serves the logout endpoints. Both sit behind
// httpx.AuthnMiddleware.
type LogoutHandler struct {
	TokenService *service.TokenService
}

// HandleLogout serves POST /v1/auth/logout. The refresh_token form field is
// required so the session's refresh family ends with it.
func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	if !httpx.IsFormRequest(r) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	refreshToken := strings.TrimSpace(r.PostForm.Get("refresh_token"))
	if refreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.Logout(ctx, p.Token, refreshToken); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		writeServiceError(ctx, w, "logout", err, authsdk.ErrInvalidToken)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll serves POST /v1/auth/logout-all.
func (h *LogoutHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	n, err := h.TokenService.LogoutAll(ctx, p.Token)
	if err != nil {
		writeServiceError(ctx, w, "logout-all", err, authsdk.ErrInvalidToken)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutAllResponse{RevokedFamilies: n})
}
