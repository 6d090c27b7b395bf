package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
)

// LinksHandler serves the pending social link endpoints. The link token in
// the path is the only credential.
type LinksHandler struct {
	SocialService *service.SocialService
}

// HandleGet serves GET /v1/auth/links/{token}.
func (h *LinksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.SocialService.PeekLink(ctx, r.PathValue("token"))
	if err != nil {
		writeLinkError(w, r, "get link", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LinkResponse{
		UserID:      link.UserID,
		Provider:    link.Provider,
		SocialID:    link.SocialID,
		Email:       link.Email,
		ProfileData: link.ProfileData,
		ExpiresAt:   link.ExpiresAt.Unix(),
	})
}

// HandleConfirm serves POST /v1/auth/links/{token}/confirm.
func (h *LinksHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	pair, err := h.SocialService.ConfirmLink(r.Context(), r.PathValue("token"))
	if err != nil {
		writeLinkError(w, r, "confirm link", err)
		return
	}
	writeTokenPair(w, pair)
}

// HandleReject serves POST /v1/auth/links/{token}/reject.
func (h *LinksHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	if err := h.SocialService.RejectLink(r.Context(), r.PathValue("token")); err != nil {
		writeLinkError(w, r, "reject link", err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// Unknown, consumed and expired links are all 404.
func writeLinkError(w http.ResponseWriter, r *http.Request, op string, err error) {
	reject := authsdk.ErrInvalidRequest
	if errors.Is(err, domain.ErrNotFound) {
		reject = authsdk.ErrLinkNotFound
	}
	writeServiceError(r.Context(), w, op, err, reject)
}
