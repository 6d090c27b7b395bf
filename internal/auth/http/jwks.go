package http

import (
	"net/http"

	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// JWKSHandler publishes the public keys resource servers verify access
// tokens with.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
