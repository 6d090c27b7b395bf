package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/aussiebroadwan/mentorlink/internal/auth/store"
	"github.com/aussiebroadwan/mentorlink/pkg/authsdk"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

// rejection reports whether err is a client-side failure. Clients are never
// told which check failed.
func rejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrTokenRevoked) ||
		errors.Is(err, domain.ErrRefreshReuseDetected) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput)
}

// writeServiceError writes the response for a failed service call. Client
// failures collapse to onReject; store outages are 503 and anything else 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error, onReject *authsdk.OAuth2Error) {
	log := slogx.FromContext(ctx)

	switch {
	case rejection(err):
		log.Info(op+" rejected", "err", err)
		onReject.WriteError(w)
	case errors.Is(err, store.ErrUnavailable):
		log.Error(op+" failed: store unavailable", "err", err)
		authsdk.ErrServiceUnavailable.WriteError(w)
	default:
		log.Error(op+" failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
