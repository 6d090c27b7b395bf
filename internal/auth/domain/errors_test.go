package domain_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/mentorlink/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestStaleRotationError(t *testing.T) {
	var err error = &domain.StaleRotationError{UserID: "u", FamilyID: "f", CurrentTokenID: "t2"}
	wrapped := errors.Join(errors.New("rotate"), err)

	require.ErrorIs(t, wrapped, domain.ErrRefreshReuseDetected)

	var stale *domain.StaleRotationError
	require.ErrorAs(t, wrapped, &stale)
	require.Equal(t, "t2", stale.CurrentTokenID)
}

func TestPendingLinkValidate(t *testing.T) {
	link := domain.PendingLink{UserID: "u", Provider: "google", SocialID: "123"}
	require.NoError(t, link.Validate())

	link.SocialID = ""
	require.ErrorIs(t, link.Validate(), domain.ErrInvalidInput)
}
