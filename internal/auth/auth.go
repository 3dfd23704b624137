// Package auth is the port to the external identity provider. Token issuance
// and verification protocols live upstream; this package only defines the
// adapter surface and a development fallback.
package auth

import (
	"context"

	"github.com/classhub/studybuddy/internal/apperr"
	"github.com/classhub/studybuddy/internal/models"
)

type Verifier interface {
	Verify(ctx context.Context, token string) (models.User, error)
}

// DevVerifier accepts any non-empty bearer token and uses it as the user id,
// so ownership checks stay meaningful in local runs without a real provider.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.New(apperr.KindAccessDenied, "missing bearer token")
	}
	return models.User{UID: token, Name: "Dev User"}, nil
}
