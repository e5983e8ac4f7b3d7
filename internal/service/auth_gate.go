package service

import (
	"context"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// TokenVerifier decodes a bearer token. *utils.TokenCodec implements it.
type TokenVerifier interface {
	Verify(raw string) (model.IdentityClaim, error)
}

// ProfileChecker confirms a profile still exists. *CredentialStore
// implements it.
type ProfileChecker interface {
	Exists(ctx context.Context, id int64) (*model.Profile, error)
}

// AuthGate turns a bearer token into the profile it was issued for.
type AuthGate struct {
	tokens   TokenVerifier
	profiles ProfileChecker
}

// NewAuthGate wires an AuthGate.
func NewAuthGate(tokens TokenVerifier, profiles ProfileChecker) *AuthGate {
	return &AuthGate{tokens: tokens, profiles: profiles}
}

// Authenticate verifies raw and loads the profile. It fails with
// ExpiredToken or InvalidToken from verification, or ProfileNotFound when
// the profile has gone away since the token was issued.
func (g *AuthGate) Authenticate(ctx context.Context, raw string) (*model.Profile, error) {
	claim, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	return g.profiles.Exists(ctx, claim.ProfileID)
}
