// Package utils signs identity tokens and hashes passwords.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// AccessTokenTTL is the lifetime of every issued token. Tokens cannot be
// revoked, so expiry is the only way they stop being accepted.
const AccessTokenTTL = 30 * time.Minute

// profileClaims is the JWT payload: {"profile_id": <int>, "exp": <unix>}.
// RegisteredClaims only contributes exp because every other field is empty
// and tagged omitempty.
type profileClaims struct {
	ProfileID int64 `json:"profile_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 identity tokens with a single secret.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte           // HMAC key shared by issue and verify
	now    func() time.Time // clock, replaceable in tests
}

// NewTokenCodec builds a codec for the given secret. The secret comes from
// configuration and is never embedded in the token.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue builds a claim for profileID expiring AccessTokenTTL from now and
// returns the compact signed token.
func (c *TokenCodec) Issue(profileID int64) (string, error) {
	exp := c.now().UTC().Add(AccessTokenTTL)
	claims := profileClaims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns the decoded
// claim. An expired but otherwise valid token yields ExpiredToken; any other
// failure (bad signature, wrong key, malformed input, foreign algorithm)
// yields InvalidToken.
func (c *TokenCodec) Verify(raw string) (model.IdentityClaim, error) {
	claims := &profileClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC before handing out the key.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		// The parser verifies the signature before validating claims, so an
		// expiry error here implies the signature was good.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.IdentityClaim{}, apperr.New(apperr.ErrExpiredToken, err)
		}
		return model.IdentityClaim{}, apperr.New(apperr.ErrInvalidToken, err)
	}
	if !tok.Valid {
		return model.IdentityClaim{}, apperr.Newf(apperr.ErrInvalidToken, "token not valid")
	}
	return model.IdentityClaim{
		ProfileID: claims.ProfileID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
