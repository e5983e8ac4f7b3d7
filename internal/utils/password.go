package utils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// PasswordHasher derives and checks salted password credentials.
type PasswordHasher struct {
	algorithm  model.HashAlgorithm // algorithm used for new credentials
	bcryptCost int                 // only used when algorithm is bcrypt
}

// NewPasswordHasher returns a hasher that creates credentials with the given
// algorithm. Unknown algorithms fall back to sha256.
func NewPasswordHasher(algorithm model.HashAlgorithm, bcryptCost int) *PasswordHasher {
	if !algorithm.Valid() {
		algorithm = model.HashSHA256
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &PasswordHasher{algorithm: algorithm, bcryptCost: bcryptCost}
}

// NewCredential generates a fresh random salt and hashes password with it.
// The returned credential has no ProfileID yet.
func (h *PasswordHasher) NewCredential(password string) (model.PasswordCredential, error) {
	salt := uuid.NewString()
	value, err := h.digest(h.algorithm, password, salt)
	if err != nil {
		return model.PasswordCredential{}, err
	}
	return model.PasswordCredential{Algorithm: h.algorithm, Salt: salt, HashValue: value}, nil
}

// Verify recomputes the digest of password with the credential's own salt
// and algorithm and compares it to the stored value.
func (h *PasswordHasher) Verify(cred model.PasswordCredential, password string) bool {
	switch cred.Algorithm {
	case model.HashBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(cred.HashValue), []byte(sha256Hex(password+cred.Salt))) == nil
	case model.HashSHA256:
		got := sha256Hex(password + cred.Salt)
		return subtle.ConstantTimeCompare([]byte(got), []byte(cred.HashValue)) == 1
	default:
		return false
	}
}

func (h *PasswordHasher) digest(alg model.HashAlgorithm, password, salt string) (string, error) {
	switch alg {
	case model.HashBcrypt:
		// bcrypt reads at most 72 bytes, so it is fed the salted sha256 digest.
		b, err := bcrypt.GenerateFromPassword([]byte(sha256Hex(password+salt)), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(b), nil
	case model.HashSHA256:
		return sha256Hex(password + salt), nil
	}
	return "", fmt.Errorf("unsupported hash algorithm %q", alg)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
