package model

import "time"

// Profile represents a registered account as stored in the `profile`
// table. Profiles are created on registration and never mutated.
//
// Fields:
//
//	ID        – generated primary key.
//	Name      – unique login name (5–100 characters).
//	CreatedAt – timestamp of creation (UTC).
type Profile struct {
	ID        int64     `json:"id"`         // profile.id
	Name      string    `json:"name"`       // profile.name
	CreatedAt time.Time `json:"created_at"` // profile.created_at
}

// HashAlgorithm names the digest used for a stored password hash.
type HashAlgorithm string

const (
	// HashSHA256 is hex(sha256(password + salt)). This is the default and
	// matches credentials created by earlier deployments.
	HashSHA256 HashAlgorithm = "sha256"
	// HashBcrypt is bcrypt over the salted sha256 digest.
	HashBcrypt HashAlgorithm = "bcrypt"
)

// Valid reports whether a is one of the known algorithms.
func (a HashAlgorithm) Valid() bool {
	return a == HashSHA256 || a == HashBcrypt
}

// PasswordCredential models a row of the `password_credential` table. It
// belongs to exactly one profile and is created in the same transaction.
//
// Fields:
//
//	ProfileID – primary key and foreign key to profile.id.
//	Algorithm – digest used to compute HashValue.
//	Salt      – random per-credential salt (UUID string).
//	HashValue – digest of password+salt.
type PasswordCredential struct {
	ProfileID int64         // password_credential.profile_id
	Algorithm HashAlgorithm // password_credential.algorithm
	Salt      string        // password_credential.salt
	HashValue string        // password_credential.hash_value
}

// IdentityClaim is the decoded content of a signed access token. It is
// never persisted.
type IdentityClaim struct {
	ProfileID int64
	ExpiresAt time.Time
}
