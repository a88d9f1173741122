package vaultcrypto

import (
	"crypto/sha512"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

// KDFParams holds the PBKDF2-HMAC-SHA512 parameters persisted in a
// vault's vault.key file (spec §6). Salt is fixed for the life of the
// vault; Iterations may only ever increase across a re-initialization,
// never decrease.
type KDFParams struct {
	Iterations int
	Salt       []byte
}

// NewKDFParams generates a fresh, random salt and returns KDF parameters
// using [DefaultPBKDF2Iterations].
func NewKDFParams() (*KDFParams, error) {
	salt, err := RandBytes(SaltSize)
	if err != nil {
		return nil, err
	}

	return &KDFParams{
		Iterations: DefaultPBKDF2Iterations,
		Salt:       salt,
	}, nil
}

// DeriveKey derives a 32-byte symmetric key from password using
// PBKDF2-HMAC-SHA512 under these parameters.
func (p *KDFParams) DeriveKey(password []byte) []byte {
	return pbkdf2.Key(password, p.Salt, p.Iterations, KeySize, sha512.New)
}

// ConstantTimeEqual reports whether two derived keys (or any two
// equal-length secrets) are identical, without leaking timing
// information about the position of a mismatch.
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
