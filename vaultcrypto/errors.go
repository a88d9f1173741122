package vaultcrypto

import "errors"

// Sizes fixed by the vault's on-disk wire format (spec §6): a 12-byte
// GCM nonce, a 16-byte GCM tag, a 32-byte symmetric key, and a salt of
// at least 32 bytes.
const (
	NonceSizeGCM = 12
	TagSizeGCM   = 16
	KeySize      = 32
	SaltSize     = 32

	// DefaultPBKDF2Iterations is the minimum iteration count mandated
	// for the master-key KDF.
	DefaultPBKDF2Iterations = 200_000

	// chunkSize bounds the read/write buffer used while streaming a
	// file through the hasher or the AEAD header writer.
	chunkSize = 8 * 1024
)

var (
	// ErrNotInitialized is returned when a cryptographic operation is
	// attempted before keys have been derived or loaded.
	ErrNotInitialized = errors.New("vaultcrypto: not initialized")

	// ErrAuthenticationFailed wraps any AEAD tag verification failure,
	// whether on a file blob, an in-memory ciphertext, or the unlock
	// canary.
	ErrAuthenticationFailed = errors.New("vaultcrypto: authentication failed")

	// ErrBlobTooShort indicates a packed ciphertext is smaller than the
	// fixed nonce+tag header, so it cannot possibly be valid.
	ErrBlobTooShort = errors.New("vaultcrypto: ciphertext shorter than header")
)
