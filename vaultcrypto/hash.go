package vaultcrypto

import (
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"
)

// HashFile returns the hex-encoded SHA-512 digest of the plaintext at
// path, streaming it through a fixed-size buffer so the whole file is
// never held in memory at once.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled, within the vault's own tree.
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() //nolint:wsl

	h := sha512.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, chunkSize)); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA-512 digest of data.
func HashBytes(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}
