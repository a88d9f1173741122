package vaultcrypto

import "crypto/rand"

// Controller is the Crypto Controller (spec §4.1): it owns the file key
// and the tag key for the lifetime of an unlocked session. Other
// components receive encryption/decryption capability through a
// *Controller reference; [Controller.Keys] is the one accessor that
// hands out copies of the raw key bytes.
type Controller struct {
	fileKey []byte
	tagKey  []byte

	fileAEAD *AESGCM
	tagAEAD  *AESGCM
}

// NewController derives the two AES-GCM ciphers from the given file and
// tag keys. The caller retains ownership of the input slices; Controller
// keeps its own copies so it can zeroize independently of the caller.
func NewController(fileKey, tagKey []byte) (*Controller, error) {
	fk := append([]byte(nil), fileKey...)
	tk := append([]byte(nil), tagKey...)

	fileAEAD, err := NewAESGCM(fk)
	if err != nil {
		return nil, err
	}

	tagAEAD, err := NewAESGCM(tk)
	if err != nil {
		return nil, err
	}

	return &Controller{
		fileKey:  fk,
		tagKey:   tk,
		fileAEAD: fileAEAD,
		tagAEAD:  tagAEAD,
	}, nil
}

// EncryptStream encrypts the file at srcPath under the file key,
// writing the authenticated blob to dstPath.
func (c *Controller) EncryptStream(srcPath, dstPath string) (int64, error) {
	if c == nil || c.fileAEAD == nil {
		return 0, ErrNotInitialized
	}

	return EncryptStream(c.fileAEAD, srcPath, dstPath)
}

// DecryptStreamToFile decrypts the blob at srcPath under the file key.
func (c *Controller) DecryptStreamToFile(srcPath, dstPath string) error {
	if c == nil || c.fileAEAD == nil {
		return ErrNotInitialized
	}

	return DecryptStreamToFile(c.fileAEAD, srcPath, dstPath)
}

// DecryptToMemory decrypts the blob at path under the file key.
func (c *Controller) DecryptToMemory(path string) ([]byte, error) {
	if c == nil || c.fileAEAD == nil {
		return nil, ErrNotInitialized
	}

	return DecryptToMemory(c.fileAEAD, path)
}

// EncryptBytes seals data under the file key.
func (c *Controller) EncryptBytes(data []byte) ([]byte, error) {
	if c == nil || c.fileAEAD == nil {
		return nil, ErrNotInitialized
	}

	return EncryptBytes(c.fileAEAD, data)
}

// DecryptBytes opens a blob sealed under the file key.
func (c *Controller) DecryptBytes(blob []byte) ([]byte, error) {
	if c == nil || c.fileAEAD == nil {
		return nil, ErrNotInitialized
	}

	return DecryptBytes(c.fileAEAD, blob)
}

// EncryptTagBytes seals data under the tag key — a distinct domain from
// the file key, so compromise of one key never decrypts the other's
// ciphertexts.
func (c *Controller) EncryptTagBytes(data []byte) ([]byte, error) {
	if c == nil || c.tagAEAD == nil {
		return nil, ErrNotInitialized
	}

	return EncryptBytes(c.tagAEAD, data)
}

// DecryptTagBytes opens a blob sealed under the tag key.
func (c *Controller) DecryptTagBytes(blob []byte) ([]byte, error) {
	if c == nil || c.tagAEAD == nil {
		return nil, ErrNotInitialized
	}

	return DecryptBytes(c.tagAEAD, blob)
}

// Keys returns copies of the file and tag key material. It exists for a
// session transport that must reconstruct an equivalent Controller in a
// different process (see package sessiond); callers must zero the
// returned slices once they are done with them.
func (c *Controller) Keys() (fileKey, tagKey []byte, err error) {
	if c == nil || c.fileAEAD == nil {
		return nil, nil, ErrNotInitialized
	}

	return append([]byte(nil), c.fileKey...), append([]byte(nil), c.tagKey...), nil
}

// Zero overwrites the retained key buffers with random bytes and drops
// the ciphers, so later calls on c fail with [ErrNotInitialized]. Called
// on lock, idle expiry, and process exit.
func (c *Controller) Zero() {
	if c == nil {
		return
	}

	_, _ = rand.Read(c.fileKey)
	_, _ = rand.Read(c.tagKey)

	c.fileKey, c.tagKey = nil, nil
	c.fileAEAD, c.tagAEAD = nil, nil
}
