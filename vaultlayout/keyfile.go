package vaultlayout

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
)

// KeyFile is the plaintext vault.key document: the PBKDF2 parameters
// needed to re-derive the master key from a password, the file_key and
// tag_key wrapped under that master key, and a canary that lets
// [KeyFile.Verify] succeed in a fresh process where no prior initialize
// has kept any key in memory.
//
// file_key and tag_key are generated once, at initialize time, from the
// OS random source — never derived from the password — so that
// re-encrypting with a changed password (a future rekey operation)
// never has to touch existing ciphertext. The master key exists only to
// wrap them for storage; it is never used to encrypt vault content
// directly.
type KeyFile struct {
	Algorithm     string `json:"algorithm"`
	KeyDerivation string `json:"key_derivation"`
	Iterations    int    `json:"iterations"`
	SaltSize      int    `json:"salt_size"`
	NonceSize     int    `json:"nonce_size"`
	TagSize       int    `json:"tag_size"`
	Salt          string `json:"salt"`

	WrappedFileKey string `json:"wrapped_file_key"`
	WrappedTagKey  string `json:"wrapped_tag_key"`
	Canary         string `json:"canary"`
}

// canaryPlaintext is the fixed value encrypted under file_key and
// verified on unlock. Its exact bytes carry no meaning; only a
// successful AEAD open followed by an exact match proves the candidate
// password rederived the right master key.
var canaryPlaintext = bytes.Repeat([]byte{0x5a}, 32)

// NewKeyFile generates a fresh salt, derives a master key from
// password, generates random file_key and tag_key, and wraps both
// under the master key alongside an AEAD canary.
func NewKeyFile(password []byte) (kf KeyFile, fileKey, tagKey []byte, err error) {
	params, err := vaultcrypto.NewKDFParams()
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	masterKey := params.DeriveKey(password)

	masterAEAD, err := vaultcrypto.NewAESGCM(masterKey)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	fileKey, err = vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	tagKey, err = vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	wrappedFileKey, err := vaultcrypto.EncryptBytes(masterAEAD, fileKey)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	wrappedTagKey, err := vaultcrypto.EncryptBytes(masterAEAD, tagKey)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	fileAEAD, err := vaultcrypto.NewAESGCM(fileKey)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	canary, err := vaultcrypto.EncryptBytes(fileAEAD, canaryPlaintext)
	if err != nil {
		return KeyFile{}, nil, nil, err
	}

	kf = KeyFile{
		Algorithm:     "AES-256-GCM",
		KeyDerivation: "PBKDF2-HMAC-SHA512",
		Iterations:    params.Iterations,
		SaltSize:      vaultcrypto.SaltSize,
		NonceSize:     vaultcrypto.NonceSizeGCM,
		TagSize:       vaultcrypto.TagSizeGCM,
		Salt:          base64.StdEncoding.EncodeToString(params.Salt),

		WrappedFileKey: base64.StdEncoding.EncodeToString(wrappedFileKey),
		WrappedTagKey:  base64.StdEncoding.EncodeToString(wrappedTagKey),
		Canary:         base64.StdEncoding.EncodeToString(canary),
	}

	return kf, fileKey, tagKey, nil
}

// Verify re-derives the master key from password under the stored KDF
// parameters, unwraps file_key and tag_key, and checks the canary. A
// wrong password surfaces as ok == false, err == nil; err is reserved
// for a malformed or corrupted vault.key.
func (kf KeyFile) Verify(password []byte) (fileKey, tagKey []byte, ok bool, err error) {
	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return nil, nil, false, err
	}

	params := &vaultcrypto.KDFParams{Salt: salt, Iterations: kf.Iterations}
	masterKey := params.DeriveKey(password)

	masterAEAD, err := vaultcrypto.NewAESGCM(masterKey)
	if err != nil {
		return nil, nil, false, err
	}

	wrappedFileKey, err := base64.StdEncoding.DecodeString(kf.WrappedFileKey)
	if err != nil {
		return nil, nil, false, err
	}

	wrappedTagKey, err := base64.StdEncoding.DecodeString(kf.WrappedTagKey)
	if err != nil {
		return nil, nil, false, err
	}

	canaryBlob, err := base64.StdEncoding.DecodeString(kf.Canary)
	if err != nil {
		return nil, nil, false, err
	}

	fileKey, err = vaultcrypto.DecryptBytes(masterAEAD, wrappedFileKey)
	if err != nil {
		if errors.Is(err, vaultcrypto.ErrAuthenticationFailed) {
			return nil, nil, false, nil
		}

		return nil, nil, false, err
	}

	tagKey, err = vaultcrypto.DecryptBytes(masterAEAD, wrappedTagKey)
	if err != nil {
		if errors.Is(err, vaultcrypto.ErrAuthenticationFailed) {
			return nil, nil, false, nil
		}

		return nil, nil, false, err
	}

	fileAEAD, err := vaultcrypto.NewAESGCM(fileKey)
	if err != nil {
		return nil, nil, false, err
	}

	plaintext, err := vaultcrypto.DecryptBytes(fileAEAD, canaryBlob)
	if err != nil {
		if errors.Is(err, vaultcrypto.ErrAuthenticationFailed) {
			return nil, nil, false, nil
		}

		return nil, nil, false, err
	}

	return fileKey, tagKey, bytes.Equal(plaintext, canaryPlaintext), nil
}
