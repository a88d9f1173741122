package vaultcrypto

import (
	"bufio"
	"bytes"
	"io"
	"os"
)

// pack arranges a Seal() result (ciphertext‖tag, Go's convention) plus
// its nonce into the vault's on-disk/in-memory wire layout:
//
//	offset 0  : nonce  (NonceSizeGCM bytes)
//	offset 12 : tag    (TagSizeGCM bytes)
//	offset 28 : ciphertext (plaintext length)
func pack(nonce, sealed []byte) []byte {
	ciphertext, tag := sealed[:len(sealed)-TagSizeGCM], sealed[len(sealed)-TagSizeGCM:]

	out := make([]byte, 0, NonceSizeGCM+TagSizeGCM+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return out
}

// unpack splits a packed blob back into the nonce and the
// ciphertext‖tag form [AESGCM.Open] expects.
func unpack(blob []byte) (nonce, sealed []byte, err error) {
	if len(blob) < NonceSizeGCM+TagSizeGCM {
		return nil, nil, ErrBlobTooShort
	}

	nonce = blob[:NonceSizeGCM]
	tag := blob[NonceSizeGCM : NonceSizeGCM+TagSizeGCM]
	ciphertext := blob[NonceSizeGCM+TagSizeGCM:]

	sealed = make([]byte, 0, len(ciphertext)+TagSizeGCM)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	return nonce, sealed, nil
}

// EncryptBytes seals data under aead with a fresh random nonce and
// returns it packed as nonce‖tag‖ciphertext.
func EncryptBytes(aead *AESGCM, data []byte) ([]byte, error) {
	nonce, err := RandBytes(NonceSizeGCM)
	if err != nil {
		return nil, err
	}

	sealed, err := aead.Seal(nonce, data)
	if err != nil {
		return nil, err
	}

	return pack(nonce, sealed), nil
}

// DecryptBytes reverses [EncryptBytes].
func DecryptBytes(aead *AESGCM, blob []byte) ([]byte, error) {
	nonce, sealed, err := unpack(blob)
	if err != nil {
		return nil, err
	}

	return aead.Open(nonce, sealed)
}

// EncryptStream reads the plaintext file at srcPath in full and writes
// an authenticated-encrypted blob to dstPath using the layout described
// in [pack]: the nonce and a zeroed tag placeholder are written first,
// the ciphertext follows, and finally the file is seeked back to patch
// in the real GCM tag once sealing completes.
//
// AES-GCM has no incremental finalization in [crypto/cipher], so the
// "streaming" here is in the I/O path (bounded chunkSize reads/writes,
// seek-and-patch header) rather than in the cipher itself; the whole
// plaintext is still held in memory for the single Seal call, bounded
// in practice by the vault's max_file_size policy (spec §6).
//
// On any error the partial output file is removed.
func EncryptStream(aead *AESGCM, srcPath, dstPath string) (encryptedSize int64, retErr error) {
	src, err := os.Open(srcPath) //nolint:gosec
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }() //nolint:wsl

	var buf bytes.Buffer

	if _, err := io.CopyBuffer(&buf, bufio.NewReaderSize(src, chunkSize), make([]byte, chunkSize)); err != nil {
		return 0, err
	}

	plaintext := buf.Bytes()

	nonce, err := RandBytes(NonceSizeGCM)
	if err != nil {
		return 0, err
	}

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = dst.Close()

		if retErr != nil {
			_ = os.Remove(dstPath)
		}
	}()

	placeholder := make([]byte, TagSizeGCM)
	if _, err := dst.Write(append(append([]byte{}, nonce...), placeholder...)); err != nil {
		return 0, err
	}

	sealed, err := aead.Seal(nonce, plaintext)
	if err != nil {
		return 0, err
	}

	ciphertext, tag := sealed[:len(sealed)-TagSizeGCM], sealed[len(sealed)-TagSizeGCM:]

	if _, err := dst.Write(ciphertext); err != nil {
		return 0, err
	}

	if _, err := dst.Seek(NonceSizeGCM, io.SeekStart); err != nil {
		return 0, err
	}

	if _, err := dst.Write(tag); err != nil {
		return 0, err
	}

	return int64(NonceSizeGCM + TagSizeGCM + len(ciphertext)), nil
}

// DecryptToMemory reads and authenticates the blob at path, returning
// its plaintext. On any failure — including a tag mismatch — no partial
// plaintext is returned.
func DecryptToMemory(aead *AESGCM, path string) ([]byte, error) {
	blob, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	nonce, sealed, err := unpack(blob)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nonce, sealed)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return plaintext, nil
}

// DecryptStreamToFile decrypts the blob at srcPath and writes the
// plaintext to dstPath. The destination is only created once the AEAD
// tag has verified; any failure leaves no partial output file behind.
func DecryptStreamToFile(aead *AESGCM, srcPath, dstPath string) (retErr error) {
	plaintext, err := DecryptToMemory(aead, srcPath)
	if err != nil {
		return err
	}

	tmp := dstPath + ".tmp"

	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, dstPath)
}
