package vaultcrypto_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
)

func testController(t *testing.T) *vaultcrypto.Controller {
	t.Helper()

	fileKey, err := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		t.Fatalf("rand file key: %v", err)
	}

	tagKey, err := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		t.Fatalf("rand tag key: %v", err)
	}

	c, err := vaultcrypto.NewController(fileKey, tagKey)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	return c
}

func TestEncryptBytesRoundTrip(t *testing.T) {
	c := testController(t)

	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	blob, err := c.EncryptBytes(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if len(blob) != len(plaintext)+vaultcrypto.NonceSizeGCM+vaultcrypto.TagSizeGCM {
		t.Fatalf("blob size law violated: got %d, want %d", len(blob), len(plaintext)+28)
	}

	got, err := c.DecryptBytes(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestDecryptBytesTamperDetection(t *testing.T) {
	c := testController(t)

	blob, err := c.EncryptBytes([]byte("sensitive metadata"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	for _, offset := range []int{0, vaultcrypto.NonceSizeGCM, vaultcrypto.NonceSizeGCM + vaultcrypto.TagSizeGCM} {
		tampered := append([]byte(nil), blob...)
		tampered[offset] ^= 0xFF

		if _, err := c.DecryptBytes(tampered); err == nil {
			t.Errorf("offset %d: expected authentication failure, got nil error", offset)
		}
	}
}

func TestTagDomainIsolation(t *testing.T) {
	c := testController(t)

	blob, err := c.EncryptTagBytes([]byte(`["alpha","beta"]`))
	if err != nil {
		t.Fatalf("encrypt tag bytes: %v", err)
	}

	if _, err := c.DecryptBytes(blob); err == nil {
		t.Fatalf("expected file-key decryption of tag-key ciphertext to fail")
	}

	got, err := c.DecryptTagBytes(blob)
	if err != nil {
		t.Fatalf("decrypt tag bytes: %v", err)
	}

	if string(got) != `["alpha","beta"]` {
		t.Fatalf("got %q", got)
	}
}

func TestEncryptStreamSizeLawAndRoundTrip(t *testing.T) {
	c := testController(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "plain.bin")
	plaintext := bytes.Repeat([]byte("graphivault"), 4096) // exceed a single chunk

	if err := os.WriteFile(src, plaintext, 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}

	dst := filepath.Join(dir, "blob.enc")

	size, err := c.EncryptStream(src, dst)
	if err != nil {
		t.Fatalf("encrypt stream: %v", err)
	}

	if size != int64(len(plaintext))+28 {
		t.Fatalf("blob size law violated: got %d, want %d", size, len(plaintext)+28)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}

	if fi.Size() != size {
		t.Fatalf("on-disk size %d != reported size %d", fi.Size(), size)
	}

	out := filepath.Join(dir, "roundtrip.bin")
	if err := c.DecryptStreamToFile(dst, out); err != nil {
		t.Fatalf("decrypt stream: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read decrypted: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestDecryptStreamTamperDetectionLeavesNoPartialOutput(t *testing.T) {
	c := testController(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "plain.bin")
	if err := os.WriteFile(src, []byte("top secret photo bytes"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}

	dst := filepath.Join(dir, "blob.enc")
	if _, err := c.EncryptStream(src, dst); err != nil {
		t.Fatalf("encrypt stream: %v", err)
	}

	raw, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}

	raw[vaultcrypto.NonceSizeGCM] ^= 0xFF // flip a byte in the tag

	if err := os.WriteFile(dst, raw, 0o600); err != nil {
		t.Fatalf("rewrite blob: %v", err)
	}

	out := filepath.Join(dir, "plain.out")
	if err := c.DecryptStreamToFile(dst, out); err == nil {
		t.Fatalf("expected tamper detection error")
	}

	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no partial output file, stat returned: %v", err)
	}
}

func TestKDFDeriveKeyDeterministic(t *testing.T) {
	params, err := vaultcrypto.NewKDFParams()
	if err != nil {
		t.Fatalf("new kdf params: %v", err)
	}

	params.Iterations = 1000 // keep the test fast; production uses DefaultPBKDF2Iterations

	a := params.DeriveKey([]byte("correct horse battery staple"))
	b := params.DeriveKey([]byte("correct horse battery staple"))

	if !bytes.Equal(a, b) {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}

	c := params.DeriveKey([]byte("wrong password"))
	if bytes.Equal(a, c) {
		t.Fatalf("expected different derivation for different passwords")
	}
}

func TestControllerZeroDisablesFurtherUse(t *testing.T) {
	c := testController(t)

	if _, err := c.EncryptBytes([]byte("x")); err != nil {
		t.Fatalf("encrypt before zero: %v", err)
	}

	c.Zero()

	if _, err := c.EncryptBytes([]byte("x")); err != vaultcrypto.ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized after Zero, got %v", err)
	}
}
