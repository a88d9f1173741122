package sessiond_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZiyanaliSaiyed/GraphiVault/sessiond"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

func startDaemon(t *testing.T) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "sessiond.sock")

	ctx, cancel := context.WithCancel(context.Background())
	srv := sessiond.NewServer(socketPath, os.Getuid())

	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	return socketPath
}

func TestUnlockTouchGetKeysLock(t *testing.T) {
	vaultPath := t.TempDir()

	if _, err := vaultlayout.Create(vaultPath, []byte("correct horse battery staple")); err != nil {
		t.Fatalf("create vault: %v", err)
	}

	socketPath := startDaemon(t)

	client, err := sessiond.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Unlock(vaultPath, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if !resp.Success || resp.Status != "unlocked" {
		t.Fatalf("expected a successful unlock, got %+v", resp)
	}

	resp, err = client.GetKeys(vaultPath)
	if err != nil {
		t.Fatalf("get_keys: %v", err)
	}

	if !resp.Success || resp.FileKeyHex == "" || resp.TagKeyHex == "" {
		t.Fatalf("expected key material, got %+v", resp)
	}

	if resp.FileKeyHex == resp.TagKeyHex {
		t.Fatal("file key and tag key must be distinct")
	}

	if _, err := client.Touch(vaultPath); err != nil {
		t.Fatalf("touch: %v", err)
	}

	resp, err = client.Lock(vaultPath)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	if !resp.Success || resp.Status != "locked" {
		t.Fatalf("expected locked status after lock, got %+v", resp)
	}

	resp, err = client.GetKeys(vaultPath)
	if err != nil {
		t.Fatalf("get_keys after lock: %v", err)
	}

	if resp.Success {
		t.Fatal("expected get_keys to fail once locked")
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	vaultPath := t.TempDir()

	if _, err := vaultlayout.Create(vaultPath, []byte("the right password")); err != nil {
		t.Fatalf("create vault: %v", err)
	}

	socketPath := startDaemon(t)

	client, err := sessiond.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Unlock(vaultPath, []byte("wrong password"))
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if resp.Success {
		t.Fatal("expected unlock with the wrong password to fail")
	}
}

func TestDialRejectsMissingSocket(t *testing.T) {
	_, err := sessiond.Dial(filepath.Join(t.TempDir(), "does-not-exist.sock"))
	if err == nil {
		t.Fatal("expected dialing a nonexistent socket to fail")
	}
}
