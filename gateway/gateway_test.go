package gateway_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZiyanaliSaiyed/GraphiVault/gateway"
)

func runCommand(t *testing.T, vaultPath, command string, payload map[string]any) (map[string]any, int) {
	t.Helper()

	var in bytes.Buffer

	if payload != nil {
		if err := json.NewEncoder(&in).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	var out bytes.Buffer

	code := gateway.Run(context.Background(), command, vaultPath, &in, &out)

	var resp map[string]any
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", out.String(), err)
	}

	return resp, code
}

func writeJPEGFixture(t *testing.T, dir string) []byte {
	t.Helper()

	content := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte("x"), 128)...)

	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	return content
}

func TestUnknownCommandReturnsInputError(t *testing.T) {
	resp, code := runCommand(t, t.TempDir(), "not_a_command", nil)

	if code != gateway.ExitFailure {
		t.Fatalf("expected exit code %d, got %d", gateway.ExitFailure, code)
	}

	if success, _ := resp["success"].(bool); success {
		t.Fatal("expected success=false for an unknown command")
	}
}

func TestInitializeUnlockAddGetStats(t *testing.T) {
	vaultPath := t.TempDir()

	resp, code := runCommand(t, vaultPath, "initialize", map[string]any{"password": "correct horse battery staple"})
	if code != gateway.ExitSuccess {
		t.Fatalf("initialize failed: %+v", resp)
	}

	resp, code = runCommand(t, vaultPath, "vault_exists", nil)
	if code != gateway.ExitSuccess {
		t.Fatalf("vault_exists failed: %+v", resp)
	}

	data, _ := resp["data"].(map[string]any)
	if exists, _ := data["exists"].(bool); !exists {
		t.Fatalf("expected vault_exists data.exists=true, got %+v", resp)
	}

	resp, code = runCommand(t, vaultPath, "unlock", map[string]any{"password": "correct horse battery staple"})
	if code != gateway.ExitSuccess {
		t.Fatalf("unlock failed: %+v", resp)
	}

	srcDir := t.TempDir()
	content := writeJPEGFixture(t, srcDir)

	// Each gateway call starts with a fresh, locked session, so the unlock
	// above does not carry over and add_image is refused.
	resp, code = runCommand(t, vaultPath, "add_image", map[string]any{
		"file_contents": base64.StdEncoding.EncodeToString(content),
		"name":          "photo.jpg",
		"tags":          []string{"beach"},
	})
	if code != gateway.ExitFailure {
		t.Fatalf("expected add_image to fail in a separate invocation, got %+v", resp)
	}

	details, _ := resp["details"].(map[string]any)
	if kind, _ := details["kind"].(string); kind != "StateError" {
		t.Fatalf("expected a StateError from add_image on a locked vault, got %+v", resp)
	}

	resp, code = runCommand(t, vaultPath, "get_stats", nil)
	if code != gateway.ExitSuccess {
		t.Fatalf("get_stats failed: %+v", resp)
	}

	stats, _ := resp["statistics"].(map[string]any)
	if count, _ := stats["image_count"].(float64); count != 0 {
		t.Fatalf("expected image_count=0, got %+v", stats)
	}
}

func TestUnlockWrongPasswordFailsWithGenericMessage(t *testing.T) {
	vaultPath := t.TempDir()

	_, code := runCommand(t, vaultPath, "initialize", map[string]any{"password": "the right one here"})
	if code != gateway.ExitSuccess {
		t.Fatal("initialize failed")
	}

	resp, code := runCommand(t, vaultPath, "unlock", map[string]any{"password": "definitely wrong"})
	if code != gateway.ExitFailure {
		t.Fatalf("expected unlock to fail, got %+v", resp)
	}

	if resp["error"] != "authentication failed" {
		t.Fatalf("expected the generic oracle-resistant message, got %+v", resp)
	}

	details, _ := resp["details"].(map[string]any)
	if attempts, _ := details["failed_attempts"].(float64); attempts != 1 {
		t.Fatalf("expected failed_attempts=1 in details, got %+v", details)
	}
}

func TestUnlockLockoutReportsRemainingSeconds(t *testing.T) {
	vaultPath := t.TempDir()

	_, code := runCommand(t, vaultPath, "initialize", map[string]any{"password": "the right one here"})
	if code != gateway.ExitSuccess {
		t.Fatal("initialize failed")
	}

	// default policy locks out after 3 failed attempts (spec §4.4 default).
	var resp map[string]any

	for range 3 {
		resp, code = runCommand(t, vaultPath, "unlock", map[string]any{"password": "still wrong"})
		if code != gateway.ExitFailure {
			t.Fatalf("expected unlock to fail, got %+v", resp)
		}
	}

	details, _ := resp["details"].(map[string]any)
	if remaining, _ := details["lockout_remaining_seconds"].(float64); remaining <= 0 {
		t.Fatalf("expected a positive lockout_remaining_seconds once locked out, got %+v", details)
	}
}

func TestGetVaultStatusOnMissingVault(t *testing.T) {
	resp, code := runCommand(t, t.TempDir(), "get_vault_status", nil)
	if code != gateway.ExitSuccess {
		t.Fatalf("get_vault_status should succeed even with no vault: %+v", resp)
	}

	if exists, _ := resp["vault_exists"].(bool); exists {
		t.Fatal("expected vault_exists=false for an empty directory")
	}

	if _, present := resp["created_at"]; present {
		t.Fatal("expected no created_at for a vault that does not exist")
	}
}

func TestGetVaultStatusReportsCreatedAt(t *testing.T) {
	vaultPath := t.TempDir()

	_, code := runCommand(t, vaultPath, "initialize", map[string]any{"password": "status created at password"})
	if code != gateway.ExitSuccess {
		t.Fatal("initialize failed")
	}

	resp, code := runCommand(t, vaultPath, "get_vault_status", nil)
	if code != gateway.ExitSuccess {
		t.Fatalf("get_vault_status failed: %+v", resp)
	}

	if _, ok := resp["created_at"].(string); !ok {
		t.Fatalf("expected created_at to be a timestamp string, got %+v", resp)
	}
}

func TestDeleteImageNotFound(t *testing.T) {
	vaultPath := t.TempDir()

	_, code := runCommand(t, vaultPath, "initialize", map[string]any{"password": "delete not found password"})
	if code != gateway.ExitSuccess {
		t.Fatal("initialize failed")
	}

	_, code = runCommand(t, vaultPath, "unlock", map[string]any{"password": "delete not found password"})
	if code != gateway.ExitSuccess {
		t.Fatal("unlock failed")
	}

	resp, code := runCommand(t, vaultPath, "delete_image", map[string]any{"image_id": "not-a-real-id"})
	if code != gateway.ExitFailure {
		t.Fatalf("expected delete of a missing id to fail, got %+v", resp)
	}
}
