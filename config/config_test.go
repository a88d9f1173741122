package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZiyanaliSaiyed/GraphiVault/config"
)

func TestLoadMissingDefaultConfigIsNotAnError(t *testing.T) {
	t.Setenv("GRAPHIVAULT_CONFIG_PATH", filepath.Join(t.TempDir(), "does-not-exist.toml"))

	c, err := config.Load("")
	if err != nil {
		t.Fatalf("expected a missing config file to fall back cleanly, got %v", err)
	}

	if c.Path() != "" {
		t.Fatalf("expected no path to be recorded, got %q", c.Path())
	}
}

func TestLoadParsesVaultSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
[vault]
path = "/tmp/myvault"
idle_timeout = "45m"

[daemon]
socket_path = "/tmp/imgvault.sock"
`

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Vault.Path != "/tmp/myvault" {
		t.Fatalf("expected vault.path to be parsed, got %q", c.Vault.Path)
	}

	if c.Daemon.SocketPath != "/tmp/imgvault.sock" {
		t.Fatalf("expected daemon.socket_path to be parsed, got %q", c.Daemon.SocketPath)
	}

	if c.Path() != path {
		t.Fatalf("expected Path() to report %q, got %q", path, c.Path())
	}
}

func TestLoadRejectsNonPositiveMaxFailedAttempts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
[vault]
max_failed_attempts = 0
`

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected a zero max_failed_attempts to fail validation")
	}
}

func TestGenerateProducesParseableTOML(t *testing.T) {
	out, err := config.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(out) == 0 {
		t.Fatal("expected non-empty generated config")
	}
}
