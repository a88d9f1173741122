package vaultlayout

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// Create builds a fresh vault tree at root: every subdirectory, the
// config file, and the key-parameter file. It fails with
// [ErrAlreadyExists] if root already looks like a vault.
func Create(root string, password []byte) (Config, error) {
	paths := NewPaths(root)

	if Exists(root) {
		return Config{}, ErrAlreadyExists
	}

	if err := os.MkdirAll(root, 0o700); err != nil {
		return Config{}, err
	}

	for _, dir := range paths.dirs() {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Config{}, err
		}
	}

	now := time.Now().UTC()

	cfg := Config{
		ID:         uuid.NewString(),
		Version:    CurrentSchemaVersion,
		CreatedAt:  now,
		ModifiedAt: now,

		Encrypted:          true,
		CompressionEnabled: false,
		SupportedFormats:   DefaultPolicy().AcceptedMimeTypes,
		SecurityLevel:      "standard",
		BackupEnabled:      false,
		AuditLogging:       true,

		Policy: DefaultPolicy(),
	}

	if err := writeJSON(paths.Config(), cfg); err != nil {
		return Config{}, err
	}

	kf, _, _, err := NewKeyFile(password)
	if err != nil {
		return Config{}, err
	}

	if err := writeJSON(paths.KeyFile(), kf); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Exists reports whether root has every mandatory directory and file,
// and its config parses as valid JSON.
func Exists(root string) bool {
	paths := NewPaths(root)

	for _, dir := range paths.dirs() {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return false
		}
	}

	for _, f := range paths.mandatoryFiles() {
		if fi, err := os.Stat(f); err != nil || fi.IsDir() {
			return false
		}
	}

	var cfg Config

	return readJSON(paths.Config(), &cfg) == nil
}

// GetConfig reads and parses vault.config.
func GetConfig(root string) (Config, error) {
	var cfg Config

	if err := readJSON(NewPaths(root).Config(), &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// UpdateConfig overwrites vault.config with cfg, stamping ModifiedAt;
// CreatedAt is never touched here since it is immutable once set.
func UpdateConfig(root string, cfg Config) error {
	cfg.ModifiedAt = time.Now().UTC()

	return writeJSON(NewPaths(root).Config(), cfg)
}

// GetKeyFile reads and parses vault.key.
func GetKeyFile(root string) (KeyFile, error) {
	var kf KeyFile

	if err := readJSON(NewPaths(root).KeyFile(), &kf); err != nil {
		return KeyFile{}, err
	}

	return kf, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
