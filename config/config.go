// Package config resolves the operator-level TOML configuration file
// (distinct from a vault's own vault.config, which vaultlayout owns):
// the default vault path, a session daemon socket path, and idle/lockout
// policy settings. Only the vault path is applied, as the --vault-path
// default; the other settings are parsed and validated but no command
// reads them.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// envConfigPathKey overrides the default config file location, mirroring
// the teacher's own VLT_CONFIG_PATH convention.
const envConfigPathKey = "GRAPHIVAULT_CONFIG_PATH"

const defaultConfigName = ".imgvault.toml"

// FileConfig is the full structure of the on-disk configuration file.
type FileConfig struct {
	Vault  VaultConfig  `toml:"vault" comment:"Default vault location and unlock policy"`
	Daemon DaemonConfig `toml:"daemon" comment:"Session daemon socket settings"`

	path string
}

// VaultConfig holds the default vault path for commands that omit
// --vault-path, plus idle/lockout settings. New vaults are not given
// these settings; they always start with vaultlayout.DefaultPolicy.
type VaultConfig struct {
	Path              string `toml:"path,commented" comment:"default vault directory (default: ~/.graphivault)"`
	IdleTimeout       string `toml:"idle_timeout,commented" comment:"how long an unlocked session may sit idle before re-locking (default: 30m)"`
	MaxFailedAttempts *int   `toml:"max_failed_attempts,commented" comment:"failed unlock attempts before lockout (default: 3)"`
	LockoutDuration   string `toml:"lockout_duration,commented" comment:"lockout duration once max_failed_attempts is reached (default: 15m)"`
}

// DaemonConfig holds a session daemon socket path. It is parsed but not
// used: imgvault and imgvaultd take their socket path from
// sessiond.DefaultSocketPath (or imgvaultd's argument).
type DaemonConfig struct {
	SocketPath string `toml:"socket_path,commented" comment:"session daemon socket path (default: $XDG_RUNTIME_DIR or $TMPDIR)"`
}

func newFileConfig() *FileConfig {
	return &FileConfig{}
}

// Load reads the config file at path, or the default location if path is
// empty, tolerating a missing default file by returning an empty config.
func Load(path string) (*FileConfig, error) {
	defaultPath, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}

	configPath := cmp.Or(path, defaultPath)

	c, err := parseFileConfig(configPath)
	if err != nil {
		if len(path) == 0 && errors.Is(err, fs.ErrNotExist) {
			c = newFileConfig()
		} else {
			return nil, err
		}
	} else {
		c.path = configPath
	}

	return c, c.validate()
}

// Path reports the file the config was loaded from, or "" if none was
// found and defaults were used.
func (c *FileConfig) Path() string { return c.path }

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home dir: %w", err)
	}

	path := filepath.Join(home, defaultConfigName)
	if p, ok := os.LookupEnv(envConfigPathKey); ok {
		path = p
	}

	return path, nil
}

func parseFileConfig(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat file: %w", err)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	c := newFileConfig()
	if err := toml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}

	return c, nil
}

func (c *FileConfig) validate() error {
	if c == nil {
		return errors.New("config: cannot validate a nil config")
	}

	if c.Vault.MaxFailedAttempts != nil && *c.Vault.MaxFailedAttempts <= 0 {
		return errors.New("config: vault.max_failed_attempts must be positive")
	}

	return nil
}

// Generate renders a commented default config as TOML, for an operator
// bootstrapping a new config file.
func Generate() ([]byte, error) {
	return toml.Marshal(newFileConfig())
}
