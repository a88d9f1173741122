package vaultlayout

import "time"

// Policy holds the operational limits intake and the session manager
// enforce. [Create] writes [DefaultPolicy] into every new vault; values
// read back from vault.config are used as stored, with no defaulting.
type Policy struct {
	MaxFileSizeBytes  int64    `json:"max_file_size_bytes"`
	AcceptedMimeTypes []string `json:"accepted_mime_types"`
	IdleTimeout       Duration `json:"idle_timeout"`
	MaxFailedAttempts int      `json:"max_failed_attempts"`
	LockoutDuration   Duration `json:"lockout_duration"`
}

// DefaultPolicy matches the defaults named in spec §4.4 and a
// conservative image-only MIME allow-list for §4.5.
func DefaultPolicy() Policy {
	return Policy{
		MaxFileSizeBytes:  50 * 1024 * 1024,
		AcceptedMimeTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp"},
		IdleTimeout:       Duration(30 * time.Minute),
		MaxFailedAttempts: 3,
		LockoutDuration:   Duration(15 * time.Minute),
	}
}

// Duration marshals as a Go duration string ("30m0s") in vault.config
// instead of a raw nanosecond integer, so the file stays readable by an
// operator inspecting it by hand.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// Config is the plaintext vault.config document: identity, schema
// version, the policy above, and the §6 status knobs surfaced by
// get_vault_status. ID and CreatedAt are set once at [Create] time and
// never change; ModifiedAt advances on every [UpdateConfig].
type Config struct {
	ID         string    `json:"vault_id"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	Encrypted          bool     `json:"encrypted"`
	CompressionEnabled bool     `json:"compression_enabled"`
	SupportedFormats   []string `json:"supported_formats"`
	SecurityLevel      string   `json:"security_level"`
	BackupEnabled      bool     `json:"backup_enabled"`
	AuditLogging       bool     `json:"audit_logging"`

	Policy Policy `json:"policy"`
}

// CurrentSchemaVersion is written into new vaults; [GetConfig] does not
// compare a loaded vault's version against it. It is independent of the
// database migration version tracked by github.com/ladzaretti/migrate.
const CurrentSchemaVersion = 1
