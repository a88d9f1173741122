// Package core is the thin orchestration layer (spec §4.9) over the
// Crypto Controller, Storage Engine, Vault Manager, Session Manager,
// Tag Codec, Image Intake, Search, and Audit Log: it enforces that no
// data-plane operation runs unless the vault is unlocked, emits an
// audit event for every state-changing operation, and never lets a
// component error carry key material or plaintext back to a caller.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ZiyanaliSaiyed/GraphiVault/auditlog"
	"github.com/ZiyanaliSaiyed/GraphiVault/imagemeta"
	"github.com/ZiyanaliSaiyed/GraphiVault/intake"
	"github.com/ZiyanaliSaiyed/GraphiVault/search"
	"github.com/ZiyanaliSaiyed/GraphiVault/session"
	"github.com/ZiyanaliSaiyed/GraphiVault/storage"
	"github.com/ZiyanaliSaiyed/GraphiVault/tagcodec"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaulterrors"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

// Core is a single vault's orchestrator. It is safe for concurrent use
// (spec §5): the session manager and storage handle are each
// independently synchronized.
type Core struct {
	root         string
	paths        vaultlayout.Paths
	collaborator imagemeta.Collaborator

	store   *storage.Storage
	audit   *auditlog.Log
	session *session.Manager
}

// Open wires a Core to the vault at root. If the vault does not yet
// exist, store/audit/session stay nil until Initialize creates it;
// every data-plane method returns a StateError until then.
func Open(ctx context.Context, root string, collaborator imagemeta.Collaborator) (*Core, error) {
	c := &Core{root: root, paths: vaultlayout.NewPaths(root), collaborator: collaborator}

	if !vaultlayout.Exists(root) {
		return c, nil
	}

	if err := c.attach(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// attach opens storage and the audit log and builds the session
// manager from the vault's policy. Called once the vault is known to
// exist (either found by Open or just created by Initialize).
func (c *Core) attach(ctx context.Context) error {
	cfg, err := vaultlayout.GetConfig(c.root)
	if err != nil {
		return vaulterrors.New(vaulterrors.KindStorage, "failed to read vault configuration", err)
	}

	store, err := storage.Open(ctx, c.paths.Database())
	if err != nil {
		return vaulterrors.New(vaulterrors.KindStorage, "failed to open vault database", err)
	}

	log, err := auditlog.Open(c.paths.AuditLog())
	if err != nil {
		_ = store.Close()
		return vaulterrors.New(vaulterrors.KindIO, "failed to open audit log", err)
	}

	c.store = store
	c.audit = log
	c.session = session.NewManager(cfg.Policy)

	return nil
}

// Close locks the session, zeroizing any key material, and releases the
// underlying database connection.
func (c *Core) Close() error {
	if c.session != nil {
		c.session.Lock()
	}

	if c.store == nil {
		return nil
	}

	return c.store.Close()
}

func (c *Core) logEvent(eventType, status string, data map[string]any) {
	if c.audit == nil {
		return
	}

	_ = c.audit.Append(eventType, status, data)
}

// Initialize creates a fresh vault tree at root and its key parameters.
// It does not unlock the session — callers call Unlock afterward.
func (c *Core) Initialize(ctx context.Context, password []byte) error {
	if vaultlayout.Exists(c.root) {
		return vaulterrors.New(vaulterrors.KindState, "vault already initialized", vaultlayout.ErrAlreadyExists)
	}

	if len(password) == 0 {
		return vaulterrors.New(vaulterrors.KindInput, "password must not be empty", nil)
	}

	if _, err := vaultlayout.Create(c.root, password); err != nil {
		return vaulterrors.New(vaulterrors.KindIO, "failed to create vault", err)
	}

	if err := c.attach(ctx); err != nil {
		return err
	}

	c.logEvent("initialize", "success", nil)

	return nil
}

// VaultExists reports whether root already holds a valid vault tree.
func (c *Core) VaultExists() bool {
	return vaultlayout.Exists(c.root)
}

// VaultStatus summarizes get_vault_status.
type VaultStatus struct {
	Exists    bool
	IsLocked  bool
	CreatedAt time.Time
}

// GetVaultStatus reports existence, lock state, and creation time
// without requiring an unlocked session.
func (c *Core) GetVaultStatus() VaultStatus {
	status := VaultStatus{Exists: c.VaultExists()}

	if !status.Exists {
		status.IsLocked = true
		return status
	}

	if cfg, err := vaultlayout.GetConfig(c.root); err == nil {
		status.CreatedAt = cfg.CreatedAt
	}

	if c.session == nil {
		status.IsLocked = true
		return status
	}

	status.IsLocked = c.session.Status() != session.Unlocked

	return status
}

// Unlock verifies password against the vault's key file and transitions
// the session to Unlocked.
func (c *Core) Unlock(password []byte) error {
	if c.session == nil {
		return vaulterrors.New(vaulterrors.KindState, "vault not initialized", nil)
	}

	kf, err := vaultlayout.GetKeyFile(c.root)
	if err != nil {
		return vaulterrors.New(vaulterrors.KindStorage, "failed to read key file", err)
	}

	if err := c.session.Unlock(kf, password); err != nil {
		details := map[string]any{"failed_attempts": c.session.FailedAttempts()}

		if lockedUntil := c.session.LockedUntil(); !lockedUntil.IsZero() {
			if remaining := time.Until(lockedUntil).Seconds(); remaining > 0 {
				details["lockout_remaining_seconds"] = remaining
			}
		}

		switch {
		case errors.Is(err, session.ErrLockedOut):
			c.logEvent("unlock", "failure", map[string]any{"method": "password", "reason": "locked_out"})
			return vaulterrors.New(vaulterrors.KindState, "too many failed attempts", err).WithDetails(details)
		case errors.Is(err, session.ErrBadPassword):
			c.logEvent("unlock", "failure", map[string]any{"method": "password"})
			return vaulterrors.AuthError(err).WithDetails(details)
		default:
			c.logEvent("unlock", "failure", map[string]any{"method": "password", "reason": "internal"})
			return vaulterrors.New(vaulterrors.KindInternal, "unlock failed", err)
		}
	}

	c.logEvent("unlock", "success", map[string]any{"method": "password"})

	return nil
}

// Lock moves an Unlocked session to Locked, zeroizing key material; a
// lockout in effect is left in place.
func (c *Core) Lock() error {
	if c.session == nil {
		return vaulterrors.New(vaulterrors.KindState, "vault not initialized", nil)
	}

	c.session.Lock()
	_ = vaultlayout.CleanupTemp(c.root)
	c.logEvent("lock", "success", nil)

	return nil
}

// requireUnlocked touches the session's idle timer and returns its
// active controller, or a StateError if the vault isn't unlocked.
func (c *Core) requireUnlocked() (*vaultcrypto.Controller, error) {
	if c.session == nil || c.store == nil {
		return nil, vaulterrors.New(vaulterrors.KindState, "vault not initialized", nil)
	}

	if err := c.session.Touch(); err != nil {
		return nil, vaulterrors.New(vaulterrors.KindState, "vault not unlocked", err)
	}

	return c.session.Controller()
}

// AddImage runs the Image Intake pipeline and emits an add_image audit
// event.
func (c *Core) AddImage(ctx context.Context, req intake.Request) (storage.Image, error) {
	controller, err := c.requireUnlocked()
	if err != nil {
		return storage.Image{}, err
	}

	cfg, err := vaultlayout.GetConfig(c.root)
	if err != nil {
		return storage.Image{}, vaulterrors.New(vaulterrors.KindStorage, "failed to read vault configuration", err)
	}

	in := intake.New(c.paths, c.store, controller, c.collaborator, cfg.Policy)

	img, err := in.Add(ctx, req)
	if err != nil {
		classified := classifyIntakeError(err)
		c.logEvent("add_image", "failure", map[string]any{"filename": req.Name, "reason": classified.Message})

		return storage.Image{}, classified
	}

	c.logEvent("add_image", "success", map[string]any{
		"image_id": img.ID,
		"filename": img.Name,
		"size":     img.OriginalSize,
	})

	return img, nil
}

func classifyIntakeError(err error) *vaulterrors.Error {
	switch {
	case errors.Is(err, intake.ErrDuplicateContent):
		return vaulterrors.New(vaulterrors.KindStorage, "duplicate content", err)
	case errors.Is(err, intake.ErrFileTooLarge), errors.Is(err, intake.ErrUnsupportedMimeType):
		return vaulterrors.New(vaulterrors.KindInput, err.Error(), err)
	default:
		return vaulterrors.New(vaulterrors.KindIO, "failed to add image", err)
	}
}

// GetImage returns the row, and optionally the decrypted plaintext
// bytes, for an image by id.
func (c *Core) GetImage(ctx context.Context, id string, decrypt bool) (storage.Image, []byte, error) {
	controller, err := c.requireUnlocked()
	if err != nil {
		return storage.Image{}, nil, err
	}

	img, err := c.store.Images().GetImage(ctx, id)
	if err != nil {
		return storage.Image{}, nil, classifyStorageError(err)
	}

	if !decrypt {
		return img, nil, nil
	}

	plaintext, err := controller.DecryptToMemory(filepath.Join(c.paths.Data(), img.EncryptedPath))
	if err != nil {
		return storage.Image{}, nil, vaulterrors.New(vaulterrors.KindIntegrity, "blob failed to decrypt", err)
	}

	return img, plaintext, nil
}

// GetAllImages lists images ordered by date_added descending.
func (c *Core) GetAllImages(ctx context.Context, limit, offset int) ([]storage.Image, error) {
	if _, err := c.requireUnlocked(); err != nil {
		return nil, err
	}

	images, err := c.store.Images().ListImages(ctx, limit, offset)
	if err != nil {
		return nil, vaulterrors.New(vaulterrors.KindStorage, "failed to list images", err)
	}

	return images, nil
}

// SearchImages decrypts every candidate's tags and metadata and ranks
// them against the parsed query (spec §4.7). The ranking engine itself
// never touches ciphertext.
func (c *Core) SearchImages(ctx context.Context, query string) ([]search.Result, error) {
	controller, err := c.requireUnlocked()
	if err != nil {
		return nil, err
	}

	q, err := search.Parse(query)
	if err != nil {
		return nil, vaulterrors.New(vaulterrors.KindInput, "invalid search query", err)
	}

	const batch = 500

	var records []search.Record

	for offset := 0; ; offset += batch {
		images, err := c.store.Images().ListImages(ctx, batch, offset)
		if err != nil {
			return nil, vaulterrors.New(vaulterrors.KindStorage, "failed to list images", err)
		}

		if len(images) == 0 {
			break
		}

		for _, img := range images {
			records = append(records, toSearchRecord(controller, img))
		}

		if len(images) < batch {
			break
		}
	}

	return search.Search(records, q), nil
}

// toSearchRecord decrypts an image row's tag and metadata ciphertext
// into the plaintext projection search ranks over. Decrypt failures are
// tolerated here (the record just loses that field) rather than
// failing the whole search — a single corrupted row should not hide
// every other match.
func toSearchRecord(controller *vaultcrypto.Controller, img storage.Image) search.Record {
	r := search.Record{
		ID:        img.ID,
		Name:      img.Name,
		MimeType:  img.MimeType,
		Size:      img.OriginalSize,
		DateAdded: img.DateAdded,
	}

	if tags, err := tagcodec.Decode(controller, img.EncryptedTags); err == nil {
		r.Tags = tags
	}

	if metadata, err := decryptMetadata(controller, img.EncryptedMetadata); err == nil {
		r.Metadata = metadata
	}

	return r
}

func decryptMetadata(controller *vaultcrypto.Controller, blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	data, err := controller.DecryptBytes(blob)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}

	return metadata, nil
}

// DeleteImage secure-deletes the blob/thumbnail and removes the row.
func (c *Core) DeleteImage(ctx context.Context, id string) error {
	controller, err := c.requireUnlocked()
	if err != nil {
		return err
	}

	cfg, err := vaultlayout.GetConfig(c.root)
	if err != nil {
		return vaulterrors.New(vaulterrors.KindStorage, "failed to read vault configuration", err)
	}

	in := intake.New(c.paths, c.store, controller, c.collaborator, cfg.Policy)

	if err := in.Delete(ctx, id); err != nil {
		c.logEvent("delete_image", "failure", map[string]any{"image_id": id})

		if errors.Is(err, storage.ErrNotFound) {
			return vaulterrors.New(vaulterrors.KindInput, "image not found", err)
		}

		return vaulterrors.New(vaulterrors.KindIO, "failed to delete image", err)
	}

	c.logEvent("delete_image", "success", map[string]any{"image_id": id})

	return nil
}

// GetStats reports on-disk footprint for get_stats. It does not require
// an unlocked session — only ciphertext lives on disk either way.
func (c *Core) GetStats() (vaultlayout.Stats, error) {
	stats, err := vaultlayout.GetStats(c.root)
	if err != nil {
		return vaultlayout.Stats{}, vaulterrors.New(vaulterrors.KindIO, "failed to compute stats", err)
	}

	return stats, nil
}

// ValidateIntegrity runs the vault manager's structural integrity check.
func (c *Core) ValidateIntegrity(ctx context.Context) (vaultlayout.IntegrityReport, error) {
	if c.store == nil {
		return vaultlayout.IntegrityReport{}, vaulterrors.New(vaulterrors.KindState, "vault not initialized", nil)
	}

	report, err := vaultlayout.ValidateIntegrity(ctx, c.root, c.store)
	if err != nil {
		return vaultlayout.IntegrityReport{}, vaulterrors.New(vaulterrors.KindIntegrity, "integrity check failed", err)
	}

	return report, nil
}

func classifyStorageError(err error) *vaulterrors.Error {
	if errors.Is(err, storage.ErrNotFound) {
		return vaulterrors.New(vaulterrors.KindInput, "image not found", err)
	}

	return vaulterrors.New(vaulterrors.KindStorage, "storage operation failed", err)
}

// StageTempFile writes data under the vault's temp/ directory and
// returns its path, for callers (the command gateway) that receive
// base64 payloads and must hand Intake a path on disk.
func (c *Core) StageTempFile(data []byte) (string, error) {
	f, err := os.CreateTemp(c.paths.Temp(), "add-*")
	if err != nil {
		return "", vaulterrors.New(vaulterrors.KindIO, "failed to stage upload", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return "", vaulterrors.New(vaulterrors.KindIO, "failed to stage upload", err)
	}

	return f.Name(), nil
}
