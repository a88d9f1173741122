// Package intake implements the add_image/delete_image pipeline (spec
// §4.5): validation, content hashing, blob encryption, thumbnailing,
// metadata/tag sealing, and the row insert, with compensation on
// partial failure.
package intake

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ZiyanaliSaiyed/GraphiVault/imagemeta"
	"github.com/ZiyanaliSaiyed/GraphiVault/storage"
	"github.com/ZiyanaliSaiyed/GraphiVault/tagcodec"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

var (
	// ErrFileTooLarge is returned when the source file exceeds the
	// vault's configured max_file_size policy.
	ErrFileTooLarge = errors.New("intake: file exceeds max_file_size")

	// ErrUnsupportedMimeType is returned when the sniffed content type
	// is not in the vault's accepted MIME list.
	ErrUnsupportedMimeType = errors.New("intake: unsupported mime type")

	// ErrDuplicateContent is returned when a non-deleted record already
	// carries the same plaintext content hash.
	ErrDuplicateContent = errors.New("intake: duplicate content")
)

// thumbnailMaxDim bounds generated thumbnails to 256x256 (spec §4.5
// step 5).
const thumbnailMaxDim = 256

// securedeletePasses is the number of random-overwrite passes
// delete_image performs on a blob before unlinking it.
const securedeletePasses = 3

// Request describes a single add_image call. SourcePath must name a
// plaintext file already staged on local disk — the gateway decodes
// base64 file_contents into vaultlayout.Paths.Temp() before calling Add.
type Request struct {
	SourcePath string
	Name       string
	Tags       []string
	Extra      map[string]any
}

// Intake wires the Crypto Controller, Tag Codec, image collaborator,
// and Storage Engine into the intake pipeline.
type Intake struct {
	paths        vaultlayout.Paths
	store        *storage.Storage
	controller   *vaultcrypto.Controller
	collaborator imagemeta.Collaborator
	policy       vaultlayout.Policy
}

// New returns an Intake bound to an unlocked controller and an open
// storage handle.
func New(paths vaultlayout.Paths, store *storage.Storage, controller *vaultcrypto.Controller, collaborator imagemeta.Collaborator, policy vaultlayout.Policy) *Intake {
	return &Intake{paths: paths, store: store, controller: controller, collaborator: collaborator, policy: policy}
}

func (in *Intake) acceptedMime(mime string) bool {
	for _, m := range in.policy.AcceptedMimeTypes {
		if m == mime {
			return true
		}
	}

	return false
}

// Add runs the full add_image pipeline (spec §4.5 steps 1-8) and
// returns the inserted row.
func (in *Intake) Add(ctx context.Context, req Request) (storage.Image, error) {
	fi, err := os.Stat(req.SourcePath)
	if err != nil {
		return storage.Image{}, err
	}

	if fi.Size() > in.policy.MaxFileSizeBytes {
		return storage.Image{}, ErrFileTooLarge
	}

	data, err := os.ReadFile(req.SourcePath) //nolint:gosec
	if err != nil {
		return storage.Image{}, err
	}

	mimeType := http.DetectContentType(data)
	if !in.acceptedMime(mimeType) {
		return storage.Image{}, ErrUnsupportedMimeType
	}

	hash, err := vaultcrypto.HashFile(req.SourcePath)
	if err != nil {
		return storage.Image{}, err
	}

	id := uuid.NewString()
	blobPath := in.paths.Blob(id)

	encryptedSize, err := in.controller.EncryptStream(req.SourcePath, blobPath)
	if err != nil {
		return storage.Image{}, err
	}

	var thumbRelPath string

	if ctx.Err() == nil {
		if thumb, terr := in.collaborator.Thumbnail(ctx, data, thumbnailMaxDim, thumbnailMaxDim); terr == nil {
			if werr := os.WriteFile(in.paths.Thumbnail(id), thumb, 0o600); werr == nil {
				thumbRelPath = filepath.Base(in.paths.Thumbnail(id))
			}
		}
		// thumbnail failures are tolerated; thumbRelPath stays empty.
	}

	info, _ := in.collaborator.Inspect(ctx, data)

	metadata := canonicalMetadata(req, info)

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		in.cleanupArtifacts(id, thumbRelPath)
		return storage.Image{}, err
	}

	encryptedMetadata, err := in.controller.EncryptBytes(metaJSON)
	if err != nil {
		in.cleanupArtifacts(id, thumbRelPath)
		return storage.Image{}, err
	}

	encryptedTags, err := tagcodec.Encode(in.controller, req.Tags)
	if err != nil {
		in.cleanupArtifacts(id, thumbRelPath)
		return storage.Image{}, err
	}

	now := time.Now().UTC()

	img := storage.Image{
		ID:                id,
		Name:              req.Name,
		EncryptedPath:     filepath.Base(blobPath),
		OriginalSize:      fi.Size(),
		EncryptedSize:     encryptedSize,
		MimeType:          mimeType,
		FileHash:          hash,
		DateAdded:         now,
		DateModified:      now,
		EncryptedTags:     encryptedTags,
		EncryptedMetadata: encryptedMetadata,
		IsEncrypted:       true,
	}

	if thumbRelPath != "" {
		img.ThumbnailPath = sql.NullString{String: thumbRelPath, Valid: true}
	}

	insertedID, err := in.insertAtomic(ctx, img)
	if err != nil {
		in.cleanupArtifacts(id, thumbRelPath)

		if errors.Is(err, storage.ErrDuplicateHash) {
			return storage.Image{}, ErrDuplicateContent
		}

		return storage.Image{}, err
	}

	img.ID = insertedID

	return img, nil
}

// canonicalMetadata builds the encrypted_metadata payload: original
// filename, extension, creation time, any dimensions the collaborator
// reported, and caller-supplied extras (spec §4.5 step 6).
func canonicalMetadata(req Request, info imagemeta.Info) map[string]any {
	metadata := map[string]any{
		"original_filename": req.Name,
		"file_extension":    filepath.Ext(req.Name),
		"creation_time":     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if info.Width > 0 && info.Height > 0 {
		metadata["width"] = info.Width
		metadata["height"] = info.Height
	}

	for k, v := range req.Extra {
		metadata[k] = v
	}

	return metadata
}

// insertAtomic runs the duplicate-hash check (enforced by the images
// table's UNIQUE constraint) and the insert within a single
// transaction, so two concurrent adds of identical plaintext can never
// both succeed.
func (in *Intake) insertAtomic(ctx context.Context, img storage.Image) (string, error) {
	tx, err := in.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	id, err := in.store.ImagesTx(tx).InsertImage(ctx, img)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return id, nil
}

// cleanupArtifacts removes a partially-written blob/thumbnail pair
// after a failed insert (spec §4.5 step 8's compensation rule).
func (in *Intake) cleanupArtifacts(id, thumbRelPath string) {
	_ = os.Remove(in.paths.Blob(id))

	if thumbRelPath != "" {
		_ = os.Remove(in.paths.Thumbnail(id))
	}
}

// Delete performs the secure-delete pipeline: three random overwrite
// passes (fsync between each), unlink of the blob and any thumbnail,
// then row removal.
func (in *Intake) Delete(ctx context.Context, id string) error {
	img, err := in.store.Images().GetImage(ctx, id)
	if err != nil {
		return err
	}

	blobPath := filepath.Join(in.paths.Data(), img.EncryptedPath)

	if err := secureOverwrite(blobPath, img.EncryptedSize); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("secure overwrite: %w", err)
	}

	_ = os.Remove(blobPath)

	if img.ThumbnailPath.Valid {
		_ = os.Remove(filepath.Join(in.paths.Thumbnails(), img.ThumbnailPath.String))
	}

	return in.store.Images().DeleteImage(ctx, id)
}

// secureOverwrite overwrites path with fresh cryptographic-random bytes
// [securedeletePasses] times, fsyncing after each pass.
func secureOverwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o600) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, size)

	for pass := 0; pass < securedeletePasses; pass++ {
		if _, err := rand.Read(buf); err != nil {
			return err
		}

		if _, err := f.WriteAt(buf, 0); err != nil {
			return err
		}

		if err := f.Sync(); err != nil {
			return err
		}
	}

	return nil
}
