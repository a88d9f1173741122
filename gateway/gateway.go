// Package gateway implements the Command Gateway (spec §4.8/§6): a
// single-process, stateless request/response boundary. Each invocation
// reads one JSON payload from stdin, dispatches exactly one command
// against a freshly opened Core, and writes one JSON envelope to
// stdout. Unlock state never survives across invocations — the Core is
// instantiated and torn down within a single call to Run.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ZiyanaliSaiyed/GraphiVault/core"
	"github.com/ZiyanaliSaiyed/GraphiVault/imagemeta"
	"github.com/ZiyanaliSaiyed/GraphiVault/intake"
	"github.com/ZiyanaliSaiyed/GraphiVault/storage"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaulterrors"
)

// ExitSuccess and ExitFailure are the two process exit codes the
// gateway ever produces, per spec §6: "0 on success=true, 1 otherwise."
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// envelope is the dynamic `{success, ...payload, error?, details?}`
// response shape from spec §4.8. It is a plain map rather than a fixed
// struct because every command contributes different payload keys.
type envelope map[string]any

func ok(payload map[string]any) envelope {
	e := envelope{"success": true}
	for k, v := range payload {
		e[k] = v
	}

	return e
}

func fail(err error) envelope {
	var verr *vaulterrors.Error
	if !errors.As(err, &verr) {
		verr = vaulterrors.New(vaulterrors.KindInternal, "internal error", err)
	}

	details := map[string]any{"kind": string(verr.Kind)}
	for k, v := range verr.Details {
		details[k] = v
	}

	return envelope{
		"success": false,
		"error":   verr.Message,
		"details": details,
	}
}

// handler runs one command against an open core, given the raw stdin
// payload bytes, and returns the response envelope.
type handler func(ctx context.Context, c *core.Core, payload json.RawMessage) envelope

var handlers = map[string]handler{
	"initialize":       handleInitialize,
	"unlock":           handleUnlock,
	"lock":             handleLock,
	"get_vault_status": handleGetVaultStatus,
	"vault_exists":     handleVaultExists,
	"add_image":        handleAddImage,
	"get_image":        handleGetImage,
	"get_all_images":   handleGetAllImages,
	"search_images":    handleSearchImages,
	"delete_image":     handleDeleteImage,
	"get_stats":        handleGetStats,
}

// Run dispatches command against the vault at vaultPath: it decodes the
// JSON payload from in, opens a Core, invokes the matching handler, and
// writes the resulting envelope to out. It returns the process exit
// code the caller should use.
func Run(ctx context.Context, command, vaultPath string, in io.Reader, out io.Writer) int {
	h, known := handlers[command]
	if !known {
		return writeEnvelope(out, fail(vaulterrors.New(vaulterrors.KindInput, fmt.Sprintf("unknown command %q", command), nil)))
	}

	var payload json.RawMessage

	raw, err := io.ReadAll(in)
	if err != nil {
		return writeEnvelope(out, fail(vaulterrors.New(vaulterrors.KindIO, "failed to read request payload", err)))
	}

	if len(raw) > 0 {
		payload = raw
	}

	c, err := core.Open(ctx, vaultPath, imagemeta.StdCollaborator{})
	if err != nil {
		return writeEnvelope(out, fail(err))
	}
	defer func() { _ = c.Close() }()

	return writeEnvelope(out, h(ctx, c, payload))
}

func writeEnvelope(out io.Writer, e envelope) int {
	data, err := json.Marshal(e)
	if err != nil {
		// marshaling our own envelope should never fail; fall back to a
		// minimal hand-built one rather than writing nothing.
		_, _ = fmt.Fprintf(out, `{"success":false,"error":"failed to encode response"}`)
		return ExitFailure
	}

	_, _ = out.Write(append(data, '\n'))

	if success, _ := e["success"].(bool); success {
		return ExitSuccess
	}

	return ExitFailure
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}

	return json.Unmarshal(payload, v)
}

func inputError(err error) envelope {
	return fail(vaulterrors.New(vaulterrors.KindInput, "malformed request payload", err))
}

type initializeRequest struct {
	Password string `json:"password"`
}

func handleInitialize(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req initializeRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	if err := c.Initialize(ctx, []byte(req.Password)); err != nil {
		return fail(err)
	}

	return ok(map[string]any{"message": "vault initialized"})
}

type unlockRequest struct {
	Password string `json:"password"`
}

func handleUnlock(_ context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req unlockRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	if err := c.Unlock([]byte(req.Password)); err != nil {
		return fail(err)
	}

	return ok(map[string]any{"message": "vault unlocked"})
}

func handleLock(_ context.Context, c *core.Core, _ json.RawMessage) envelope {
	if err := c.Lock(); err != nil {
		return fail(err)
	}

	return ok(map[string]any{"message": "vault locked"})
}

func handleGetVaultStatus(_ context.Context, c *core.Core, _ json.RawMessage) envelope {
	status := c.GetVaultStatus()

	payload := map[string]any{
		"vault_exists": status.Exists,
		"is_locked":    status.IsLocked,
		"message":      statusMessage(status),
	}

	if status.Exists {
		payload["created_at"] = status.CreatedAt
	}

	return ok(payload)
}

func statusMessage(status core.VaultStatus) string {
	if !status.Exists {
		return "no vault at this path"
	}

	if status.IsLocked {
		return "vault is locked"
	}

	return "vault is unlocked"
}

func handleVaultExists(_ context.Context, c *core.Core, _ json.RawMessage) envelope {
	return ok(map[string]any{"data": map[string]any{"exists": c.VaultExists()}})
}

type addImageRequest struct {
	FileContents string         `json:"file_contents"`
	Name         string         `json:"name"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
}

func handleAddImage(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req addImageRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	data, err := base64.StdEncoding.DecodeString(req.FileContents)
	if err != nil {
		return inputError(err)
	}

	path, err := c.StageTempFile(data)
	if err != nil {
		return fail(err)
	}

	img, err := c.AddImage(ctx, intake.Request{
		SourcePath: path,
		Name:       req.Name,
		Tags:       req.Tags,
		Extra:      req.Metadata,
	})
	if err != nil {
		return fail(err)
	}

	return ok(map[string]any{
		"image_id": img.ID,
		"data": map[string]any{
			"id":        img.ID,
			"name":      img.Name,
			"size":      img.OriginalSize,
			"mime_type": img.MimeType,
		},
	})
}

type getImageRequest struct {
	ImageID string `json:"image_id"`
	Decrypt bool   `json:"decrypt"`
}

func handleGetImage(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req getImageRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	img, plaintext, err := c.GetImage(ctx, req.ImageID, req.Decrypt)
	if err != nil {
		return fail(err)
	}

	resp := map[string]any{"image_record": imageRecord(img)}

	if req.Decrypt {
		resp["image_data"] = base64.StdEncoding.EncodeToString(plaintext)
	}

	return ok(resp)
}

type getAllImagesRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func handleGetAllImages(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req getAllImagesRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	if req.Limit <= 0 {
		req.Limit = 100
	}

	images, err := c.GetAllImages(ctx, req.Limit, req.Offset)
	if err != nil {
		return fail(err)
	}

	records := make([]map[string]any, 0, len(images))
	for _, img := range images {
		records = append(records, imageRecord(img))
	}

	return ok(map[string]any{"images": records, "total_count": len(records)})
}

type searchImagesRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

func handleSearchImages(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req searchImagesRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	query := req.Query
	for _, tag := range req.Tags {
		query += " tag:" + tag
	}

	results, err := c.SearchImages(ctx, query)
	if err != nil {
		return fail(err)
	}

	records := make([]map[string]any, 0, len(results))
	for _, r := range results {
		records = append(records, map[string]any{
			"id":         r.Record.ID,
			"name":       r.Record.Name,
			"tags":       r.Record.Tags,
			"mime_type":  r.Record.MimeType,
			"size":       r.Record.Size,
			"date_added": r.Record.DateAdded,
			"score":      r.Score,
		})
	}

	return ok(map[string]any{"results": records, "total_results": len(records)})
}

type deleteImageRequest struct {
	ImageID string `json:"image_id"`
}

func handleDeleteImage(ctx context.Context, c *core.Core, payload json.RawMessage) envelope {
	var req deleteImageRequest
	if err := decodePayload(payload, &req); err != nil {
		return inputError(err)
	}

	if err := c.DeleteImage(ctx, req.ImageID); err != nil {
		return fail(err)
	}

	return ok(map[string]any{"message": "image deleted"})
}

func handleGetStats(_ context.Context, c *core.Core, _ json.RawMessage) envelope {
	stats, err := c.GetStats()
	if err != nil {
		return fail(err)
	}

	return ok(map[string]any{
		"statistics": map[string]any{
			"image_count":     stats.ImageCount,
			"thumbnail_count": stats.ThumbnailCount,
			"total_bytes":     stats.TotalBytes,
		},
	})
}

func imageRecord(img storage.Image) map[string]any {
	rec := map[string]any{
		"id":         img.ID,
		"name":       img.Name,
		"size":       img.OriginalSize,
		"mime_type":  img.MimeType,
		"file_hash":  img.FileHash,
		"date_added": img.DateAdded,
	}

	if img.ThumbnailPath.Valid {
		rec["thumbnail_path"] = img.ThumbnailPath.String
	}

	return rec
}
