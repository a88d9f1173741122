package vaultlayout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZiyanaliSaiyed/GraphiVault/storage"
)

// IntegrityReport is the result of [ValidateIntegrity].
type IntegrityReport struct {
	Valid  bool
	Issues []string
}

// ValidateIntegrity checks that every mandatory directory and file is
// present, and that every blob under data/ is referenced by some
// non-deleted images row. It does not verify blob ciphertext — that
// would require the file key, which the vault manager never holds.
func ValidateIntegrity(ctx context.Context, root string, s *storage.Storage) (IntegrityReport, error) {
	paths := NewPaths(root)

	report := IntegrityReport{Valid: true}

	for _, dir := range paths.dirs() {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			report.Valid = false
			report.Issues = append(report.Issues, fmt.Sprintf("missing directory: %s", dir))
		}
	}

	for _, f := range paths.mandatoryFiles() {
		if fi, err := os.Stat(f); err != nil || fi.IsDir() {
			report.Valid = false
			report.Issues = append(report.Issues, fmt.Sprintf("missing file: %s", f))
		}
	}

	orphans, err := findOrphanBlobs(ctx, paths, s)
	if err != nil {
		return IntegrityReport{}, err
	}

	if len(orphans) > 0 {
		report.Valid = false

		for _, o := range orphans {
			report.Issues = append(report.Issues, fmt.Sprintf("orphan blob: %s", o))
		}
	}

	return report, nil
}

func findOrphanBlobs(ctx context.Context, paths Paths, s *storage.Storage) ([]string, error) {
	entries, err := os.ReadDir(paths.Data())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	referenced := make(map[string]struct{})

	const batch = 500

	for offset := 0; ; offset += batch {
		images, err := s.Images().ListImages(ctx, batch, offset)
		if err != nil {
			return nil, err
		}

		if len(images) == 0 {
			break
		}

		for _, img := range images {
			referenced[filepath.Base(img.EncryptedPath)] = struct{}{}
		}

		if len(images) < batch {
			break
		}
	}

	var orphans []string

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".enc") {
			continue
		}

		if _, ok := referenced[e.Name()]; !ok {
			orphans = append(orphans, e.Name())
		}
	}

	return orphans, nil
}
