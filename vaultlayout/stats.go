package vaultlayout

import (
	"os"
	"path/filepath"
)

// Stats summarizes a vault's on-disk footprint.
type Stats struct {
	ImageCount     int
	ThumbnailCount int
	TotalBytes     int64
}

// GetStats walks data/ and thumbnails/ and totals file counts and bytes
// across the whole vault tree (data, thumbnails, database, audit log).
func GetStats(root string) (Stats, error) {
	paths := NewPaths(root)

	var stats Stats

	imgs, imgBytes, err := countFiles(paths.Data())
	if err != nil {
		return Stats{}, err
	}

	stats.ImageCount = imgs
	stats.TotalBytes += imgBytes

	thumbs, thumbBytes, err := countFiles(paths.Thumbnails())
	if err != nil {
		return Stats{}, err
	}

	stats.ThumbnailCount = thumbs
	stats.TotalBytes += thumbBytes

	if fi, err := os.Stat(paths.Database()); err == nil {
		stats.TotalBytes += fi.Size()
	}

	if fi, err := os.Stat(paths.AuditLog()); err == nil {
		stats.TotalBytes += fi.Size()
	}

	return stats, nil
}

func countFiles(dir string) (count int, totalBytes int64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return 0, 0, err
		}

		count++
		totalBytes += info.Size()
	}

	return count, totalBytes, nil
}

// CleanupTemp removes every entry under temp/ without removing the
// directory itself.
func CleanupTemp(root string) error {
	dir := NewPaths(root).Temp()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}

	return nil
}
