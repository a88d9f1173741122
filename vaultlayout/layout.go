// Package vaultlayout owns the on-disk structure of a vault directory:
// the config and key-parameter files, the fixed set of subdirectories,
// and the checks that decide whether a directory is a valid vault.
package vaultlayout

import "path/filepath"

const (
	configFileName = "vault.config"
	keyFileName    = "vault.key"
	dataDirName    = "data"
	thumbsDirName  = "thumbnails"
	metaDirName    = "metadata"
	tempDirName    = "temp"
	backupsDirName = "backups"
	dbDirName      = "database"
	dbFileName     = "vault.db"
	auditLogName   = "audit.log"
)

// Paths resolves every well-known file and directory under a vault root.
type Paths struct {
	Root string
}

func NewPaths(root string) Paths { return Paths{Root: root} }

func (p Paths) Config() string     { return filepath.Join(p.Root, configFileName) }
func (p Paths) KeyFile() string    { return filepath.Join(p.Root, keyFileName) }
func (p Paths) Data() string       { return filepath.Join(p.Root, dataDirName) }
func (p Paths) Thumbnails() string { return filepath.Join(p.Root, thumbsDirName) }
func (p Paths) Metadata() string   { return filepath.Join(p.Root, metaDirName) }
func (p Paths) Temp() string       { return filepath.Join(p.Root, tempDirName) }
func (p Paths) Backups() string     { return filepath.Join(p.Root, backupsDirName) }
func (p Paths) DatabaseDir() string { return filepath.Join(p.Root, dbDirName) }
func (p Paths) Database() string    { return filepath.Join(p.DatabaseDir(), dbFileName) }
func (p Paths) AuditLog() string   { return filepath.Join(p.Root, auditLogName) }

// Blob returns the path of an image's encrypted blob under data/.
func (p Paths) Blob(id string) string {
	return filepath.Join(p.Data(), id+".enc")
}

// Thumbnail returns the path of an image's plaintext thumbnail under
// thumbnails/.
func (p Paths) Thumbnail(id string) string {
	return filepath.Join(p.Thumbnails(), id+".jpg")
}

// dirs lists the directories [Create] must create and [Exists] must find.
func (p Paths) dirs() []string {
	return []string{p.Data(), p.Thumbnails(), p.Metadata(), p.Temp(), p.Backups(), p.DatabaseDir()}
}

// mandatoryFiles lists the files that must exist for a directory to be a
// vault, beyond the directories themselves.
func (p Paths) mandatoryFiles() []string {
	return []string{p.Config(), p.KeyFile()}
}
