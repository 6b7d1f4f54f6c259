// Package config provides configuration management for wslforge.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// File and directory names under the installation root. The backing disk
// lives at <root>/data/wsl/ext4.vhdx; its presence is the "has data" signal.
const (
	LocalDataDirName = "data"
	WSLDirName       = "wsl"
	DiskFileName     = "ext4.vhdx"
	ArchiveFileName  = "environment.tar"
	StateFileName    = "state.json"
	BackupDirName    = "backups"
)

// Layout derives every installation path from one root. All consumers go
// through Layout so a relocated root changes every derived path together.
type Layout struct {
	// InstallRoot is the directory the installation lives under.
	InstallRoot string
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{InstallRoot: filepath.Clean(root)}
}

// LocalDataRoot is <root>/data.
func (l Layout) LocalDataRoot() string {
	return filepath.Join(l.InstallRoot, LocalDataDirName)
}

// WSLDir is <root>/data/wsl, the directory WSL registers the disk under.
func (l Layout) WSLDir() string {
	return filepath.Join(l.LocalDataRoot(), WSLDirName)
}

// DiskPath is the expected backing-disk location for this root.
func (l Layout) DiskPath() string {
	return filepath.Join(l.WSLDir(), DiskFileName)
}

// ArchivePath is where a portable archive transiently lives during
// migration.
func (l Layout) ArchivePath() string {
	return filepath.Join(l.WSLDir(), ArchiveFileName)
}

// StatePath is the state document location.
func (l Layout) StatePath() string {
	return filepath.Join(l.LocalDataRoot(), StateFileName)
}

// BackupDir is the default export destination.
func (l Layout) BackupDir() string {
	return filepath.Join(l.InstallRoot, BackupDirName)
}

// DiskPresent reports whether the backing disk exists at this root.
func (l Layout) DiskPresent() bool {
	info, err := os.Stat(l.DiskPath())
	return err == nil && !info.IsDir()
}

// ArchivePresent reports whether a portable archive exists at this root.
func (l Layout) ArchivePresent() bool {
	info, err := os.Stat(l.ArchivePath())
	return err == nil && !info.IsDir()
}

// DetectInstallRoot resolves the installation root: the WSLFORGE_ROOT
// environment variable if set, else the directory holding the running
// executable. The tool is distributed as a portable directory, so the binary
// location is the root.
func DetectInstallRoot() (string, error) {
	if root := os.Getenv("WSLFORGE_ROOT"); root != "" {
		return filepath.Clean(root), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// SamePath reports whether two paths refer to the same location after
// cleaning, ignoring case. Windows filesystems are case-insensitive and the
// Lxss hive records paths with arbitrary casing.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
