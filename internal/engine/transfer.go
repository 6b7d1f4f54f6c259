package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// BackupMeta is the sidecar written next to a compressed backup.
type BackupMeta struct {
	Instance     string    `json:"instance"`
	CreatedAt    time.Time `json:"created_at"`
	OriginalSize int64     `json:"original_size"`
	Checksum     string    `json:"checksum"` // SHA256 of the compressed file
}

// Transfer moves instances between registrations and portable archives.
type Transfer struct {
	reg    wsl.Registry
	layout config.Layout
}

// NewTransfer creates a portability transfer helper.
func NewTransfer(reg wsl.Registry, layout config.Layout) *Transfer {
	return &Transfer{reg: reg, layout: layout}
}

// Export serializes the instance to destDir, leaving the live registration
// untouched. With compress, the tar is gzipped and a checksum sidecar is
// written. Returns the final archive path.
func (t *Transfer) Export(ctx context.Context, name, destDir string, compress bool) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	t.cleanupPartial(destDir)

	if err := t.reg.ShutdownAll(ctx); err != nil {
		return "", fmt.Errorf("export %q: %w", name, err)
	}

	tarPath := filepath.Join(destDir, name+".tar")
	if err := t.reg.Export(ctx, name, tarPath); err != nil {
		return "", fmt.Errorf("export %q: %w", name, err)
	}
	if !compress {
		return tarPath, nil
	}

	gzPath, size, err := compressFile(tarPath)
	if err != nil {
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := os.Remove(tarPath); err != nil {
		log.Warn().Str("path", tarPath).Err(err).Msg("failed to remove uncompressed export")
	}

	checksum, err := fileChecksum(gzPath)
	if err != nil {
		return "", fmt.Errorf("checksum backup: %w", err)
	}
	meta := BackupMeta{
		Instance:     name,
		CreatedAt:    time.Now(),
		OriginalSize: size,
		Checksum:     checksum,
	}
	if err := writeBackupMeta(metaPath(gzPath), meta); err != nil {
		return "", err
	}
	return gzPath, nil
}

// ImportLocal realizes a registration from whatever data sits at the current
// root. A portable archive wins over the raw disk (no partially-written
// state) and is deleted once the import succeeds, leaving the backing disk
// as the sole source of truth. With only a raw disk present, the file is
// registered in place.
func (t *Transfer) ImportLocal(ctx context.Context, identifier string) (usedArchive bool, err error) {
	if err := t.reg.ShutdownAll(ctx); err != nil {
		return false, fmt.Errorf("import %q: %w", identifier, err)
	}

	if t.layout.ArchivePresent() {
		archive := t.layout.ArchivePath()
		if err := t.reg.Import(ctx, identifier, t.layout.WSLDir(), archive); err != nil {
			return false, fmt.Errorf("import %q from archive: %w", identifier, err)
		}
		if err := os.Remove(archive); err != nil {
			// Best effort: the import finished; a stale archive only wastes space.
			log.Warn().Str("path", archive).Err(err).Msg("failed to remove imported archive")
		}
		return true, nil
	}

	if t.layout.DiskPresent() {
		if err := t.reg.RegisterInPlace(ctx, identifier, t.layout.DiskPath()); err != nil {
			return false, fmt.Errorf("import %q in place: %w", identifier, err)
		}
		return false, nil
	}

	return false, fmt.Errorf("import %q: %w", identifier, ErrMissingDisk)
}

// Restore replaces the managed environment with the given backup archive.
// Accepts the raw tar or a compressed bundle produced by Export; the sidecar
// checksum is verified when present. The current registration and disk are
// replaced.
func (t *Transfer) Restore(ctx context.Context, identifier, archivePath string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	tarPath := archivePath
	cleanupTar := false
	if strings.HasSuffix(archivePath, ".gz") {
		if err := verifyBackupMeta(archivePath); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		decompressed, err := decompressFile(archivePath)
		if err != nil {
			return fmt.Errorf("restore: decompress: %w", err)
		}
		tarPath = decompressed
		cleanupTar = true
	}
	if cleanupTar {
		defer os.Remove(tarPath)
	}

	if err := t.reg.ShutdownAll(ctx); err != nil {
		return fmt.Errorf("restore %q: %w", identifier, err)
	}

	registered, err := t.reg.IsRegistered(ctx, identifier)
	if err != nil {
		return fmt.Errorf("restore %q: %w", identifier, err)
	}
	if registered {
		log.Warn().Str("instance", identifier).Msg("replacing existing registration and its disk")
		if err := t.reg.Unregister(ctx, identifier); err != nil {
			return fmt.Errorf("restore %q: %w", identifier, err)
		}
	} else if t.layout.DiskPresent() {
		// A stray disk at the destination would collide with the import.
		if err := os.Remove(t.layout.DiskPath()); err != nil {
			return fmt.Errorf("restore %q: remove stale disk: %w", identifier, err)
		}
	}

	if err := t.reg.Import(ctx, identifier, t.layout.WSLDir(), tarPath); err != nil {
		return fmt.Errorf("restore %q: %w", identifier, err)
	}
	return nil
}

// cleanupPartial removes leftovers from interrupted exports.
func (t *Transfer) cleanupPartial(destDir string) {
	patterns := []string{"*.tmp", "*.restoring"}
	for _, p := range patterns {
		matches, _ := filepath.Glob(filepath.Join(destDir, p))
		for _, m := range matches {
			os.Remove(m)
		}
	}
}

// compressFile gzips src to src+".gz" via a temp file and atomic rename.
// Returns the compressed path and the original size.
func compressFile(src string) (string, int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	dst := src + ".gz"
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := gw.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	return dst, info.Size(), nil
}

// decompressFile gunzips src to a sibling file without the .gz suffix,
// using a temp name until complete.
func decompressFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gr, err := gzip.NewReader(in)
	if err != nil {
		return "", err
	}
	defer gr.Close()

	dst := strings.TrimSuffix(src, ".gz")
	tmp := dst + ".restoring"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, gr); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return dst, nil
}

func metaPath(archivePath string) string {
	return archivePath + ".meta.json"
}

func writeBackupMeta(path string, meta BackupMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	return nil
}

// verifyBackupMeta checks the archive against its sidecar, if one exists.
// A missing sidecar is fine; a mismatching checksum is not.
func verifyBackupMeta(archivePath string) error {
	data, err := os.ReadFile(metaPath(archivePath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup metadata: %w", err)
	}
	var meta BackupMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("parse backup metadata: %w", err)
	}
	checksum, err := fileChecksum(archivePath)
	if err != nil {
		return err
	}
	if checksum != meta.Checksum {
		return fmt.Errorf("backup corrupted: checksum mismatch (expected %s, got %s)", meta.Checksum, checksum)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
