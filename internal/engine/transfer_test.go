package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/testutil"
)

func newTransferEnv(t *testing.T) (config.Layout, *testutil.FakeRegistry, *Transfer) {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	reg := testutil.NewFakeRegistry()
	return layout, reg, NewTransfer(reg, layout)
}

func TestTransferExportPlain(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)
	reg.Instances["wslforge"] = layout.DiskPath()
	reg.Running["wslforge"] = true

	dest := t.TempDir()
	archive, err := tr.Export(context.Background(), "wslforge", dest, false)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if archive != filepath.Join(dest, "wslforge.tar") {
		t.Errorf("archive = %q", archive)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if reg.Running["wslforge"] {
		t.Error("export should shut instances down first")
	}
	// The live registration stays.
	if registered, _ := reg.IsRegistered(context.Background(), "wslforge"); !registered {
		t.Error("export must not touch the registration")
	}
}

func TestTransferExportCompressed(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)
	reg.Instances["wslforge"] = layout.DiskPath()

	dest := t.TempDir()
	archive, err := tr.Export(context.Background(), "wslforge", dest, true)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.HasSuffix(archive, ".tar.gz") {
		t.Errorf("archive = %q, want .tar.gz", archive)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("compressed archive not written: %v", err)
	}
	if _, err := os.Stat(archive + ".meta.json"); err != nil {
		t.Fatalf("checksum sidecar not written: %v", err)
	}
	// The intermediate tar is cleaned up.
	if _, err := os.Stat(strings.TrimSuffix(archive, ".gz")); !os.IsNotExist(err) {
		t.Error("uncompressed tar should be removed")
	}
}

func TestTransferRoundTrip(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)
	reg.Instances["wslforge"] = layout.DiskPath()

	dest := t.TempDir()
	archive, err := tr.Export(context.Background(), "wslforge", dest, true)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Restore into a fresh root, as after a machine migration.
	newLayout := config.NewLayout(t.TempDir())
	newReg := testutil.NewFakeRegistry()
	newTr := NewTransfer(newReg, newLayout)

	if err := newTr.Restore(context.Background(), "wslforge", archive); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if registered, _ := newReg.IsRegistered(context.Background(), "wslforge"); !registered {
		t.Error("instance should be registered after restore")
	}
	backing, _ := newReg.BackingPath(context.Background(), "wslforge")
	if backing != newLayout.DiskPath() {
		t.Errorf("backing path = %q, want %q under the new root", backing, newLayout.DiskPath())
	}
}

func TestTransferRestoreChecksumMismatch(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)
	reg.Instances["wslforge"] = layout.DiskPath()

	dest := t.TempDir()
	archive, err := tr.Export(context.Background(), "wslforge", dest, true)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the archive after the sidecar was written.
	if err := os.WriteFile(archive, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = tr.Restore(context.Background(), "wslforge", archive)
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("err = %v, want checksum mismatch", err)
	}
}

func TestTransferImportLocalPrefersArchive(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)
	testutil.CreateArchive(t, layout)

	usedArchive, err := tr.ImportLocal(context.Background(), "wslforge")
	if err != nil {
		t.Fatalf("ImportLocal failed: %v", err)
	}
	if !usedArchive {
		t.Error("archive should be preferred over the raw disk")
	}
	if layout.ArchivePresent() {
		t.Error("archive should be deleted after import")
	}
	if registered, _ := reg.IsRegistered(context.Background(), "wslforge"); !registered {
		t.Error("instance should be registered after import")
	}
}

func TestTransferImportLocalRawDisk(t *testing.T) {
	layout, reg, tr := newTransferEnv(t)
	testutil.CreateDisk(t, layout)

	usedArchive, err := tr.ImportLocal(context.Background(), "wslforge")
	if err != nil {
		t.Fatalf("ImportLocal failed: %v", err)
	}
	if usedArchive {
		t.Error("no archive present, raw disk should be registered in place")
	}
	backing, _ := reg.BackingPath(context.Background(), "wslforge")
	if backing != layout.DiskPath() {
		t.Errorf("backing path = %q, want %q", backing, layout.DiskPath())
	}
}

func TestTransferImportLocalNothingToImport(t *testing.T) {
	_, _, tr := newTransferEnv(t)

	if _, err := tr.ImportLocal(context.Background(), "wslforge"); err == nil {
		t.Fatal("ImportLocal should fail with neither archive nor disk present")
	}
}
