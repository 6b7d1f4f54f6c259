// Package testutil provides common test helpers for wslforge tests, chiefly
// an in-memory registration registry so reconciliation logic can be
// exercised without a real WSL host.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// FakeRegistry is an in-memory wsl.Registry. It mirrors host behavior
// closely enough for reconciliation tests: registrations map names to
// backing paths, import materializes a disk file under the destination
// root, and every mutating call is counted so tests can assert idempotence.
type FakeRegistry struct {
	Instances map[string]string // name -> backing path
	Running   map[string]bool

	// Mutations counts RegisterInPlace, RemoveRegistrationOnly, Unregister,
	// and Import calls.
	Mutations int
	// Shutdowns counts ShutdownAll calls.
	Shutdowns int

	// FailRegister, when set, makes RegisterInPlace fail with this error.
	FailRegister error
}

// NewFakeRegistry creates an empty fake registry.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		Instances: make(map[string]string),
		Running:   make(map[string]bool),
	}
}

func (f *FakeRegistry) List(ctx context.Context) ([]wsl.Instance, error) {
	var out []wsl.Instance
	for name := range f.Instances {
		out = append(out, wsl.Instance{Name: name, Running: f.Running[name]})
	}
	return out, nil
}

func (f *FakeRegistry) IsRegistered(ctx context.Context, name string) (bool, error) {
	_, ok := f.lookup(name)
	return ok, nil
}

func (f *FakeRegistry) BackingPath(ctx context.Context, name string) (string, error) {
	path, _ := f.lookup(name)
	return path, nil
}

func (f *FakeRegistry) RegisterInPlace(ctx context.Context, name, diskPath string) error {
	if f.FailRegister != nil {
		return f.FailRegister
	}
	if _, ok := f.lookup(name); ok {
		return fmt.Errorf("register %q: %w", name, wsl.ErrAlreadyRegistered)
	}
	if _, err := os.Stat(diskPath); err != nil {
		return fmt.Errorf("register %q: disk not found: %w", name, err)
	}
	f.Instances[name] = diskPath
	f.Mutations++
	return nil
}

func (f *FakeRegistry) RemoveRegistrationOnly(ctx context.Context, name string) error {
	if _, ok := f.lookup(name); !ok {
		return fmt.Errorf("remove registration %q: %w", name, wsl.ErrNotRegistered)
	}
	f.deleteInstance(name)
	f.Mutations++
	return nil
}

func (f *FakeRegistry) Unregister(ctx context.Context, name string) error {
	path, ok := f.lookup(name)
	if !ok {
		return fmt.Errorf("unregister %q: %w", name, wsl.ErrNotRegistered)
	}
	os.Remove(path)
	f.deleteInstance(name)
	f.Mutations++
	return nil
}

func (f *FakeRegistry) ShutdownAll(ctx context.Context) error {
	for name := range f.Running {
		f.Running[name] = false
	}
	f.Shutdowns++
	return nil
}

func (f *FakeRegistry) Export(ctx context.Context, name, destPath string) error {
	if _, ok := f.lookup(name); !ok {
		return fmt.Errorf("export %q: %w", name, wsl.ErrNotRegistered)
	}
	// A plausible archive body so round-trip tests move real bytes.
	return os.WriteFile(destPath, []byte("archive:"+name), 0o644)
}

func (f *FakeRegistry) Import(ctx context.Context, name, destRoot, archivePath string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("import %q: %w", name, err)
	}
	if _, ok := f.lookup(name); ok {
		return fmt.Errorf("import %q: %w", name, wsl.ErrAlreadyRegistered)
	}
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return err
	}
	diskPath := filepath.Join(destRoot, config.DiskFileName)
	if err := os.WriteFile(diskPath, []byte("vhdx:"+name), 0o644); err != nil {
		return err
	}
	f.Instances[name] = diskPath
	f.Mutations++
	return nil
}

// lookup is case-insensitive, matching host behavior.
func (f *FakeRegistry) lookup(name string) (string, bool) {
	for n, p := range f.Instances {
		if strings.EqualFold(n, name) {
			return p, true
		}
	}
	return "", false
}

func (f *FakeRegistry) deleteInstance(name string) {
	for n := range f.Instances {
		if strings.EqualFold(n, name) {
			delete(f.Instances, n)
			delete(f.Running, n)
			return
		}
	}
}

var _ wsl.Registry = (*FakeRegistry)(nil)

// CreateDisk creates a small placeholder backing disk for layout, including
// parent directories.
func CreateDisk(t *testing.T, layout config.Layout) {
	t.Helper()
	if err := os.MkdirAll(layout.WSLDir(), 0o755); err != nil {
		t.Fatalf("create wsl dir: %v", err)
	}
	if err := os.WriteFile(layout.DiskPath(), []byte("vhdx"), 0o644); err != nil {
		t.Fatalf("create disk: %v", err)
	}
}

// CreateArchive creates a placeholder portable archive for layout.
func CreateArchive(t *testing.T, layout config.Layout) {
	t.Helper()
	if err := os.MkdirAll(layout.WSLDir(), 0o755); err != nil {
		t.Fatalf("create wsl dir: %v", err)
	}
	if err := os.WriteFile(layout.ArchivePath(), []byte("archive"), 0o644); err != nil {
		t.Fatalf("create archive: %v", err)
	}
}

// WriteState persists doc as layout's state document.
func WriteState(t *testing.T, layout config.Layout, doc *state.Document) {
	t.Helper()
	if err := state.NewStore(layout.StatePath()).Save(doc); err != nil {
		t.Fatalf("write state: %v", err)
	}
}
