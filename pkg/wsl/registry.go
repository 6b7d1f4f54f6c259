// Package wsl provides a unified interface to the host's WSL registration
// registry: the subsystem that maps instance names to backing-disk locations
// and running state. The Windows implementation shells out to wsl.exe and
// edits Lxss registration metadata directly; other platforms get a stub.
package wsl

import (
	"context"
	"fmt"
	"strings"
)

// Instance is one registered WSL environment as reported by the host.
type Instance struct {
	Name    string
	Running bool
	Default bool
}

// Registry is the main interface for host registration operations.
// Reconciliation logic depends only on this interface so it can be exercised
// against an in-memory fake without a real WSL host.
type Registry interface {
	// List enumerates registered instances with their running state.
	List(ctx context.Context) ([]Instance, error)

	// IsRegistered reports whether name is a registered instance.
	IsRegistered(ctx context.Context, name string) (bool, error)

	// BackingPath returns the backing-disk path the host has recorded for
	// name, or "" if name is not registered.
	BackingPath(ctx context.Context, name string) (string, error)

	// RegisterInPlace registers an existing backing-disk file under name
	// without copying data. Fails if the file is locked by a running
	// instance; callers shut down first.
	RegisterInPlace(ctx context.Context, name, diskPath string) error

	// RemoveRegistrationOnly deletes the registration metadata for name but
	// leaves the backing-disk file untouched. Distinct from Unregister,
	// which deletes the disk; relocation repair must never lose data.
	RemoveRegistrationOnly(ctx context.Context, name string) error

	// Unregister removes the registration AND deletes its backing disk.
	// Only explicit uninstall uses this.
	Unregister(ctx context.Context, name string) error

	// ShutdownAll stops every running instance, releasing file locks.
	// Used as a coarse host-enforced lock before registry mutation.
	ShutdownAll(ctx context.Context) error

	// Export serializes the instance's full filesystem to a single portable
	// archive at destPath.
	Export(ctx context.Context, name, destPath string) error

	// Import deserializes archivePath into a new registration named name,
	// with its backing disk created under destRoot.
	Import(ctx context.Context, name, destRoot, archivePath string) error
}

// CommandResult captures the outcome of one host-tool invocation. On
// failure it travels inside a CommandError so callers that want to react
// (retry, fallback) recover it with errors.As rather than parsing message
// strings.
type CommandResult struct {
	Args     []string
	ExitCode int
	Output   string
}

// Success reports whether the tool exited zero.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandError is a failed host-tool invocation carrying its CommandResult.
type CommandError struct {
	Result *CommandResult
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("wsl %s: %s (exit %d)",
		strings.Join(e.Result.Args, " "), e.Result.Output, e.Result.ExitCode)
}
