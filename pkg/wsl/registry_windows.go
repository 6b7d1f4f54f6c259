//go:build windows

package wsl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	winreg "golang.org/x/sys/windows/registry"
)

// lxssKeyPath is the registry hive where Windows records WSL registrations.
// Each subkey is a GUID with DistributionName and BasePath values.
const lxssKeyPath = `Software\Microsoft\Windows\CurrentVersion\Lxss`

// diskFileName is the backing-disk file WSL creates inside BasePath.
const diskFileName = "ext4.vhdx"

type hostRegistry struct {
	exe string
}

// NewRegistry creates a Registry backed by wsl.exe and the Lxss hive.
func NewRegistry() (Registry, error) {
	exe, err := exec.LookPath("wsl.exe")
	if err != nil {
		return nil, ErrToolNotFound
	}
	return &hostRegistry{exe: exe}, nil
}

// run invokes wsl.exe and returns the decoded output. A non-zero exit is
// returned as a CommandError so callers can recover the exit code and
// output through errors.As.
func (h *hostRegistry) run(ctx context.Context, args ...string) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, h.exe, args...)
	raw, err := cmd.CombinedOutput()
	res := &CommandResult{
		Args:   args,
		Output: strings.TrimSpace(decodeConsoleOutput(raw)),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		return res, &CommandError{Result: res}
	}
	return res, nil
}

func (h *hostRegistry) List(ctx context.Context) ([]Instance, error) {
	res, err := h.run(ctx, "--list", "--verbose")
	if err != nil {
		// wsl --list exits non-zero when nothing is registered at all.
		if strings.Contains(res.Output, "no installed distributions") {
			return nil, nil
		}
		return nil, err
	}
	return parseList(res.Output), nil
}

func (h *hostRegistry) IsRegistered(ctx context.Context, name string) (bool, error) {
	instances, err := h.List(ctx)
	if err != nil {
		return false, err
	}
	for _, inst := range instances {
		if strings.EqualFold(inst.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// BackingPath reads BasePath from the instance's Lxss subkey and appends the
// backing-disk file name. wsl.exe has no query for this; the hive is the
// only source.
func (h *hostRegistry) BackingPath(ctx context.Context, name string) (string, error) {
	key, _, found, err := h.findLxssKey(name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	defer key.Close()

	base, _, err := key.GetStringValue("BasePath")
	if err != nil {
		return "", fmt.Errorf("read BasePath for %q: %w", name, err)
	}
	// Older builds prefix BasePath with \\?\.
	base = strings.TrimPrefix(base, `\\?\`)
	return filepath.Join(base, diskFileName), nil
}

func (h *hostRegistry) RegisterInPlace(ctx context.Context, name, diskPath string) error {
	_, err := h.run(ctx, "--import-in-place", name, diskPath)
	if err != nil {
		return fmt.Errorf("register %q in place at %s: %w", name, diskPath, err)
	}
	return nil
}

// RemoveRegistrationOnly deletes the instance's Lxss subkey so the host
// forgets the registration while the vhdx stays on disk. wsl --unregister
// would delete the disk, which relocation repair must never do.
func (h *hostRegistry) RemoveRegistrationOnly(ctx context.Context, name string) error {
	key, guid, found, err := h.findLxssKey(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("remove registration for %q: %w", name, ErrNotRegistered)
	}
	key.Close()
	if err := winreg.DeleteKey(winreg.CURRENT_USER, lxssKeyPath+`\`+guid); err != nil {
		return fmt.Errorf("delete registration key for %q: %w", name, err)
	}
	log.Debug().Str("instance", name).Str("key", guid).Msg("registration metadata removed, backing disk kept")
	return nil
}

func (h *hostRegistry) Unregister(ctx context.Context, name string) error {
	_, err := h.run(ctx, "--unregister", name)
	if err != nil {
		return fmt.Errorf("unregister %q: %w", name, err)
	}
	return nil
}

func (h *hostRegistry) ShutdownAll(ctx context.Context) error {
	_, err := h.run(ctx, "--shutdown")
	if err != nil {
		return fmt.Errorf("shutdown instances: %w", err)
	}
	return nil
}

func (h *hostRegistry) Export(ctx context.Context, name, destPath string) error {
	_, err := h.run(ctx, "--export", name, destPath)
	if err != nil {
		return fmt.Errorf("export %q to %s: %w", name, destPath, err)
	}
	return nil
}

func (h *hostRegistry) Import(ctx context.Context, name, destRoot, archivePath string) error {
	_, err := h.run(ctx, "--import", name, destRoot, archivePath, "--version", "2")
	if err != nil {
		return fmt.Errorf("import %q from %s: %w", name, archivePath, err)
	}
	return nil
}

// findLxssKey locates the Lxss subkey whose DistributionName matches name.
// found is false when the instance is not registered. The returned key is
// open and must be closed by the caller when found.
func (h *hostRegistry) findLxssKey(name string) (key winreg.Key, guid string, found bool, err error) {
	root, err := winreg.OpenKey(winreg.CURRENT_USER, lxssKeyPath, winreg.READ)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("open Lxss hive: %w", err)
	}
	defer root.Close()

	guids, err := root.ReadSubKeyNames(-1)
	if err != nil {
		return 0, "", false, fmt.Errorf("enumerate Lxss hive: %w", err)
	}

	for _, g := range guids {
		k, err := winreg.OpenKey(winreg.CURRENT_USER, lxssKeyPath+`\`+g, winreg.READ)
		if err != nil {
			continue
		}
		distName, _, err := k.GetStringValue("DistributionName")
		if err != nil {
			k.Close()
			continue
		}
		if strings.EqualFold(distName, name) {
			return k, g, true, nil
		}
		k.Close()
	}
	return 0, "", false, nil
}
