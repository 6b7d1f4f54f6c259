package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Uninstall removes the managed instance. With keepData the registration
// metadata is dropped but the backing disk and state document stay on disk,
// ready to be re-imported later; otherwise registration, disk, and state are
// all removed.
func (e *Engine) Uninstall(ctx context.Context, identifier string, keepData bool) error {
	if err := e.reg.ShutdownAll(ctx); err != nil {
		return fmt.Errorf("uninstall %q: %w", identifier, err)
	}

	registered, err := e.reg.IsRegistered(ctx, identifier)
	if err != nil {
		return fmt.Errorf("uninstall %q: %w", identifier, err)
	}

	if keepData {
		if registered {
			if err := e.reg.RemoveRegistrationOnly(ctx, identifier); err != nil {
				return fmt.Errorf("uninstall %q: %w", identifier, err)
			}
		}
		log.Info().Str("identifier", identifier).Msg("registration removed, data kept")
		return nil
	}

	if registered {
		if err := e.reg.Unregister(ctx, identifier); err != nil {
			return fmt.Errorf("uninstall %q: %w", identifier, err)
		}
	}
	// The disk may survive unregistration when it was registered in place,
	// or exist without any registration at all.
	if err := os.Remove(e.layout.DiskPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("uninstall %q: remove disk: %w", identifier, err)
	}
	if err := e.store.Delete(); err != nil {
		return fmt.Errorf("uninstall %q: %w", identifier, err)
	}
	log.Info().Str("identifier", identifier).Msg("instance uninstalled")
	return nil
}
