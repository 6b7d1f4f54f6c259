// Package engine tracks, names, and reconciles the lifecycle of the managed
// WSL instance. It infers truth from three independently-mutable sources
// (state document, host registration registry, backing-disk file),
// classifies the situation into a fixed scenario set, and performs the
// minimal idempotent repair.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// Arbiter resolves a unique instance identifier for a base name and the
// expected backing-disk path, avoiding collisions with instances that belong
// to other installations. Read-only; the result is threaded through
// subsequent calls rather than cached globally.
type Arbiter struct {
	store       *state.Store
	reg         wsl.Registry
	maxAttempts int
}

// NewArbiter creates an arbiter. maxAttempts bounds suffix probing.
func NewArbiter(store *state.Store, reg wsl.Registry, maxAttempts int) *Arbiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Arbiter{store: store, reg: reg, maxAttempts: maxAttempts}
}

// Resolve returns the identifier for this installation.
//
// A state document naming an identifier whose backing disk exists at the
// expected path wins immediately: that instance is ours regardless of its
// current registration status (repair re-registers if needed). Otherwise
// candidates base, base_1, base_2, ... are probed: an unregistered candidate
// is a fresh slot, a candidate registered at the expected path is already
// correct, anything else belongs to another installation.
func (a *Arbiter) Resolve(ctx context.Context, base, expectedDisk string) (string, error) {
	doc, status, err := a.store.Load()
	if err != nil {
		return "", fmt.Errorf("resolve name: %w", err)
	}
	if status == state.Valid && doc.Identifier != "" {
		if _, err := os.Stat(expectedDisk); err == nil {
			log.Debug().Str("identifier", doc.Identifier).Msg("identifier taken from state document")
			return doc.Identifier, nil
		}
	}

	for i := 0; i < a.maxAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}

		registered, err := a.reg.IsRegistered(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe name %q: %w", candidate, err)
		}
		if !registered {
			return candidate, nil
		}

		backing, err := a.reg.BackingPath(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe name %q: %w", candidate, err)
		}
		if samePath(backing, expectedDisk) {
			return candidate, nil
		}
		log.Debug().Str("candidate", candidate).Str("backing", backing).Msg("name taken by another installation")
	}

	return "", fmt.Errorf("%w (base %q, %d attempts)", ErrNameExhausted, base, a.maxAttempts)
}
