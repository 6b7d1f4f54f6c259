package cli

import (
	"context"
	"fmt"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/engine"
	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// session bundles everything a command needs: the resolved layout, the state
// store, the host registry, and the identifier arbiter's result.
type session struct {
	layout config.Layout
	store  *state.Store
	reg    wsl.Registry
	engine *engine.Engine

	// identifier is the arbiter's resolution for this installation.
	identifier string
}

// newSession wires a command session against the real WSL host and resolves
// the instance identifier.
func newSession(ctx context.Context) (*session, error) {
	reg, err := wsl.NewRegistry()
	if err != nil {
		return nil, err
	}
	return newSessionWith(ctx, reg)
}

func newSessionWith(ctx context.Context, reg wsl.Registry) (*session, error) {
	cfg := config.Global
	layout := config.NewLayout(currentRoot)
	store := state.NewStore(layout.StatePath())

	arbiter := engine.NewArbiter(store, reg, cfg.NameAttempts)
	identifier, err := arbiter.Resolve(ctx, cfg.BaseName, layout.DiskPath())
	if err != nil {
		return nil, fmt.Errorf("resolve instance name: %w", err)
	}

	eng := engine.New(reg, store, layout, engine.Options{
		Username:      cfg.Username,
		InstallMethod: cfg.InstallMethod,
	})

	return &session{
		layout:     layout,
		store:      store,
		reg:        reg,
		engine:     eng,
		identifier: identifier,
	}, nil
}

// detect classifies the current drift scenario for the session.
func (s *session) detect(ctx context.Context) (engine.Scenario, engine.Observation, error) {
	det := engine.NewDetector(s.store, s.reg, s.layout)
	return det.Detect(ctx, s.identifier)
}
