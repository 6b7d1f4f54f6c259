package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// Options carries install metadata written into a freshly created state
// document.
type Options struct {
	Username      string
	InstallMethod string
}

// Report describes what a reconciliation run did. Tests assert on the
// mutation count to verify idempotence.
type Report struct {
	Scenario          Scenario
	RegistryMutations int
	StateRewritten    bool
	Actions           []string
}

func (r *Report) act(format string, args ...any) {
	r.Actions = append(r.Actions, fmt.Sprintf(format, args...))
}

// Engine performs the smallest set of operations that restores agreement
// between the state document, the registration registry, and the backing
// disk. Every branch is safe to re-run; a repeated call on an already
// repaired installation performs zero registry mutations.
type Engine struct {
	reg      wsl.Registry
	store    *state.Store
	layout   config.Layout
	transfer *Transfer
	opts     Options
}

// New creates a reconciliation engine.
func New(reg wsl.Registry, store *state.Store, layout config.Layout, opts Options) *Engine {
	return &Engine{
		reg:      reg,
		store:    store,
		layout:   layout,
		transfer: NewTransfer(reg, layout),
		opts:     opts,
	}
}

// Reconcile repairs the scenario classified from obs for identifier.
func (e *Engine) Reconcile(ctx context.Context, identifier string, obs Observation) (*Report, error) {
	scenario := Classify(obs)
	report := &Report{Scenario: scenario}

	log.Info().Str("scenario", scenario.String()).Str("identifier", identifier).Msg("reconciling")

	switch scenario {
	case NoInstallation:
		report.act("no installation found, nothing to reconcile")
		return report, nil

	case AlreadyCorrect:
		return report, e.refreshState(identifier, obs, report)

	case NeedsImport:
		return report, e.repairImport(ctx, identifier, obs, report)

	case NeedsRelocationRepair:
		return report, e.repairRelocation(ctx, identifier, obs, report)

	case Corrupted:
		return report, fmt.Errorf("%w (state file %s, expected disk %s)",
			ErrCorrupted, e.store.Path(), obs.ExpectedDisk)

	default:
		return report, fmt.Errorf("reconcile: unhandled scenario %s", scenario)
	}
}

// refreshState rewrites the document only if a derived path drifted.
// Defensive no-op otherwise; never touches the registry.
func (e *Engine) refreshState(identifier string, obs Observation, report *Report) error {
	doc := obs.Doc
	rel := ComputeRelocation(doc, e.layout)
	if rel.Empty() && doc.Identifier == identifier {
		report.act("state document already current")
		return nil
	}
	rel.Apply(doc)
	doc.Identifier = identifier
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
	}
	report.StateRewritten = true
	report.act("state document refreshed")
	return nil
}

// repairImport realizes the registration from local data (archive preferred
// over raw disk) and declares the current root.
func (e *Engine) repairImport(ctx context.Context, identifier string, obs Observation, report *Report) error {
	imported := false
	if obs.registeredCorrectly() {
		// Registration is already right; only the declaration is missing or
		// stale. Zero registry mutations keeps the repair idempotent.
		report.act("registration already correct, skipping import")
	} else {
		usedArchive, err := e.transfer.ImportLocal(ctx, identifier)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
		}
		report.RegistryMutations++
		imported = true
		if usedArchive {
			report.act("imported portable archive as %q", identifier)
		} else {
			report.act("registered backing disk in place as %q", identifier)
		}
	}

	doc := obs.Doc
	if doc == nil {
		doc = &state.Document{
			InstallMethod: e.opts.InstallMethod,
			Username:      e.opts.Username,
			InstalledAt:   time.Now(),
		}
	}
	doc.Identifier = identifier
	doc.InstallRoot = e.layout.InstallRoot
	doc.LocalDataRoot = e.layout.LocalDataRoot()
	if imported {
		doc.ImportedAt = time.Now()
	}
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
	}
	report.StateRewritten = true
	report.act("state document written for root %s", e.layout.InstallRoot)
	return nil
}

// repairRelocation re-points the registration at the disk's new location and
// rewrites every derived path in the document. Never uses the destructive
// unregister; the backing disk is user data.
func (e *Engine) repairRelocation(ctx context.Context, identifier string, obs Observation, report *Report) error {
	if !obs.DiskPresent {
		return fmt.Errorf("reconcile %s: %w (expected %s)", report.Scenario, ErrMissingDisk, obs.ExpectedDisk)
	}

	switch {
	case obs.registeredCorrectly():
		report.act("registration already points at %s", obs.ExpectedDisk)

	case obs.Registered:
		// Registered at the old location. Release file locks, drop the
		// metadata only, re-register the disk where it lives now.
		if err := e.reg.ShutdownAll(ctx); err != nil {
			return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
		}
		if err := e.reg.RemoveRegistrationOnly(ctx, identifier); err != nil {
			return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
		}
		report.RegistryMutations++
		report.act("removed stale registration metadata for %q", identifier)
		if err := e.reg.RegisterInPlace(ctx, identifier, obs.ExpectedDisk); err != nil {
			return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
		}
		report.RegistryMutations++
		report.act("re-registered %q at %s", identifier, obs.ExpectedDisk)

	default:
		if err := e.reg.RegisterInPlace(ctx, identifier, obs.ExpectedDisk); err != nil {
			return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
		}
		report.RegistryMutations++
		report.act("registered %q at %s", identifier, obs.ExpectedDisk)
	}

	doc := obs.Doc
	rel := ComputeRelocation(doc, e.layout)
	for _, c := range rel.Changes {
		log.Info().Str("field", c.Field).Str("old", c.Old).Str("new", c.New).Msg("relocating path")
	}
	rel.Apply(doc)
	doc.Identifier = identifier
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("reconcile %s: %w", report.Scenario, err)
	}
	report.StateRewritten = true
	report.act("state document relocated to %s", e.layout.InstallRoot)
	return nil
}

// RecordRestore rewrites the state document after a backup restore.
// Reconciliation alone would not: the restored registration already points
// at the right place, so its repair path never learns an import happened.
func (e *Engine) RecordRestore(identifier string) error {
	doc, status, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("record restore: %w", err)
	}
	if status != state.Valid {
		doc = &state.Document{
			InstallMethod: e.opts.InstallMethod,
			Username:      e.opts.Username,
			InstalledAt:   time.Now(),
		}
	}
	doc.Identifier = identifier
	doc.InstallRoot = e.layout.InstallRoot
	doc.LocalDataRoot = e.layout.LocalDataRoot()
	doc.ImportedAt = time.Now()
	if err := e.store.Save(doc); err != nil {
		return fmt.Errorf("record restore: %w", err)
	}
	return nil
}

// Transfer exposes the engine's portability helper for the backup and
// restore commands.
func (e *Engine) Transfer() *Transfer {
	return e.transfer
}
