package engine

import (
	"context"
	"fmt"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/pkg/wsl"
)

// Scenario classifies the agreement between the state document, the backing
// disk, and the host registration.
type Scenario int

const (
	// NoInstallation: no state document and no backing disk.
	NoInstallation Scenario = iota
	// NeedsImport: disk or archive present at the current root but the
	// installation is not correctly registered or declared.
	NeedsImport
	// AlreadyCorrect: registration, disk location, and declared root agree.
	AlreadyCorrect
	// NeedsRelocationRepair: the installation root moved; the disk is here
	// but the declaration or registration still points elsewhere.
	NeedsRelocationRepair
	// Corrupted: a state document exists but the backing disk is gone.
	Corrupted
)

func (s Scenario) String() string {
	switch s {
	case NoInstallation:
		return "no-installation"
	case NeedsImport:
		return "needs-import"
	case AlreadyCorrect:
		return "already-correct"
	case NeedsRelocationRepair:
		return "needs-relocation-repair"
	case Corrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

// Observation is everything classification needs, gathered in one pass so
// the decision is made against a consistent snapshot.
type Observation struct {
	StateStatus state.Status
	Doc         *state.Document // nil unless StateStatus is Valid

	DiskPresent    bool
	ArchivePresent bool

	Registered  bool
	BackingPath string // registry-reported, "" when unregistered

	ExpectedDisk string
	CurrentRoot  string
}

// registeredCorrectly reports whether the registry already points the
// identifier at the expected disk.
func (o Observation) registeredCorrectly() bool {
	return o.Registered && samePath(o.BackingPath, o.ExpectedDisk)
}

// stateRootMatches reports whether the declared installation root is the
// current one. Only meaningful for a valid document.
func (o Observation) stateRootMatches() bool {
	return o.StateStatus == state.Valid && samePath(o.Doc.InstallRoot, o.CurrentRoot)
}

// Detector gathers observations and classifies them.
type Detector struct {
	store  *state.Store
	reg    wsl.Registry
	layout config.Layout
}

// NewDetector creates a drift detector.
func NewDetector(store *state.Store, reg wsl.Registry, layout config.Layout) *Detector {
	return &Detector{store: store, reg: reg, layout: layout}
}

// Observe snapshots the three sources of truth for identifier.
func (d *Detector) Observe(ctx context.Context, identifier string) (Observation, error) {
	obs := Observation{
		DiskPresent:    d.layout.DiskPresent(),
		ArchivePresent: d.layout.ArchivePresent(),
		ExpectedDisk:   d.layout.DiskPath(),
		CurrentRoot:    d.layout.InstallRoot,
	}

	doc, status, err := d.store.Load()
	if err != nil {
		return obs, fmt.Errorf("observe state: %w", err)
	}
	obs.StateStatus = status
	obs.Doc = doc

	registered, err := d.reg.IsRegistered(ctx, identifier)
	if err != nil {
		return obs, fmt.Errorf("observe registration: %w", err)
	}
	obs.Registered = registered
	if registered {
		backing, err := d.reg.BackingPath(ctx, identifier)
		if err != nil {
			return obs, fmt.Errorf("observe backing path: %w", err)
		}
		obs.BackingPath = backing
	}

	return obs, nil
}

// Detect observes and classifies in one call.
func (d *Detector) Detect(ctx context.Context, identifier string) (Scenario, Observation, error) {
	obs, err := d.Observe(ctx, identifier)
	if err != nil {
		return NoInstallation, obs, err
	}
	return Classify(obs), obs, nil
}

// Classify maps an observation to exactly one scenario. The checks are
// ordered so the mapping is total and mutually exclusive:
//
//  1. Nothing on disk: NoInstallation when no state document exists either,
//     Corrupted when one does (including a malformed one - the installation
//     left a trace but its data is gone).
//  2. Registration and declaration both agree with the current root:
//     AlreadyCorrect.
//  3. A valid declaration whose root moved, or a registration pointing at
//     the wrong disk, with data present here: NeedsRelocationRepair.
//  4. Any other disk or archive presence: NeedsImport.
func Classify(obs Observation) Scenario {
	statePresent := obs.StateStatus != state.Absent

	if !obs.DiskPresent && !obs.ArchivePresent {
		if statePresent {
			return Corrupted
		}
		return NoInstallation
	}

	if obs.registeredCorrectly() && obs.stateRootMatches() {
		return AlreadyCorrect
	}

	if obs.DiskPresent && obs.StateStatus == state.Valid {
		if !obs.stateRootMatches() {
			return NeedsRelocationRepair
		}
		if obs.Registered && !obs.registeredCorrectly() {
			return NeedsRelocationRepair
		}
	}

	return NeedsImport
}

func samePath(a, b string) bool {
	return config.SamePath(a, b)
}
