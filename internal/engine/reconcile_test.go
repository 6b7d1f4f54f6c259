package engine

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/state"
	"github.com/wslforge/wslforge/internal/testutil"
)

func newEngineEnv(t *testing.T) (config.Layout, *state.Store, *testutil.FakeRegistry, *Engine) {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	store := state.NewStore(layout.StatePath())
	reg := testutil.NewFakeRegistry()
	eng := New(reg, store, layout, Options{Username: "dev", InstallMethod: state.MethodPackage})
	return layout, store, reg, eng
}

func detect(t *testing.T, store *state.Store, reg *testutil.FakeRegistry, layout config.Layout, id string) Observation {
	t.Helper()
	obs, err := NewDetector(store, reg, layout).Observe(context.Background(), id)
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	return obs
}

func TestReconcileNoInstallation(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Scenario != NoInstallation {
		t.Errorf("scenario = %s, want no-installation", report.Scenario)
	}
	if report.RegistryMutations != 0 {
		t.Errorf("mutations = %d, want 0", report.RegistryMutations)
	}
	if _, status, _ := store.Load(); status != state.Absent {
		t.Error("no state document should be created")
	}
}

func TestReconcileImportRawDisk(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Scenario != NeedsImport {
		t.Fatalf("scenario = %s, want needs-import", report.Scenario)
	}

	if registered, _ := reg.IsRegistered(context.Background(), "wslforge"); !registered {
		t.Error("instance should be registered after repair")
	}
	if backing, _ := reg.BackingPath(context.Background(), "wslforge"); backing != layout.DiskPath() {
		t.Errorf("backing path = %q, want %q", backing, layout.DiskPath())
	}
	if reg.Shutdowns == 0 {
		t.Error("repair should shut instances down before registry mutation")
	}

	doc, status, _ := store.Load()
	if status != state.Valid {
		t.Fatal("state document should exist after repair")
	}
	if doc.InstallRoot != layout.InstallRoot {
		t.Errorf("InstallRoot = %q, want %q", doc.InstallRoot, layout.InstallRoot)
	}
	if doc.Identifier != "wslforge" {
		t.Errorf("Identifier = %q, want wslforge", doc.Identifier)
	}
	if doc.ImportedAt.IsZero() {
		t.Error("ImportedAt should be stamped on import")
	}
}

func TestReconcileImportPrefersArchive(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)
	testutil.CreateArchive(t, layout)

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Scenario != NeedsImport {
		t.Fatalf("scenario = %s, want needs-import", report.Scenario)
	}

	if layout.ArchivePresent() {
		t.Error("archive should be deleted after successful import")
	}
	if registered, _ := reg.IsRegistered(context.Background(), "wslforge"); !registered {
		t.Error("instance should be registered after archive import")
	}
	if _, status, _ := store.Load(); status != state.Valid {
		t.Error("state document should be written after archive import")
	}
}

func TestReconcileImportAlreadyRegistered(t *testing.T) {
	// Registration correct, only the declaration missing: repair writes the
	// state document and performs zero registry mutations.
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)
	reg.Instances["wslforge"] = layout.DiskPath()

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.RegistryMutations != 0 {
		t.Errorf("mutations = %d, want 0", report.RegistryMutations)
	}
	if _, status, _ := store.Load(); status != state.Valid {
		t.Error("state document should be written")
	}
}

func TestReconcileRelocation(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	oldRoot := t.TempDir()
	oldLayout := config.NewLayout(oldRoot)

	testutil.CreateDisk(t, layout)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:    "wslforge",
		InstallRoot:   oldLayout.InstallRoot,
		LocalDataRoot: oldLayout.LocalDataRoot(),
		Username:      "dev",
	})
	reg.Instances["wslforge"] = oldLayout.DiskPath()

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Scenario != NeedsRelocationRepair {
		t.Fatalf("scenario = %s, want needs-relocation-repair", report.Scenario)
	}

	// Metadata-only removal plus in-place registration, never unregister.
	if report.RegistryMutations != 2 {
		t.Errorf("mutations = %d, want 2", report.RegistryMutations)
	}
	if backing, _ := reg.BackingPath(context.Background(), "wslforge"); backing != layout.DiskPath() {
		t.Errorf("backing path = %q, want %q", backing, layout.DiskPath())
	}
	if !layout.DiskPresent() {
		t.Error("backing disk must survive relocation repair")
	}

	doc, _, _ := store.Load()
	if doc.InstallRoot != layout.InstallRoot {
		t.Errorf("InstallRoot = %q, want %q", doc.InstallRoot, layout.InstallRoot)
	}
	if doc.LocalDataRoot != layout.LocalDataRoot() {
		t.Errorf("LocalDataRoot = %q, want %q", doc.LocalDataRoot, layout.LocalDataRoot())
	}
	if doc.Username != "dev" {
		t.Error("unrelated fields must survive relocation")
	}
}

func TestReconcileRelocationUnregistered(t *testing.T) {
	// Root moved and the old registration is gone entirely: repair skips
	// straight to in-place registration.
	layout, store, reg, eng := newEngineEnv(t)
	oldLayout := config.NewLayout(t.TempDir())

	testutil.CreateDisk(t, layout)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:  "wslforge",
		InstallRoot: oldLayout.InstallRoot,
	})

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.RegistryMutations != 1 {
		t.Errorf("mutations = %d, want 1 (register in place only)", report.RegistryMutations)
	}
	if backing, _ := reg.BackingPath(context.Background(), "wslforge"); backing != layout.DiskPath() {
		t.Errorf("backing path = %q, want %q", backing, layout.DiskPath())
	}
}

func TestReconcileIdempotent(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	oldLayout := config.NewLayout(t.TempDir())

	testutil.CreateDisk(t, layout)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:  "wslforge",
		InstallRoot: oldLayout.InstallRoot,
	})
	reg.Instances["wslforge"] = oldLayout.DiskPath()

	obs := detect(t, store, reg, layout, "wslforge")
	if _, err := eng.Reconcile(context.Background(), "wslforge", obs); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	mutationsAfterRepair := reg.Mutations

	// Second run observes the repaired installation.
	obs = detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if report.Scenario != AlreadyCorrect {
		t.Errorf("second scenario = %s, want already-correct", report.Scenario)
	}
	if reg.Mutations != mutationsAfterRepair {
		t.Errorf("second run performed %d extra registry mutations, want 0",
			reg.Mutations-mutationsAfterRepair)
	}
}

func TestReconcileImportIdempotent(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)

	obs := detect(t, store, reg, layout, "wslforge")
	if _, err := eng.Reconcile(context.Background(), "wslforge", obs); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	mutationsAfterRepair := reg.Mutations

	obs = detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if report.Scenario != AlreadyCorrect {
		t.Errorf("second scenario = %s, want already-correct", report.Scenario)
	}
	if reg.Mutations != mutationsAfterRepair {
		t.Error("repeated import repair must not mutate the registry")
	}
}

func TestReconcileCorrupted(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:  "wslforge",
		InstallRoot: layout.InstallRoot,
	})

	obs := detect(t, store, reg, layout, "wslforge")
	_, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, want ErrCorrupted", err)
	}
	if reg.Mutations != 0 {
		t.Errorf("mutations = %d, want 0 for corrupted installation", reg.Mutations)
	}
}

func TestRestoreFlowStampsImport(t *testing.T) {
	// Restoring over a correct installation leaves nothing for reconcile to
	// repair, so the import has to be recorded separately.
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:    "wslforge",
		InstallRoot:   layout.InstallRoot,
		LocalDataRoot: layout.LocalDataRoot(),
		Username:      "dev",
	})
	reg.Instances["wslforge"] = layout.DiskPath()

	archive, err := eng.Transfer().Export(context.Background(), "wslforge", t.TempDir(), true)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := eng.Transfer().Restore(context.Background(), "wslforge", archive); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Scenario != AlreadyCorrect {
		t.Fatalf("scenario = %s, want already-correct", report.Scenario)
	}
	if err := eng.RecordRestore("wslforge"); err != nil {
		t.Fatalf("RecordRestore failed: %v", err)
	}

	doc, status, _ := store.Load()
	if status != state.Valid {
		t.Fatal("state document should exist after restore")
	}
	if doc.ImportedAt.IsZero() {
		t.Error("ImportedAt should be stamped after restore")
	}
	if doc.Username != "dev" {
		t.Error("unrelated fields must survive the restore rewrite")
	}
}

func TestRecordRestoreWithoutState(t *testing.T) {
	// Restore onto a machine that never had an installation: the record
	// creates the document from scratch.
	layout, store, _, eng := newEngineEnv(t)

	if err := eng.RecordRestore("wslforge"); err != nil {
		t.Fatalf("RecordRestore failed: %v", err)
	}
	doc, status, _ := store.Load()
	if status != state.Valid {
		t.Fatal("state document should be created")
	}
	if doc.Identifier != "wslforge" {
		t.Errorf("Identifier = %q, want wslforge", doc.Identifier)
	}
	if doc.InstallRoot != layout.InstallRoot {
		t.Errorf("InstallRoot = %q, want %q", doc.InstallRoot, layout.InstallRoot)
	}
	if doc.ImportedAt.IsZero() || doc.InstalledAt.IsZero() {
		t.Error("ImportedAt and InstalledAt should both be stamped")
	}
}

func TestReconcileImportRegisterFailure(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)
	reg.FailRegister = errors.New("access denied")

	obs := detect(t, store, reg, layout, "wslforge")
	_, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err == nil {
		t.Fatal("Reconcile should surface the registration failure")
	}
	if reg.Mutations != 0 {
		t.Errorf("mutations = %d, want 0 after failed registration", reg.Mutations)
	}
	if _, status, _ := store.Load(); status != state.Absent {
		t.Error("no state document should be written when registration fails")
	}
}

func TestReconcileAlreadyCorrectNoStateDrift(t *testing.T) {
	layout, store, reg, eng := newEngineEnv(t)
	testutil.CreateDisk(t, layout)
	testutil.WriteState(t, layout, &state.Document{
		Identifier:    "wslforge",
		InstallRoot:   layout.InstallRoot,
		LocalDataRoot: layout.LocalDataRoot(),
	})
	reg.Instances["wslforge"] = layout.DiskPath()

	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}

	obs := detect(t, store, reg, layout, "wslforge")
	report, err := eng.Reconcile(context.Background(), "wslforge", obs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.RegistryMutations != 0 || report.StateRewritten {
		t.Errorf("already-correct repair should be a no-op, got %+v", report)
	}

	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("state file should be untouched when nothing drifted")
	}
}
