package engine

import (
	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/state"
)

// FieldChange records one derived path moving from Old to New.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Relocation is the computed diff between the paths a document declares and
// the paths derived from the current installation root.
type Relocation struct {
	Changes []FieldChange
}

// ComputeRelocation diffs every derived path in doc against layout.
// Preserved unmodeled fields are opaque and are not rewritten.
func ComputeRelocation(doc *state.Document, layout config.Layout) Relocation {
	var r Relocation

	if !config.SamePath(doc.InstallRoot, layout.InstallRoot) {
		r.Changes = append(r.Changes, FieldChange{
			Field: "install_root",
			Old:   doc.InstallRoot,
			New:   layout.InstallRoot,
		})
	}
	if !config.SamePath(doc.LocalDataRoot, layout.LocalDataRoot()) {
		r.Changes = append(r.Changes, FieldChange{
			Field: "local_data_root",
			Old:   doc.LocalDataRoot,
			New:   layout.LocalDataRoot(),
		})
	}
	return r
}

// Empty reports whether no path drifted.
func (r Relocation) Empty() bool {
	return len(r.Changes) == 0
}

// Apply rewrites the drifted fields on doc.
func (r Relocation) Apply(doc *state.Document) {
	for _, c := range r.Changes {
		switch c.Field {
		case "install_root":
			doc.InstallRoot = c.New
		case "local_data_root":
			doc.LocalDataRoot = c.New
		}
	}
}
