// Package state persists the declaration of what is currently installed:
// the resolved instance identifier, the installation root, derived paths,
// and install metadata. The file is a single JSON object; fields written by
// other tools are preserved verbatim across rewrites.
package state

import (
	"encoding/json"
	"time"
)

// Install methods recorded in the state document.
const (
	MethodPackage = "package" // package-manager install
	MethodSource  = "source"  // source checkout
	MethodCopy    = "copy"    // local copy from another installation
)

// Document is the persisted installation declaration.
type Document struct {
	// Identifier is the host registration name of the instance.
	Identifier string `json:"identifier"`

	// InstallRoot is the directory the installation lives under.
	InstallRoot string `json:"install_root"`

	// LocalDataRoot holds the backing disk and state file.
	LocalDataRoot string `json:"local_data_root"`

	// InstallMethod records how the installation was produced.
	InstallMethod string `json:"install_method"`

	// Username is the linux user inside the environment.
	Username string `json:"username"`

	InstalledAt time.Time `json:"installed_at,omitempty"`
	ImportedAt  time.Time `json:"imported_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`

	// AppInstalled marks that the main application is present in the guest.
	AppInstalled bool `json:"app_installed"`

	// extra carries fields not modeled by this schema so a rewrite never
	// loses them.
	extra map[string]json.RawMessage
}

// knownKeys are the JSON keys owned by this schema.
var knownKeys = map[string]bool{
	"identifier":      true,
	"install_root":    true,
	"local_data_root": true,
	"install_method":  true,
	"username":        true,
	"installed_at":    true,
	"imported_at":     true,
	"updated_at":      true,
	"app_installed":   true,
}

// docAlias avoids recursing into the custom marshalers.
type docAlias Document

// UnmarshalJSON decodes the modeled fields and stashes everything else.
func (d *Document) UnmarshalJSON(data []byte) error {
	var alias docAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownKeys[key] {
			delete(raw, key)
		}
	}

	*d = Document(alias)
	if len(raw) > 0 {
		d.extra = raw
	}
	return nil
}

// MarshalJSON emits the modeled fields merged with the preserved ones.
func (d Document) MarshalJSON() ([]byte, error) {
	modeled, err := json.Marshal(docAlias(d))
	if err != nil {
		return nil, err
	}
	if len(d.extra) == 0 {
		return modeled, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(modeled, &merged); err != nil {
		return nil, err
	}
	for key, val := range d.extra {
		merged[key] = val
	}
	return json.Marshal(merged)
}

// ExtraField returns a preserved unmodeled field, if present.
func (d *Document) ExtraField(key string) (json.RawMessage, bool) {
	val, ok := d.extra[key]
	return val, ok
}
