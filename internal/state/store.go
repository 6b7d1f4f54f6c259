package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the outcome of loading the state document. Distinguishing a
// missing file from an unparsable one lets drift classification tell "never
// installed" apart from "corrupted state file".
type Status int

const (
	Absent    Status = iota // no state file on disk
	Malformed               // file exists but is not valid JSON
	Valid                   // document loaded
)

func (s Status) String() string {
	switch s {
	case Absent:
		return "absent"
	case Malformed:
		return "malformed"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// Store manages the state document file.
type Store struct {
	path string
}

// NewStore creates a store for the state document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state document. A missing file yields (nil, Absent, nil);
// an unparsable file yields (nil, Malformed, nil) and is left untouched on
// disk. Only I/O failures other than non-existence return an error.
func (s *Store) Load() (*Document, Status, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, Absent, nil
	}
	if err != nil {
		return nil, Absent, fmt.Errorf("read state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("state file is not valid JSON, treating as malformed")
		return nil, Malformed, nil
	}
	return &doc, Valid, nil
}

// Save writes the document atomically, stamping UpdatedAt. The previous file
// content survives any failure before the final rename, so a malformed
// original is never clobbered by a half-written replacement.
func (s *Store) Save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	doc.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Delete removes the state file. Missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}
