package engine

import "errors"

// Fatal configuration errors. These abort the current operation; no repair
// is attempted past what already completed.
var (
	// ErrNameExhausted means the arbiter hit its attempt ceiling without
	// finding a usable identifier.
	ErrNameExhausted = errors.New("engine: no free instance name within attempt limit")

	// ErrCorrupted means a state document exists but neither a backing disk
	// nor a registration does; a fresh install is required.
	ErrCorrupted = errors.New("engine: installation is corrupted, backing disk is gone")

	// ErrMissingDisk means relocation repair found no backing disk at the
	// current root.
	ErrMissingDisk = errors.New("engine: backing disk missing, cannot repair relocation")
)
