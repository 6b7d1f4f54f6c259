package wsl

import "errors"

// Platform errors
var (
	ErrUnsupportedPlatform = errors.New("wsl: platform not supported")
	ErrToolNotFound        = errors.New("wsl: wsl.exe not found on PATH")
)

// Registration errors
var (
	ErrNotRegistered     = errors.New("wsl: instance not registered")
	ErrAlreadyRegistered = errors.New("wsl: instance already registered")
)
