package wsl

import "runtime"

// SupportedPlatform returns true if the current platform has a WSL host.
func SupportedPlatform() bool {
	return runtime.GOOS == "windows"
}

// NewRegistry creates a Registry backed by the current platform's WSL host.
// This function is implemented in platform-specific files using build tags.
// See registry_windows.go and registry_stub.go.
