//go:build !windows

package wsl

// NewRegistry returns an error on platforms without a WSL host.
func NewRegistry() (Registry, error) {
	return nil, ErrUnsupportedPlatform
}
