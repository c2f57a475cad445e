package feed

import (
	"fmt"
	"runtime"
)

// Platform identifies an OS/architecture pair.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// BinaryName returns the release asset name for this platform
// e.g., "actionstatus-darwin-arm64"
func (p Platform) BinaryName() string {
	return fmt.Sprintf("actionstatus-%s-%s", p.OS, p.Arch)
}

// IsSupported returns true if release assets are published for this platform
func (p Platform) IsSupported() bool {
	supportedPlatforms := map[string][]string{
		"darwin": {"amd64", "arm64"},
		"linux":  {"amd64", "arm64"},
	}

	for _, arch := range supportedPlatforms[p.OS] {
		if p.Arch == arch {
			return true
		}
	}

	return false
}
