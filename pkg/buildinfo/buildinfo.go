// Package buildinfo exposes the version identity baked into the binary.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// BinaryVersion is stamped by the release build via -ldflags; "dev" for
// local builds.
var BinaryVersion = "dev"

// ModuleVersion returns the module version recorded by the Go toolchain,
// or "" when no build info is embedded.
func ModuleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return info.Main.Version
}

// Platform returns the os/arch pair the binary was built for.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
