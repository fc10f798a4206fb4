// Package version contains the build version of revlistener.
package version

import "runtime/debug"

// version is set by the linker:
//
//	go build -ldflags "-X github.com/ameshkov/revlistener/internal/version.version=v1.0.0"
var version = ""

// Version returns the version of the program.  When it was not set at build
// time, the main module version from the build info is used.
func Version() (v string) {
	if version != "" {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "dev"
	}

	return info.Main.Version
}
