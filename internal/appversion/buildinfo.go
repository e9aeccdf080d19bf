// Package appversion provides build-time version information for the orbit
// binaries.
package appversion

// version is set at build time via -ldflags:
//
//	go build -ldflags "-X orbit/internal/appversion.version=v1.2.3" ./cmd/orbit
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the current version.
func String() string {
	return version
}
