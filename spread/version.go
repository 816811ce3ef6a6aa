package spread

import (
	"golang.org/x/mod/semver"

	internal "github.com/kolkov/spreadcall/internal/spread/api"
)

// Version information for spreadcall.
const (
	// Version is the current version of the engine.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the engine.
type Info struct {
	// Version is the engine version string.
	Version string

	// Strategy names the specialization strategy.
	Strategy string

	// Enabled indicates whether speculation is active.
	Enabled bool
}

// GetInfo returns information about the engine.
//
// Example:
//
//	info := spread.GetInfo()
//	fmt.Printf("spreadcall %s (%s)\n", info.Version, info.Strategy)
func GetInfo() Info {
	return Info{
		Version:  Version,
		Strategy: "guarded dense-array fast path",
		Enabled:  internal.Enabled(),
	}
}

// Canonical returns Version in canonical semver form with a leading "v",
// or "" if Version is malformed.
func Canonical() string {
	return semver.Canonical("v" + Version)
}

// Compatible reports whether a component built against version v can run
// against this engine. Versions must share the major number; during major
// zero they must also share the minor number.
func Compatible(v string) bool {
	if v == "" || v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	self := Canonical()
	if semver.Major(v) != semver.Major(self) {
		return false
	}
	if semver.Major(self) == "v0" {
		return semver.MajorMinor(v) == semver.MajorMinor(self)
	}
	return true
}
