// Package misc holds small process-wide helpers that do not deserve a
// package of their own: build identification used in logs and debug
// reports.
package misc

import "runtime/debug"

const appName = "ereader"

// GetAppName returns the program name used for default file/dir naming.
func GetAppName() string {
	return appName
}

// GetVersion returns the module version embedded by the Go toolchain at
// build time, or "(devel)" when built without one.
func GetVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// GetGitHash returns the vcs.revision build setting, if the binary was
// built from a checked-out repository.
func GetGitHash() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
