// Package version provides the build version information for the asyncgitd
// binary, injected via ldflags at build time.
package version

// Version is the release version.
var Version = "dev"

// Commit is the git commit hash the binary was built from.
var Commit = "none"

// Date is the build date.
var Date = "unknown"
