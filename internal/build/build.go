// Package build holds build-time information stamped into the keg binary.
package build

// Version is the keg release version reported by `keg version`.
// It defaults to "dev" and is overwritten by linker flags in release builds.
var Version = "dev"
