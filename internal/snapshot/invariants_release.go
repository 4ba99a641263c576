//go:build !debug

package snapshot

// assertInvariants is a no-op in release builds.
func assertInvariants(_ *Snapshot) {}
