//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package mem

// On platforms without mlockall, memory wiping still applies but pages
// may be swapped; report partial protection.
func lockMemoryPlatform() (ProtectionLevel, error) {
	return ProtectionPartial, nil
}

func unlockMemoryPlatform() error {
	return nil
}
