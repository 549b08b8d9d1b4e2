package signet

import "southwinds.dev/signet/audit"

// Options configures a Connector.
type Options struct {
	// Audit configures the audit logger built by New. Nil or disabled
	// yields a no-op logger.
	Audit *audit.Config

	// Logger overrides Audit with a caller-supplied logger. The connector
	// takes ownership and closes it on Close.
	Logger audit.Logger

	// EnableMemoryLock attempts to lock process memory so key material is
	// not swapped to disk. Best effort: platforms or permissions that do
	// not allow locking degrade to partial protection rather than failing.
	EnableMemoryLock bool
}
