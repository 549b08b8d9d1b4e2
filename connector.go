// Package signet is a tenant-scoped vault for asymmetric signing keys and
// opaque application secrets.
//
// The Connector exposes key-lifecycle operations (create, import, fetch,
// rename, remove), key-use operations (sign, verify, authenticated
// encrypt/decrypt) and secret operations (store, retrieve, remove) on
// behalf of callers identified by a tenant and an identity. Storage is
// delegated to pluggable per-tenant stores (see the persist package);
// cryptographic primitives are consumed, not reimplemented.
//
// Every operation follows the same control flow: validate inputs, compute
// the composite "identity/name" identifier, consult the appropriate store,
// perform the cryptographic or serialization step, write back if mutating,
// and return the result or a typed failure. The connector performs no
// locking, no cross-identifier transactions and no caching of key or
// secret material between calls.
package signet

import (
	"context"
	"errors"
	"fmt"

	"southwinds.dev/signet/audit"
	"southwinds.dev/signet/internal/mem"
	"southwinds.dev/signet/persist"
)

// Connector is the vault entry point. Safe for concurrent use: operations
// hold no shared mutable state and rely on the stores' own per-identifier
// write ordering.
type Connector struct {
	keys         persist.KeyStore
	secrets      persist.SecretStore
	audit        audit.Logger
	memoryLocked bool
}

// New creates a Connector over the given stores. The stores remain owned
// by the caller except that Close releases the audit logger and any memory
// locks taken on behalf of the connector.
func New(opts Options, keys persist.KeyStore, secrets persist.SecretStore) (*Connector, error) {
	if keys == nil {
		return nil, errors.New("key store is required")
	}
	if secrets == nil {
		return nil, errors.New("secret store is required")
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = audit.NewLogger(opts.Audit)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
	}

	c := &Connector{
		keys:    keys,
		secrets: secrets,
		audit:   logger,
	}

	if opts.EnableMemoryLock {
		level, err := mem.Lock()
		if err != nil {
			logger.Log("memory_lock", false, map[string]interface{}{
				audit.MetaError: err.Error(),
			})
			return nil, fmt.Errorf("failed to lock memory: %w", err)
		}
		c.memoryLocked = level != mem.ProtectionNone
		logger.Log("memory_lock", true, map[string]interface{}{
			"protection_level": int(level),
		})
	}

	return c, nil
}

// Close releases the audit logger and memory locks. The stores are not
// closed; their lifecycle belongs to whoever constructed them.
func (c *Connector) Close() error {
	var errs []error
	if c.memoryLocked {
		if err := mem.Unlock(); err != nil {
			errs = append(errs, err)
		}
		c.memoryLocked = false
	}
	if c.audit != nil {
		if err := c.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QueryAuditLogs filters recorded audit events. Loggers that do not retain
// events (no-op, syslog) return an error.
func (c *Connector) QueryAuditLogs(options audit.QueryOptions) (audit.QueryResult, error) {
	return c.audit.Query(options)
}

// MemoryLocked reports whether the connector holds a process memory lock.
func (c *Connector) MemoryLocked() bool {
	return c.memoryLocked
}

// loadKey fetches the key record for a composite identifier, translating
// store absence into the vault's NotFound error kind.
func (c *Connector) loadKey(ctx context.Context, rc RequestContext, keyName string) (*persist.KeyRecord, string, error) {
	id := rc.CompositeID(keyName)
	record, err := c.keys.Get(ctx, rc.TenantID, id)
	if err != nil {
		if errors.Is(err, persist.ErrRecordNotFound) {
			return nil, id, &NotFoundError{ID: id}
		}
		return nil, id, fmt.Errorf("failed to load key %s: %w", id, err)
	}
	return record, id, nil
}

// meta builds the base audit metadata for an operation.
func (rc RequestContext) meta() map[string]interface{} {
	return map[string]interface{}{
		audit.MetaTenantID: rc.TenantID,
		audit.MetaIdentity: rc.Identity,
	}
}
