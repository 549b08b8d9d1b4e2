package signet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"southwinds.dev/signet/audit"
	"southwinds.dev/signet/internal/seed"
	"southwinds.dev/signet/persist"
)

// CreateKey generates fresh key material for the requested algorithm and
// persists it under the composite identifier "identity/keyName".
//
// Generation derives a random BIP-39 mnemonic, stretches it into a seed and
// derives the keypair from the seed. The existence check precedes
// generation: a record already stored under the identifier fails the call
// with AlreadyExists before any key material is produced, so existing keys
// are never silently overwritten.
//
// Two concurrent creates for the same identifier race on the existence
// check; the store's own per-key write ordering decides which caller
// observes AlreadyExists. Returns the public key (32 bytes for Ed25519).
func (c *Connector) CreateKey(ctx context.Context, rc RequestContext, keyName string, keyType KeyType) ([]byte, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if keyName == "" {
		return nil, &ValidationError{Field: "keyName"}
	}
	if !keyType.Valid() {
		return nil, &ValidationError{Field: "keyType"}
	}

	id := rc.CompositeID(keyName)

	// Existence check before generation
	if _, err := c.keys.Get(ctx, rc.TenantID, id); err == nil {
		c.logKeyOp("create_key", rc, id, false, "already exists")
		return nil, &AlreadyExistsError{ID: id}
	} else if !errors.Is(err, persist.ErrRecordNotFound) {
		c.logKeyOp("create_key", rc, id, false, err.Error())
		return nil, fmt.Errorf("failed to check key %s: %w", id, err)
	}

	privateKey, publicKey, err := seed.NewEd25519()
	if err != nil {
		c.logKeyOp("create_key", rc, id, false, "key generation failed")
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	record := &persist.KeyRecord{
		ID:         id,
		Type:       string(keyType),
		PrivateKey: privateKey,
		PublicKey:  publicKey,
	}
	if err = c.keys.Set(ctx, rc.TenantID, record); err != nil {
		c.logKeyOp("create_key", rc, id, false, err.Error())
		return nil, fmt.Errorf("failed to store key %s: %w", id, err)
	}

	c.logKeyOp("create_key", rc, id, true, "")
	return publicKey, nil
}

// ImportKey stores caller-supplied key material under "identity/keyName",
// with the same uniqueness contract as CreateKey. The key halves must have
// the sizes the algorithm prescribes.
func (c *Connector) ImportKey(ctx context.Context, rc RequestContext, keyName string, keyType KeyType, privateKey, publicKey []byte) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if keyName == "" {
		return &ValidationError{Field: "keyName"}
	}
	if !keyType.Valid() {
		return &ValidationError{Field: "keyType"}
	}
	if len(privateKey) == 0 {
		return &ValidationError{Field: "privateKey"}
	}
	if len(publicKey) == 0 {
		return &ValidationError{Field: "publicKey"}
	}
	if len(privateKey) != ed25519.PrivateKeySize || len(publicKey) != ed25519.PublicKeySize {
		return &ValidationError{Field: "privateKey"}
	}

	id := rc.CompositeID(keyName)

	if _, err := c.keys.Get(ctx, rc.TenantID, id); err == nil {
		c.logKeyOp("import_key", rc, id, false, "already exists")
		return &AlreadyExistsError{ID: id}
	} else if !errors.Is(err, persist.ErrRecordNotFound) {
		c.logKeyOp("import_key", rc, id, false, err.Error())
		return fmt.Errorf("failed to check key %s: %w", id, err)
	}

	record := &persist.KeyRecord{
		ID:         id,
		Type:       string(keyType),
		PrivateKey: privateKey,
		PublicKey:  publicKey,
	}
	if err := c.keys.Set(ctx, rc.TenantID, record); err != nil {
		c.logKeyOp("import_key", rc, id, false, err.Error())
		return fmt.Errorf("failed to store key %s: %w", id, err)
	}

	c.logKeyOp("import_key", rc, id, true, "")
	return nil
}

// GetKey returns the stored record: type plus both key halves. This is the
// only operation that exposes private key material outward; callers that
// only need signing or decryption should prefer Sign and Decrypt.
func (c *Connector) GetKey(ctx context.Context, rc RequestContext, keyName string) (*persist.KeyRecord, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if keyName == "" {
		return nil, &ValidationError{Field: "keyName"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logKeyOp("get_key", rc, id, false, err.Error())
		return nil, err
	}

	c.logKeyOp("get_key", rc, id, true, "")
	return record, nil
}

// RenameKey moves the record stored under keyName to newName: the old
// record is removed and an equivalent record is inserted under the new
// identifier, payload unchanged.
//
// The two store calls are not atomic; a crash between them loses the
// record, and a concurrent reader can observe neither identifier. No
// existence check is performed against newName, so a key already stored
// there is overwritten. Both behaviors are long-standing contract; callers
// needing stronger guarantees must coordinate externally.
func (c *Connector) RenameKey(ctx context.Context, rc RequestContext, keyName, newName string) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if keyName == "" {
		return &ValidationError{Field: "keyName"}
	}
	if newName == "" {
		return &ValidationError{Field: "newName"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logKeyOp("rename_key", rc, id, false, err.Error())
		return err
	}

	newID := rc.CompositeID(newName)

	if err = c.keys.Remove(ctx, rc.TenantID, id); err != nil {
		c.logKeyOp("rename_key", rc, id, false, err.Error())
		return fmt.Errorf("failed to remove key %s: %w", id, err)
	}

	record.ID = newID
	if err = c.keys.Set(ctx, rc.TenantID, record); err != nil {
		c.logKeyOp("rename_key", rc, newID, false, err.Error())
		return fmt.Errorf("failed to store key %s: %w", newID, err)
	}

	c.audit.Log("rename_key", true, mergeMeta(rc.meta(), map[string]interface{}{
		audit.MetaKeyID: id,
		"new_key_id":    newID,
	}))
	return nil
}

// RemoveKey deletes the record stored under keyName, or fails with
// NotFound if it is absent.
func (c *Connector) RemoveKey(ctx context.Context, rc RequestContext, keyName string) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if keyName == "" {
		return &ValidationError{Field: "keyName"}
	}

	// The store's remove is not no-op-safe, check existence first
	_, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logKeyOp("remove_key", rc, id, false, err.Error())
		return err
	}

	if err = c.keys.Remove(ctx, rc.TenantID, id); err != nil {
		c.logKeyOp("remove_key", rc, id, false, err.Error())
		return fmt.Errorf("failed to remove key %s: %w", id, err)
	}

	c.logKeyOp("remove_key", rc, id, true, "")
	return nil
}

// ListKeys returns the composite identifiers of all keys in the caller's
// tenant partition.
func (c *Connector) ListKeys(ctx context.Context, rc RequestContext) ([]string, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	ids, err := c.keys.List(ctx, rc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return ids, nil
}

func (c *Connector) logKeyOp(action string, rc RequestContext, id string, success bool, errMsg string) {
	metadata := rc.meta()
	metadata[audit.MetaKeyID] = id
	if errMsg != "" {
		metadata[audit.MetaError] = errMsg
	}
	c.audit.Log(action, success, metadata)
}

func mergeMeta(base, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
