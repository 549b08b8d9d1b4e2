package signet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"southwinds.dev/signet/audit"
	"southwinds.dev/signet/persist"
)

// StoreSecret serializes value and stores it under "identity/secretName".
//
// Unlike key creation, storing is idempotent-by-overwrite: an existing
// record under the same identifier is replaced without an existence check.
// The value must round-trip through JSON; the stored textual form
// deserializes back to a structurally equal value.
func (c *Connector) StoreSecret(ctx context.Context, rc RequestContext, secretName string, value interface{}) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if secretName == "" {
		return &ValidationError{Field: "secretName"}
	}
	if value == nil {
		return &ValidationError{Field: "value"}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize secret value: %w", err)
	}

	id := rc.CompositeID(secretName)
	record := &persist.SecretRecord{
		ID:   id,
		Data: string(data),
	}
	if err = c.secrets.Set(ctx, rc.TenantID, record); err != nil {
		c.logSecretOp("store_secret", rc, id, false, err.Error())
		return fmt.Errorf("failed to store secret %s: %w", id, err)
	}

	c.logSecretOp("store_secret", rc, id, true, "")
	return nil
}

// GetSecret retrieves and deserializes the secret stored under
// "identity/secretName". Fails with NotFound if absent. The caller is
// responsible for expecting a compatible shape; no schema validation is
// performed beyond successful deserialization.
func (c *Connector) GetSecret(ctx context.Context, rc RequestContext, secretName string) (interface{}, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if secretName == "" {
		return nil, &ValidationError{Field: "secretName"}
	}

	record, id, err := c.loadSecret(ctx, rc, secretName)
	if err != nil {
		c.logSecretOp("get_secret", rc, id, false, err.Error())
		return nil, err
	}

	var value interface{}
	if err = json.Unmarshal([]byte(record.Data), &value); err != nil {
		c.logSecretOp("get_secret", rc, id, false, "deserialization failed")
		return nil, fmt.Errorf("failed to deserialize secret %s: %w", id, err)
	}

	c.logSecretOp("get_secret", rc, id, true, "")
	return value, nil
}

// GetSecretInto retrieves the secret and deserializes it into out, which
// must be a non-nil pointer to the expected shape.
func (c *Connector) GetSecretInto(ctx context.Context, rc RequestContext, secretName string, out interface{}) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if secretName == "" {
		return &ValidationError{Field: "secretName"}
	}
	if out == nil {
		return &ValidationError{Field: "out"}
	}

	record, id, err := c.loadSecret(ctx, rc, secretName)
	if err != nil {
		c.logSecretOp("get_secret", rc, id, false, err.Error())
		return err
	}

	if err = json.Unmarshal([]byte(record.Data), out); err != nil {
		c.logSecretOp("get_secret", rc, id, false, "deserialization failed")
		return fmt.Errorf("failed to deserialize secret %s: %w", id, err)
	}

	c.logSecretOp("get_secret", rc, id, true, "")
	return nil
}

// RemoveSecret deletes the secret stored under "identity/secretName", or
// fails with NotFound if it is absent.
func (c *Connector) RemoveSecret(ctx context.Context, rc RequestContext, secretName string) error {
	if err := rc.validate(); err != nil {
		return err
	}
	if secretName == "" {
		return &ValidationError{Field: "secretName"}
	}

	// The store's remove is not no-op-safe, check existence first
	_, id, err := c.loadSecret(ctx, rc, secretName)
	if err != nil {
		c.logSecretOp("remove_secret", rc, id, false, err.Error())
		return err
	}

	if err = c.secrets.Remove(ctx, rc.TenantID, id); err != nil {
		c.logSecretOp("remove_secret", rc, id, false, err.Error())
		return fmt.Errorf("failed to remove secret %s: %w", id, err)
	}

	c.logSecretOp("remove_secret", rc, id, true, "")
	return nil
}

// ListSecrets returns the composite identifiers of all secrets in the
// caller's tenant partition.
func (c *Connector) ListSecrets(ctx context.Context, rc RequestContext) ([]string, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	ids, err := c.secrets.List(ctx, rc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	return ids, nil
}

func (c *Connector) loadSecret(ctx context.Context, rc RequestContext, secretName string) (*persist.SecretRecord, string, error) {
	id := rc.CompositeID(secretName)
	record, err := c.secrets.Get(ctx, rc.TenantID, id)
	if err != nil {
		if errors.Is(err, persist.ErrRecordNotFound) {
			return nil, id, &NotFoundError{ID: id}
		}
		return nil, id, fmt.Errorf("failed to load secret %s: %w", id, err)
	}
	return record, id, nil
}

func (c *Connector) logSecretOp(action string, rc RequestContext, id string, success bool, errMsg string) {
	metadata := rc.meta()
	metadata[audit.MetaSecretID] = id
	if errMsg != "" {
		metadata[audit.MetaError] = errMsg
	}
	c.audit.Log(action, success, metadata)
}
