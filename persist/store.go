package persist

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrRecordNotFound is returned by Get when no record exists under the
// requested identifier. Remove is not no-op-safe: callers that need a
// distinct not-found signal must Get first.
var ErrRecordNotFound = errors.New("record not found")

// KeyRecord is the persisted form of a single asymmetric keypair.
// The key halves are serialized base64 through the standard JSON encoding
// of byte slices, keeping the at-rest representation textual.
type KeyRecord struct {
	// ID is the composite identifier "identity/keyName", unique within a
	// tenant partition.
	ID string `json:"id"`

	// Type is the key algorithm tag, e.g. "ed25519".
	Type string `json:"type"`

	PrivateKey []byte `json:"privateKey"`
	PublicKey  []byte `json:"publicKey"`
}

// SecretRecord is the persisted form of an opaque caller-defined value.
type SecretRecord struct {
	// ID is the composite identifier "identity/secretName", unique within
	// a tenant partition.
	ID string `json:"id"`

	// Data is the serialized textual representation of the caller's value.
	Data string `json:"data"`
}

// KeyStore is a per-tenant mapping from composite identifier to key record.
// Implementations provide at most read-modify-write consistency per
// identifier; the vault layer performs no locking on top of it.
type KeyStore interface {
	// Get returns the record stored under id, or ErrRecordNotFound.
	Get(ctx context.Context, tenantID, id string) (*KeyRecord, error)

	// Set upserts the record by its ID.
	Set(ctx context.Context, tenantID string, record *KeyRecord) error

	// Remove deletes the record stored under id.
	Remove(ctx context.Context, tenantID, id string) error

	// List returns the identifiers present in the tenant partition.
	List(ctx context.Context, tenantID string) ([]string, error)

	// Ping tests connectivity for remote backends.
	Ping(ctx context.Context) error

	// Close releases any resources the store holds.
	Close() error

	// Type returns the backend type, e.g. "filesystem", "s3".
	Type() string
}

// SecretStore is the secret-record counterpart of KeyStore. The two
// namespaces are independent even when served by the same backend.
type SecretStore interface {
	Get(ctx context.Context, tenantID, id string) (*SecretRecord, error)
	Set(ctx context.Context, tenantID string, record *SecretRecord) error
	Remove(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
	Type() string
}

// StoreConfig provides configuration for different storage backends.
type StoreConfig struct {
	// Type specifies the storage backend to be used.
	Type StoreType `json:"type"`

	// Config contains backend-specific settings, e.g. "base_path" for the
	// filesystem store or "endpoint"/"bucket" for S3.
	Config map[string]interface{} `json:"config"`
}

// StoreType represents the different types of storage backends that can be used.
type StoreType string

// Supported storage types.
const (
	StoreTypeMemory     StoreType = "memory"
	StoreTypeFileSystem StoreType = "filesystem"
	StoreTypeS3         StoreType = "s3"
)

// Namespaces used to keep the two record families apart within one backend.
const (
	nsKeys    = "keys"
	nsSecrets = "secrets"
)

// validateTenantID validates the tenant ID for security
func validateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}

	// Basic validation to prevent path traversal and other issues
	if strings.Contains(tenantID, "..") ||
		strings.Contains(tenantID, "/") ||
		strings.Contains(tenantID, "\\") ||
		strings.Contains(tenantID, " ") {
		return fmt.Errorf("tenant ID contains invalid characters")
	}

	if len(tenantID) > 100 {
		return fmt.Errorf("tenant ID too long (max 100 characters)")
	}

	return nil
}

// encodeRecordID makes a composite identifier path- and object-key-safe.
// Composite IDs contain "/" which would otherwise introduce directory levels.
func encodeRecordID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// decodeRecordID reverses encodeRecordID.
func decodeRecordID(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed record file name %q: %w", encoded, err)
	}
	return string(raw), nil
}
