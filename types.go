package signet

// KeyType is the closed enumeration of supported key algorithms. New
// algorithms extend this set without changing the identifier scheme.
type KeyType string

const (
	// KeyTypeEd25519 is an Ed25519 signing keypair: 64-byte private key
	// (seed plus public half), 32-byte public key, 64-byte signatures.
	KeyTypeEd25519 KeyType = "ed25519"
)

// Valid reports whether the key type belongs to the closed set.
func (t KeyType) Valid() bool {
	switch t {
	case KeyTypeEd25519:
		return true
	}
	return false
}

// EncryptionType is the closed enumeration of supported authenticated
// encryption ciphers.
type EncryptionType string

const (
	// EncryptionTypeChaCha20Poly1305 is ChaCha20-Poly1305 (RFC 8439):
	// 32-byte key, 12-byte nonce, 16-byte authentication tag.
	EncryptionTypeChaCha20Poly1305 EncryptionType = "chacha20poly1305"
)

// Valid reports whether the encryption type belongs to the closed set.
func (t EncryptionType) Valid() bool {
	switch t {
	case EncryptionTypeChaCha20Poly1305:
		return true
	}
	return false
}

// RequestContext carries the ambient call metadata scoping every vault
// operation. It is passed by value into each call; the connector keeps no
// per-caller state between operations.
type RequestContext struct {
	// TenantID selects the store partition. Both stores are partitioned
	// first by tenant, isolating one customer's records from another's.
	TenantID string

	// Identity is the principal within the tenant; it prefixes every
	// composite identifier.
	Identity string
}

// CompositeID computes the "identity/name" lookup key used within a
// tenant partition.
func (rc RequestContext) CompositeID(name string) string {
	return rc.Identity + "/" + name
}

// validate checks the context fields in the order the validation layer
// prescribes: tenant first, then identity.
func (rc RequestContext) validate() error {
	if rc.TenantID == "" {
		return &ValidationError{Field: "tenantId"}
	}
	if rc.Identity == "" {
		return &ValidationError{Field: "identity"}
	}
	return nil
}
