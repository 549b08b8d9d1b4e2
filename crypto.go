package signet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"

	"southwinds.dev/signet/audit"
)

// Sign computes a signature over data with the named key's private half.
//
// Ed25519 signatures are deterministic: the same key and the same data
// always produce the same 64-byte signature. Fails with NotFound if the
// key is absent. The private key is held in memguard-protected memory for
// the duration of the operation and wiped afterwards.
func (c *Connector) Sign(ctx context.Context, rc RequestContext, keyName string, data []byte) ([]byte, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if keyName == "" {
		return nil, &ValidationError{Field: "keyName"}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Field: "data"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logUseOp("sign", rc, id, false, err.Error(), 0)
		return nil, err
	}
	if len(record.PrivateKey) != ed25519.PrivateKeySize {
		c.logUseOp("sign", rc, id, false, "malformed private key", 0)
		return nil, fmt.Errorf("stored private key for %s is malformed", id)
	}

	// Move the private key into protected memory; destroyed after use
	keyBuffer := memguard.NewBufferFromBytes(record.PrivateKey)
	defer keyBuffer.Destroy()

	signature := ed25519.Sign(ed25519.PrivateKey(keyBuffer.Bytes()), data)

	c.logUseOp("sign", rc, id, true, "", len(data))
	return signature, nil
}

// Verify checks a signature over data against the named key's public half.
//
// A mismatched signature yields (false, nil), never an error; errors are
// reserved for a missing key or malformed stored material.
func (c *Connector) Verify(ctx context.Context, rc RequestContext, keyName string, data, signature []byte) (bool, error) {
	if err := rc.validate(); err != nil {
		return false, err
	}
	if keyName == "" {
		return false, &ValidationError{Field: "keyName"}
	}
	if len(data) == 0 {
		return false, &ValidationError{Field: "data"}
	}
	if len(signature) == 0 {
		return false, &ValidationError{Field: "signature"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logUseOp("verify", rc, id, false, err.Error(), 0)
		return false, err
	}
	if len(record.PublicKey) != ed25519.PublicKeySize {
		c.logUseOp("verify", rc, id, false, "malformed public key", 0)
		return false, fmt.Errorf("stored public key for %s is malformed", id)
	}

	// ed25519.Verify tolerates wrong-size signatures, reporting false
	valid := ed25519.Verify(ed25519.PublicKey(record.PublicKey), data, signature)

	c.logUseOp("verify", rc, id, true, "", len(data))
	return valid, nil
}

// Encrypt encrypts data under the named key with authenticated encryption.
//
// A fresh random nonce is generated for every call; nonce reuse under the
// same key breaks AEAD security, so a caller-supplied nonce is never
// accepted. The symmetric key is the Ed25519 seed (the first 32 bytes of
// the private key).
//
// Wire format of the returned envelope, preserved for interoperability
// with previously encrypted data:
//
//	[12 bytes: nonce][N bytes: ciphertext + 16-byte authentication tag]
func (c *Connector) Encrypt(ctx context.Context, rc RequestContext, keyName string, encryptionType EncryptionType, data []byte) ([]byte, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if keyName == "" {
		return nil, &ValidationError{Field: "keyName"}
	}
	if !encryptionType.Valid() {
		return nil, &ValidationError{Field: "encryptionType"}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Field: "data"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logUseOp("encrypt_data", rc, id, false, err.Error(), 0)
		return nil, err
	}
	if len(record.PrivateKey) != ed25519.PrivateKeySize {
		c.logUseOp("encrypt_data", rc, id, false, "malformed private key", 0)
		return nil, fmt.Errorf("stored private key for %s is malformed", id)
	}

	keyBuffer := memguard.NewBufferFromBytes(record.PrivateKey)
	defer keyBuffer.Destroy()

	// The Ed25519 seed doubles as the 32-byte cipher key
	aead, err := chacha20poly1305.New(keyBuffer.Bytes()[:chacha20poly1305.KeySize])
	if err != nil {
		c.logUseOp("encrypt_data", rc, id, false, "failed to create cipher", 0)
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		c.logUseOp("encrypt_data", rc, id, false, "failed to generate nonce", 0)
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	// Combine nonce and ciphertext
	envelope := make([]byte, len(nonce)+len(ciphertext))
	copy(envelope[:len(nonce)], nonce)
	copy(envelope[len(nonce):], ciphertext)

	c.logUseOp("encrypt_data", rc, id, true, "", len(data))
	return envelope, nil
}

// Decrypt opens an envelope produced by Encrypt and returns the plaintext.
//
// The input is split into the leading 12-byte nonce and the remaining
// ciphertext plus tag. Authentication failure (tampered or corrupted
// data) surfaces as a generic wrapped error, not a distinct kind.
func (c *Connector) Decrypt(ctx context.Context, rc RequestContext, keyName string, encryptionType EncryptionType, encryptedData []byte) ([]byte, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if keyName == "" {
		return nil, &ValidationError{Field: "keyName"}
	}
	if !encryptionType.Valid() {
		return nil, &ValidationError{Field: "encryptionType"}
	}
	if len(encryptedData) == 0 {
		return nil, &ValidationError{Field: "encryptedData"}
	}

	record, id, err := c.loadKey(ctx, rc, keyName)
	if err != nil {
		c.logUseOp("decrypt_data", rc, id, false, err.Error(), 0)
		return nil, err
	}
	if len(record.PrivateKey) != ed25519.PrivateKeySize {
		c.logUseOp("decrypt_data", rc, id, false, "malformed private key", 0)
		return nil, fmt.Errorf("stored private key for %s is malformed", id)
	}

	keyBuffer := memguard.NewBufferFromBytes(record.PrivateKey)
	defer keyBuffer.Destroy()

	aead, err := chacha20poly1305.New(keyBuffer.Bytes()[:chacha20poly1305.KeySize])
	if err != nil {
		c.logUseOp("decrypt_data", rc, id, false, "failed to create cipher", 0)
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(encryptedData) < aead.NonceSize()+aead.Overhead() {
		c.logUseOp("decrypt_data", rc, id, false, "encrypted data too short", 0)
		return nil, errors.New("encrypted data too short")
	}

	nonce := encryptedData[:aead.NonceSize()]
	ciphertext := encryptedData[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		c.logUseOp("decrypt_data", rc, id, false, "failed to decrypt data", 0)
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	c.logUseOp("decrypt_data", rc, id, true, "", len(plaintext))
	return plaintext, nil
}

func (c *Connector) logUseOp(action string, rc RequestContext, id string, success bool, errMsg string, dataSize int) {
	metadata := rc.meta()
	metadata[audit.MetaKeyID] = id
	if dataSize > 0 {
		metadata["data_size"] = dataSize
	}
	if errMsg != "" {
		metadata[audit.MetaError] = errMsg
	}
	c.audit.Log(action, success, metadata)
}
