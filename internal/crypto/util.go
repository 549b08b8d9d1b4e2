package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"southwinds.dev/signet/internal/misc"
)

// DeriveSealingKey derives a 32-byte sealing key from a passphrase and salt
// using argon2id. The key is returned in a memguard-protected buffer; the
// caller must destroy it after use.
func DeriveSealingKey(passphrase string, salt []byte) (*memguard.LockedBuffer, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	if len(salt) != misc.SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", misc.SaltSize, len(salt))
	}

	derivedKey := argon2.IDKey(
		[]byte(passphrase),
		salt,
		misc.ArgonTime,
		misc.ArgonMemory,
		misc.ArgonThreads,
		misc.ArgonKeyLen,
	)

	// Protect the derived key immediately and wipe the unprotected copy
	protectedKey := memguard.NewBufferFromBytes(derivedKey)
	return protectedKey, nil
}

// SealWithPassphrase encrypts data using a passphrase-derived key with
// argon2id + ChaCha20-Poly1305. The output layout is salt + nonce + ciphertext.
func SealWithPassphrase(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, misc.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	keyBuffer, err := DeriveSealingKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer keyBuffer.Destroy()

	aead, err := chacha20poly1305.New(keyBuffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	// Combine: salt + nonce + ciphertext
	result := make([]byte, len(salt)+len(nonce)+len(ciphertext))
	copy(result[:len(salt)], salt)
	copy(result[len(salt):len(salt)+len(nonce)], nonce)
	copy(result[len(salt)+len(nonce):], ciphertext)

	return result, nil
}

// OpenWithPassphrase decrypts data produced by SealWithPassphrase.
func OpenWithPassphrase(sealedData []byte, passphrase string) ([]byte, error) {
	if len(sealedData) < misc.SaltSize+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, errors.New("sealed data too short")
	}

	salt := sealedData[:misc.SaltSize]
	nonce := sealedData[misc.SaltSize : misc.SaltSize+chacha20poly1305.NonceSize]
	ciphertext := sealedData[misc.SaltSize+chacha20poly1305.NonceSize:]

	keyBuffer, err := DeriveSealingKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer keyBuffer.Destroy()

	aead, err := chacha20poly1305.New(keyBuffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	return plaintext, nil
}
