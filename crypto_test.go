package signet

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestSignAndVerify(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "signing", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	data := []byte("message to sign")
	signature, err := connector.Sign(testCtx, rc, "signing", data)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	if len(signature) != ed25519.SignatureSize {
		t.Errorf("Expected %d-byte signature, got %d", ed25519.SignatureSize, len(signature))
	}

	valid, err := connector.Verify(testCtx, rc, "signing", data, signature)
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !valid {
		t.Error("Expected signature to verify")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "signing", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	data := []byte("stable input")
	first, err := connector.Sign(testCtx, rc, "signing", data)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	second, err := connector.Sign(testCtx, rc, "signing", data)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Expected identical signatures for identical inputs")
	}
}

func TestVerifyRejectsMismatch(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "signing", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	data := []byte("original message")
	signature, err := connector.Sign(testCtx, rc, "signing", data)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	// Tampered data: (false, nil), not an error
	valid, err := connector.Verify(testCtx, rc, "signing", []byte("tampered message"), signature)
	if err != nil {
		t.Fatalf("Expected no error for mismatch, got: %v", err)
	}
	if valid {
		t.Error("Expected tampered data to fail verification")
	}

	// Corrupted signature
	corrupted := append([]byte{}, signature...)
	corrupted[0] ^= 0xff
	valid, err = connector.Verify(testCtx, rc, "signing", data, corrupted)
	if err != nil {
		t.Fatalf("Expected no error for corrupted signature, got: %v", err)
	}
	if valid {
		t.Error("Expected corrupted signature to fail verification")
	}

	// Wrong-size signature is a mismatch, not an error
	valid, err = connector.Verify(testCtx, rc, "signing", data, signature[:32])
	if err != nil {
		t.Fatalf("Expected no error for short signature, got: %v", err)
	}
	if valid {
		t.Error("Expected short signature to fail verification")
	}
}

func TestVerifyWithWrongKey(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "alpha", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	if _, err := connector.CreateKey(testCtx, rc, "beta", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	data := []byte("message")
	signature, err := connector.Sign(testCtx, rc, "alpha", data)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	valid, err := connector.Verify(testCtx, rc, "beta", data, signature)
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if valid {
		t.Error("Expected signature from another key to fail verification")
	}
}

func TestSignNotFound(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.Sign(testCtx, rc, "absent", []byte("data")); !IsNotFound(err) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
	if _, err := connector.Verify(testCtx, rc, "absent", []byte("data"), make([]byte, 64)); !IsNotFound(err) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
}

func TestSignValidation(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.Sign(testCtx, rc, "", []byte("data")); !IsValidation(err) {
		t.Errorf("Expected validation error for empty name, got: %v", err)
	}
	if _, err := connector.Sign(testCtx, rc, "k", nil); !IsValidation(err) {
		t.Errorf("Expected validation error for empty data, got: %v", err)
	}
	if _, err := connector.Verify(testCtx, rc, "k", []byte("data"), nil); !IsValidation(err) {
		t.Errorf("Expected validation error for empty signature, got: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "cipher", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	plaintext := []byte("sensitive payload")
	envelope, err := connector.Encrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	decrypted, err := connector.Decrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, envelope)
	if err != nil {
		t.Fatalf("Failed to decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Round trip mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestEnvelopeLayout(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "cipher", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	// nonce(12) + plaintext + tag(16): 5 bytes of plaintext yields 33
	plaintext := []byte("hello")
	envelope, err := connector.Encrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	expected := chacha20poly1305.NonceSize + len(plaintext) + chacha20poly1305.Overhead
	if len(envelope) != expected {
		t.Errorf("Expected %d-byte envelope, got %d", expected, len(envelope))
	}
	if expected != 33 {
		t.Errorf("Expected 33 bytes for a 5-byte plaintext, got %d", expected)
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "cipher", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	plaintext := []byte("same input")
	first, err := connector.Encrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	second, err := connector.Encrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	if bytes.Equal(first[:chacha20poly1305.NonceSize], second[:chacha20poly1305.NonceSize]) {
		t.Error("Expected distinct nonces for repeated encryption")
	}
	if bytes.Equal(first, second) {
		t.Error("Expected distinct envelopes for repeated encryption")
	}

	// Both envelopes decrypt to the same plaintext
	for _, envelope := range [][]byte{first, second} {
		decrypted, err := connector.Decrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, envelope)
		if err != nil {
			t.Fatalf("Failed to decrypt: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Error("Round trip mismatch")
		}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "cipher", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	envelope, err := connector.Encrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, []byte("payload"))
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	// Flip one ciphertext bit
	tampered := append([]byte{}, envelope...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err = connector.Decrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, tampered); err == nil {
		t.Error("Expected tampered envelope to fail decryption")
	}

	// Flip one nonce bit
	tampered = append([]byte{}, envelope...)
	tampered[0] ^= 0x01
	if _, err = connector.Decrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, tampered); err == nil {
		t.Error("Expected nonce-tampered envelope to fail decryption")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "alpha", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	if _, err := connector.CreateKey(testCtx, rc, "beta", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	envelope, err := connector.Encrypt(testCtx, rc, "alpha", EncryptionTypeChaCha20Poly1305, []byte("payload"))
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	if _, err = connector.Decrypt(testCtx, rc, "beta", EncryptionTypeChaCha20Poly1305, envelope); err == nil {
		t.Error("Expected decryption under another key to fail")
	}
}

func TestDecryptRejectsShortInput(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.CreateKey(testCtx, rc, "cipher", KeyTypeEd25519); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	// Shorter than nonce plus tag can never be a valid envelope
	short := make([]byte, chacha20poly1305.NonceSize+chacha20poly1305.Overhead-1)
	if _, err := connector.Decrypt(testCtx, rc, "cipher", EncryptionTypeChaCha20Poly1305, short); err == nil {
		t.Error("Expected short envelope to be rejected")
	}
}

func TestEncryptValidation(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	if _, err := connector.Encrypt(testCtx, rc, "k", EncryptionType("aes-gcm"), []byte("data")); !IsValidation(err) {
		t.Errorf("Expected validation error for unknown encryption type, got: %v", err)
	}
	if _, err := connector.Encrypt(testCtx, rc, "k", EncryptionTypeChaCha20Poly1305, nil); !IsValidation(err) {
		t.Errorf("Expected validation error for empty data, got: %v", err)
	}
	if _, err := connector.Decrypt(testCtx, rc, "k", EncryptionTypeChaCha20Poly1305, nil); !IsValidation(err) {
		t.Errorf("Expected validation error for empty envelope, got: %v", err)
	}
}

func TestEncryptDecryptWithImportedKey(t *testing.T) {
	connector := newTestConnector(t)
	rc := testRequestContext()

	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("Failed to generate keypair: %v", err)
	}
	if err = connector.ImportKey(testCtx, rc, "imported", KeyTypeEd25519, privateKey, publicKey); err != nil {
		t.Fatalf("Failed to import key: %v", err)
	}

	plaintext := []byte("imported key payload")
	envelope, err := connector.Encrypt(testCtx, rc, "imported", EncryptionTypeChaCha20Poly1305, plaintext)
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}
	decrypted, err := connector.Decrypt(testCtx, rc, "imported", EncryptionTypeChaCha20Poly1305, envelope)
	if err != nil {
		t.Fatalf("Failed to decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("Round trip mismatch with imported key")
	}
}
