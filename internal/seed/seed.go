// Package seed derives Ed25519 signing keys from BIP-39 mnemonics.
//
// Key generation draws 256 bits of entropy, encodes it as a mnemonic
// sentence, stretches the sentence into a 64-byte seed with PBKDF2-SHA512
// (the BIP-39 schedule) and uses the first 32 bytes of the seed as the
// Ed25519 private key seed. The mnemonic is an intermediate only; it is
// wiped and never persisted.
package seed

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"github.com/awnumar/memguard"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"southwinds.dev/signet/internal/misc"
)

// NewMnemonic generates a fresh 24-word mnemonic from 256 bits of entropy.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer memguard.WipeBytes(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return mnemonic, nil
}

// FromMnemonic stretches a mnemonic sentence into a 64-byte seed using
// PBKDF2-SHA512 with the BIP-39 salt convention. Deterministic: the same
// mnemonic and passphrase always produce the same seed.
func FromMnemonic(mnemonic, passphrase string) []byte {
	return pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), misc.SeedIterations, misc.SeedSize, sha512.New)
}

// Ed25519FromSeed derives an Ed25519 keypair from a stretched seed.
// The private key is 64 bytes (seed plus public half), the public key 32.
func Ed25519FromSeed(s []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(s) < ed25519.SeedSize {
		return nil, nil, fmt.Errorf("seed must be at least %d bytes, got %d", ed25519.SeedSize, len(s))
	}
	privateKey := ed25519.NewKeyFromSeed(s[:ed25519.SeedSize])
	publicKey := privateKey.Public().(ed25519.PublicKey)
	return privateKey, publicKey, nil
}

// NewEd25519 generates a fresh Ed25519 keypair through the mnemonic path.
func NewEd25519() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, nil, err
	}

	stretched := FromMnemonic(mnemonic, "")
	defer memguard.WipeBytes(stretched)

	return Ed25519FromSeed(stretched)
}
