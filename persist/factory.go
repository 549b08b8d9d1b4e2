package persist

import (
	"context"
	"encoding/json"
	"fmt"
)

// blobStore is the backend contract shared by all storage implementations.
// It moves opaque serialized records in and out of a (tenant, namespace)
// partition; the typed KeyStore/SecretStore views sit on top of it.
type blobStore interface {
	load(ctx context.Context, tenantID, namespace, id string) ([]byte, error)
	save(ctx context.Context, tenantID, namespace, id string, data []byte) error
	delete(ctx context.Context, tenantID, namespace, id string) error
	list(ctx context.Context, tenantID, namespace string) ([]string, error)
	ping(ctx context.Context) error
	close() error
	storeType() string
}

// NewStores creates the key and secret stores for the configured backend.
// Both views share one backend instance; Close on either closes both.
func NewStores(config StoreConfig) (KeyStore, SecretStore, error) {
	var backend blobStore
	var err error

	switch config.Type {
	case StoreTypeMemory:
		backend = NewMemoryStore()

	case StoreTypeFileSystem:
		basePath, ok := config.Config["base_path"].(string)
		if !ok {
			return nil, nil, fmt.Errorf("filesystem storage requires 'base_path' in config")
		}
		passphrase, _ := config.Config["passphrase"].(string)
		backend, err = NewFileSystemStore(basePath, passphrase)

	case StoreTypeS3:
		backend, err = newS3StoreFromConfig(config)

	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	return &keyStore{b: backend}, &secretStore{b: backend}, nil
}

// NewKeyStore returns a KeyStore view over a fresh backend instance.
func NewKeyStore(config StoreConfig) (KeyStore, error) {
	ks, _, err := NewStores(config)
	return ks, err
}

// NewSecretStore returns a SecretStore view over a fresh backend instance.
func NewSecretStore(config StoreConfig) (SecretStore, error) {
	_, ss, err := NewStores(config)
	return ss, err
}

// keyStore adapts a blobStore to the KeyStore contract, handling the
// JSON (de)serialization of key records.
type keyStore struct {
	b blobStore
}

func (s *keyStore) Get(ctx context.Context, tenantID, id string) (*KeyRecord, error) {
	data, err := s.b.load(ctx, tenantID, nsKeys, id)
	if err != nil {
		return nil, err
	}
	var record KeyRecord
	if err = json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode key record %s: %w", id, err)
	}
	return &record, nil
}

func (s *keyStore) Set(ctx context.Context, tenantID string, record *KeyRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("key record must have an ID")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode key record %s: %w", record.ID, err)
	}
	return s.b.save(ctx, tenantID, nsKeys, record.ID, data)
}

func (s *keyStore) Remove(ctx context.Context, tenantID, id string) error {
	return s.b.delete(ctx, tenantID, nsKeys, id)
}

func (s *keyStore) List(ctx context.Context, tenantID string) ([]string, error) {
	return s.b.list(ctx, tenantID, nsKeys)
}

func (s *keyStore) Ping(ctx context.Context) error { return s.b.ping(ctx) }
func (s *keyStore) Close() error                   { return s.b.close() }
func (s *keyStore) Type() string                   { return s.b.storeType() }

// secretStore adapts a blobStore to the SecretStore contract.
type secretStore struct {
	b blobStore
}

func (s *secretStore) Get(ctx context.Context, tenantID, id string) (*SecretRecord, error) {
	data, err := s.b.load(ctx, tenantID, nsSecrets, id)
	if err != nil {
		return nil, err
	}
	var record SecretRecord
	if err = json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode secret record %s: %w", id, err)
	}
	return &record, nil
}

func (s *secretStore) Set(ctx context.Context, tenantID string, record *SecretRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("secret record must have an ID")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode secret record %s: %w", record.ID, err)
	}
	return s.b.save(ctx, tenantID, nsSecrets, record.ID, data)
}

func (s *secretStore) Remove(ctx context.Context, tenantID, id string) error {
	return s.b.delete(ctx, tenantID, nsSecrets, id)
}

func (s *secretStore) List(ctx context.Context, tenantID string) ([]string, error) {
	return s.b.list(ctx, tenantID, nsSecrets)
}

func (s *secretStore) Ping(ctx context.Context) error { return s.b.ping(ctx) }
func (s *secretStore) Close() error                   { return s.b.close() }
func (s *secretStore) Type() string                   { return s.b.storeType() }
