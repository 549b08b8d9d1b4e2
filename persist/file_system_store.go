package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"southwinds.dev/signet/internal/crypto"
	"southwinds.dev/signet/internal/misc"
)

const (
	FilePermissions os.FileMode = misc.FilePermissions
	DirPermissions  os.FileMode = misc.DirPermissions
)

// FileSystemStore implements the backend contract on the local filesystem
// with multitenancy. Layout:
//
//	basePath/
//	├── tenant1/
//	│   ├── keys/<encoded-id>.json
//	│   └── secrets/<encoded-id>.json
//	└── tenant2/
//	    └── ...
//
// Record identifiers contain "/" and are base64url-encoded in file names.
// When a passphrase is configured, record files are sealed at rest with an
// argon2id-derived key and ChaCha20-Poly1305.
type FileSystemStore struct {
	basePath   string
	passphrase string
}

// NewFileSystemStore initializes a filesystem backend rooted at basePath.
// An empty passphrase disables at-rest sealing.
func NewFileSystemStore(basePath, passphrase string) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(basePath, DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", basePath, err)
	}

	return &FileSystemStore{
		basePath:   basePath,
		passphrase: passphrase,
	}, nil
}

func (fs *FileSystemStore) namespaceDir(tenantID, namespace string) string {
	return filepath.Join(fs.basePath, tenantID, namespace)
}

func (fs *FileSystemStore) recordPath(tenantID, namespace, id string) string {
	return filepath.Join(fs.namespaceDir(tenantID, namespace), encodeRecordID(id)+".json")
}

func (fs *FileSystemStore) load(_ context.Context, tenantID, namespace, id string) ([]byte, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.recordPath(tenantID, namespace, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	if fs.passphrase != "" {
		data, err = crypto.OpenWithPassphrase(data, fs.passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal record %s: %w", id, err)
		}
	}

	return data, nil
}

func (fs *FileSystemStore) save(_ context.Context, tenantID, namespace, id string, data []byte) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	dir := fs.namespaceDir(tenantID, namespace)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var err error
	if fs.passphrase != "" {
		data, err = crypto.SealWithPassphrase(data, fs.passphrase)
		if err != nil {
			return fmt.Errorf("failed to seal record %s: %w", id, err)
		}
	}

	return writeSecureFile(fs.recordPath(tenantID, namespace, id), data, FilePermissions)
}

func (fs *FileSystemStore) delete(_ context.Context, tenantID, namespace, id string) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	path := fs.recordPath(tenantID, namespace, id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("failed to remove record %s: %w", id, err)
	}
	return nil
}

func (fs *FileSystemStore) list(_ context.Context, tenantID, namespace string) ([]string, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fs.namespaceDir(tenantID, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id, err := decodeRecordID(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			// Skip foreign files rather than failing the whole listing
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (fs *FileSystemStore) ping(_ context.Context) error {
	if _, err := os.Stat(fs.basePath); err != nil {
		return fmt.Errorf("store path not accessible: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) close() error { return nil }

func (fs *FileSystemStore) storeType() string { return string(StoreTypeFileSystem) }

// writeSecureFile writes data through a temp file and rename so readers
// never observe a partially written record.
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err = tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close record file: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize record file: %w", err)
	}
	return nil
}
