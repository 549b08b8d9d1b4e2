package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const ctxTimeout = 10 * time.Second

// S3Config holds the connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	KeyPrefix       string `json:"key_prefix"`
}

// S3Store implements the backend contract using MinIO with multitenancy.
// Object structure:
//
//	bucket/
//	├── [keyPrefix/]tenant1/keys/<encoded-id>.json
//	├── [keyPrefix/]tenant1/secrets/<encoded-id>.json
//	└── [keyPrefix/]tenant2/...
type S3Store struct {
	client     *minio.Client
	bucketName string
	keyPrefix  string
}

// NewS3Store initializes an S3 backend and ensures the bucket exists.
func NewS3Store(config S3Config) (*S3Store, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket name")
	}

	store := &S3Store{
		client:     client,
		bucketName: config.Bucket,
		keyPrefix:  strings.Trim(config.KeyPrefix, "/"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err = store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return store, nil
}

// newS3StoreFromConfig builds an S3Store from the generic StoreConfig map.
func newS3StoreFromConfig(config StoreConfig) (*S3Store, error) {
	if config.Type != StoreTypeS3 {
		return nil, fmt.Errorf("invalid store type for MinIO: %s", config.Type)
	}

	// Round-trip through JSON to parse the loosely typed config map
	raw, err := json.Marshal(config.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal s3 config: %w", err)
	}
	var s3cfg S3Config
	if err = json.Unmarshal(raw, &s3cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	return NewS3Store(s3cfg)
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucketName, err)
		}
	}
	return nil
}

func (s *S3Store) objectKey(tenantID, namespace, id string) string {
	key := fmt.Sprintf("%s/%s/%s.json", tenantID, namespace, encodeRecordID(id))
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}
	return key
}

func (s *S3Store) namespacePrefix(tenantID, namespace string) string {
	prefix := fmt.Sprintf("%s/%s/", tenantID, namespace)
	if s.keyPrefix != "" {
		prefix = s.keyPrefix + "/" + prefix
	}
	return prefix
}

func (s *S3Store) load(ctx context.Context, tenantID, namespace, id string) ([]byte, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	object, err := s.client.GetObject(ctx, s.bucketName, s.objectKey(tenantID, namespace, id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	return data, nil
}

func (s *S3Store) save(ctx context.Context, tenantID, namespace, id string, data []byte) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucketName, s.objectKey(tenantID, namespace, id),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) delete(ctx context.Context, tenantID, namespace, id string) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	key := s.objectKey(tenantID, namespace, id)

	// RemoveObject succeeds on missing keys, so probe first to keep the
	// not-found signal the vault layer relies on.
	_, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrRecordNotFound
		}
		return fmt.Errorf("failed to stat record %s: %w", id, err)
	}

	if err = s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove record %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) list(ctx context.Context, tenantID, namespace string) ([]string, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	prefix := s.namespacePrefix(tenantID, namespace)
	var ids []string
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list records: %w", object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := decodeRecordID(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *S3Store) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("s3 connectivity check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}

func (s *S3Store) close() error { return nil }

func (s *S3Store) storeType() string { return string(StoreTypeS3) }
