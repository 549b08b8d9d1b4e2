package persist

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
)

func TestS3Store(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping S3 store test in short mode")
	}

	endpoint := os.Getenv("S3_MINIO_ENDPOINT")
	if len(endpoint) == 0 {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     testAccessKey,
				"MINIO_ROOT_PASSWORD": testSecretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		}

		minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			t.Skipf("Skipping: failed to start MinIO container (no Docker?): %v", err)
		}

		defer func() {
			if err = minioContainer.Terminate(ctx); err != nil {
				t.Logf("Warning: Failed to terminate MinIO container: %v", err)
			}
		}()

		mappedPort, err := minioContainer.MappedPort(ctx, "9000")
		if err != nil {
			t.Fatalf("Failed to get mapped port: %v", err)
		}

		endpoint = fmt.Sprintf("http://localhost:%s", mappedPort.Port())
	}

	t.Run("runS3StoreTest", func(t *testing.T) {
		runS3StoreTest(t, endpoint)
	})
}

func runS3StoreTest(t *testing.T, endpointURL string) {
	bucketName := os.Getenv("S3_BUCKET")
	if bucketName == "" {
		bucketName = "test-signet-store"
	}

	accessKeyID := os.Getenv("S3_MINIO_ACCESS_KEY_ID")
	if accessKeyID == "" {
		accessKeyID = testAccessKey
	}

	secretAccessKey := os.Getenv("S3_MINIO_SECRET_ACCESS_KEY")
	if secretAccessKey == "" {
		secretAccessKey = testSecretKey
	}

	endpoint, useSSL := parseEndpoint(t, endpointURL)

	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	t.Logf("Configuring S3Store with endpoint: %s, bucket: %s, useSSL: %v", endpoint, bucketName, useSSL)

	store, err := NewS3Store(S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Bucket:          bucketName,
		KeyPrefix:       "test/",
		UseSSL:          useSSL,
		Region:          region,
	})
	if err != nil {
		t.Fatalf("Failed to create S3Store: %v", err)
	}

	testStoreImplementation(t, store)
}

// parseEndpoint extracts host:port from a URL, MinIO clients take no scheme.
func parseEndpoint(t *testing.T, endpointURL string) (string, bool) {
	t.Helper()

	parsed, err := url.Parse(endpointURL)
	if err != nil || parsed.Host == "" {
		return endpointURL, false
	}
	return parsed.Host, parsed.Scheme == "https"
}
