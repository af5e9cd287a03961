// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"atelier-cli/internal/config"
	"atelier-cli/pkg/manifest"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// checkTestcontainersAvailable safely checks if testcontainers can be
// used. Provider detection can panic on hosts without a container
// runtime socket.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestObjectStore_Integration exercises the object store fetch path
// against a real MinIO container.
func TestObjectStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping object store integration test: no container runtime available")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "testaccess",
				"MINIO_ROOT_PASSWORD": "testsecret",
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting minio container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("resolving endpoint: %v", err)
	}

	// Seed the bucket with a known object.
	seed, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("testaccess", "testsecret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := seed.MakeBucket(ctx, "models", minio.MakeBucketOptions{Region: "us-east-1"}); err != nil {
		t.Fatalf("creating bucket: %v", err)
	}
	payload := []byte("mirrored-model-weights")
	_, err = seed.PutObject(ctx, "models", "vae/ae.safetensors",
		bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{})
	if err != nil {
		t.Fatalf("seeding object: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AppDir = config.DirPath(t.TempDir())
	cfg.ObjectStore = config.ObjectStoreConfig{
		Endpoint:  endpoint,
		AccessKey: "testaccess",
		SecretKey: "testsecret",
		Bucket:    "models",
		Region:    "us-east-1",
	}

	f, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := singleAssetManifest(manifest.Asset{
		Name:    "mirror-vae",
		Source:  manifest.SourceObjectStore,
		Locator: "vae/ae.safetensors",
		Dest:    "models/vae",
	})

	results, err := f.Fetch(ctx, m)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if results[0].Status != StatusDownloaded {
		t.Fatalf("status = %s, want downloaded", results[0].Status)
	}

	got, err := os.ReadFile(filepath.Join(string(cfg.AppDir), "models/vae/ae.safetensors"))
	if err != nil {
		t.Fatalf("reading fetched object: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("fetched object does not match seeded payload")
	}

	// A second pass must be a no-op.
	results, err = f.Fetch(ctx, m)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if results[0].Status != StatusSkipped {
		t.Errorf("second fetch status = %s, want skipped", results[0].Status)
	}
}
