// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"atelier-cli/internal/config"
	"atelier-cli/pkg/manifest"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectFetcher downloads objectstore-source assets from an
// S3-compatible bucket.
type objectFetcher struct {
	client *minio.Client
	bucket string
}

// newObjectFetcher constructs the client once from resolved
// configuration. Construction does not touch the network; connectivity
// problems surface on the first download.
func newObjectFetcher(cfg config.ObjectStoreConfig) (*objectFetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, err
	}
	return &objectFetcher{client: client, bucket: cfg.Bucket}, nil
}

// download fetches the object named by the asset locator into destPath.
// FGetObject already stages into a temp file and renames on completion,
// matching the .part discipline of the HTTP path.
func (o *objectFetcher) download(ctx context.Context, asset manifest.Asset, destPath string) error {
	err := o.client.FGetObject(ctx, o.bucket, asset.Locator, destPath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("fetching %s from bucket %s: %w", asset.Locator, o.bucket, err)
	}

	if asset.SHA256 != "" {
		if err := VerifyFile(destPath, asset.SHA256); err != nil {
			_ = os.Remove(destPath)
			return err
		}
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
