// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"atelier-cli/pkg/manifest"
)

// httpFetcher downloads http-source assets with provider-specific
// credential injection.
type httpFetcher struct {
	client       *http.Client
	hfToken      string
	civitaiToken string
}

// newHTTPFetcher builds the shared HTTP client. A zero timeout means
// unbounded: model files run to tens of gigabytes and slow links are
// normal, so there is no sane global cap by default.
func newHTTPFetcher(hfToken, civitaiToken string, timeout time.Duration) *httpFetcher {
	return &httpFetcher{
		client:       &http.Client{Timeout: timeout},
		hfToken:      hfToken,
		civitaiToken: civitaiToken,
	}
}

// download fetches the asset to destPath. The body streams into a .part
// file alongside the destination; only after the transfer completes (and
// the checksum verifies, when declared) does the file take its final
// name. A crashed run therefore never leaves a truncated file that a
// later run would mistake for a finished download.
func (h *httpFetcher) download(ctx context.Context, asset manifest.Asset, destPath string) error {
	req, err := h.buildRequest(ctx, asset)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", asset.Name, resp.Status)
	}

	partPath := destPath + ".part"
	part, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", asset.Name, err)
	}

	_, copyErr := io.Copy(part, resp.Body)
	closeErr := part.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partPath)
		if copyErr != nil {
			return fmt.Errorf("writing %s: %w", asset.Name, copyErr)
		}
		return fmt.Errorf("writing %s: %w", asset.Name, closeErr)
	}

	if asset.SHA256 != "" {
		if err := VerifyFile(partPath, asset.SHA256); err != nil {
			_ = os.Remove(partPath)
			return err
		}
	}

	if err := os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("finalizing %s: %w", asset.Name, err)
	}
	return nil
}

// buildRequest applies the provider credential strategy: Hugging Face
// wants a bearer token header, Civitai wants a token query parameter.
func (h *httpFetcher) buildRequest(ctx context.Context, asset manifest.Asset) (*http.Request, error) {
	url := asset.Locator
	if asset.Provider == manifest.ProviderCivitai && h.civitaiToken != "" {
		sep := "?"
		for _, c := range url {
			if c == '?' {
				sep = "&"
				break
			}
		}
		url += sep + "token=" + h.civitaiToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", asset.Name, err)
	}

	if asset.Provider == manifest.ProviderHuggingFace && h.hfToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.hfToken)
	}
	return req, nil
}
