package modelver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// HTTPVersionSource queries the backend's latest-version endpoint.
type HTTPVersionSource struct {
	client  *http.Client
	baseURL string
}

func NewHTTPVersionSource(baseURL string, timeout time.Duration) *HTTPVersionSource {
	return &HTTPVersionSource{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (s *HTTPVersionSource) LatestVersion(ctx context.Context) (Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/model-versions/latest", nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("build version request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Descriptor{}, fmt.Errorf("query version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Descriptor{}, fmt.Errorf("query version: unexpected status %d", resp.StatusCode)
	}

	var desc Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return Descriptor{}, fmt.Errorf("decode version response: %w", err)
	}
	if desc.Version < 1 {
		return Descriptor{}, fmt.Errorf("remote reported invalid version %d", desc.Version)
	}
	return desc, nil
}

// StorageResolver joins an artifact locator onto the storage base URL.
type StorageResolver struct {
	baseURL string
}

func NewStorageResolver(baseURL string) *StorageResolver {
	return &StorageResolver{baseURL: baseURL}
}

func (r *StorageResolver) ResolveURL(_ context.Context, locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("empty artifact locator")
	}
	u, err := url.JoinPath(r.baseURL, locator)
	if err != nil {
		return "", fmt.Errorf("resolve artifact url: %w", err)
	}
	return u, nil
}

// HTTPDownloader streams an artifact to disk. The write goes through a
// temporary file renamed into place, so dest either holds a complete
// artifact or does not exist.
type HTTPDownloader struct {
	client *http.Client
}

func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stream artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize artifact: %w", err)
	}
	return nil
}
