package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const minioScheme = "minio://"

// ErrUnsupportedLocator is returned for locators no configured backend can serve.
var ErrUnsupportedLocator = errors.New("unsupported storage locator")

// FormatLocator builds a minio://bucket/key locator.
func FormatLocator(bucket, key string) string {
	return minioScheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseLocator splits a minio:// locator. ok is false for anything else.
func ParseLocator(locator string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(locator, minioScheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(locator, minioScheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolver turns a MediaFile locator into a local file path.
type Resolver struct {
	minio   *MinioStore
	scratch string
}

// NewResolver creates a Resolver. minio may be nil when only local paths are used.
func NewResolver(minio *MinioStore, scratch string) *Resolver {
	return &Resolver{minio: minio, scratch: scratch}
}

// Resolve returns a readable local path for locator and a cleanup function
// that removes any temporary copy.
func (r *Resolver) Resolve(ctx context.Context, locator string) (string, func(), error) {
	noop := func() {}

	if bucket, key, ok := ParseLocator(locator); ok {
		if r.minio == nil {
			return "", noop, fmt.Errorf("%s: %w: MinIO is not configured", locator, ErrUnsupportedLocator)
		}
		dir, cleanup, err := r.tempDir()
		if err != nil {
			return "", noop, err
		}
		dest := filepath.Join(dir, path.Base(key))
		if err := r.minio.Download(ctx, bucket, key, dest); err != nil {
			cleanup()
			return "", noop, err
		}
		return dest, cleanup, nil
	}

	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		dir, cleanup, err := r.tempDir()
		if err != nil {
			return "", noop, err
		}
		dest := filepath.Join(dir, remoteName(locator))
		if err := downloadFile(ctx, locator, dest); err != nil {
			cleanup()
			return "", noop, err
		}
		return dest, cleanup, nil
	}

	if strings.Contains(locator, "://") {
		return "", noop, fmt.Errorf("%s: %w", locator, ErrUnsupportedLocator)
	}
	if _, err := os.Stat(locator); err != nil {
		return "", noop, fmt.Errorf("media file not readable: %w", err)
	}
	return locator, noop, nil
}

func (r *Resolver) tempDir() (string, func(), error) {
	if err := os.MkdirAll(r.scratch, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	dir, err := os.MkdirTemp(r.scratch, "fetch-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func remoteName(locator string) string {
	if u, err := url.Parse(locator); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "download.mxf"
}

// downloadFile 下载文件到指定路径
func downloadFile(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}
