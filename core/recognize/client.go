package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mxfedl/logger"
	"mxfedl/model"

	"go.uber.org/zap"
)

const defaultHTTPTimeout = 60 * time.Second

// ErrServiceUnavailable marks transport failures and 5xx answers.
var ErrServiceUnavailable = errors.New("recognition service unavailable")

// Client posts audio files to a fingerprinting service.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewClient constructs a recognition client for endpoint.
func NewClient(endpoint string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		log:        logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognize uploads the file at path. It returns nil, nil when the service
// answered but found no music.
func (c *Client) Recognize(ctx context.Context, path string) (*model.RecognitionResult, error) {
	body, contentType, err := buildUpload(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("recognize: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w: %v", filepath.Base(path), ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("recognize: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("recognize %s: %w: status %d", filepath.Base(path), ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("recognize %s: unexpected status %d: %s", filepath.Base(path), resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed shazamResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("recognize: parse payload: %w", err)
	}
	res := parsed.toResult()
	if res == nil {
		c.log.Debug("no music recognized", logger.String("file", filepath.Base(path)))
		return nil, nil
	}
	c.log.Info("music recognized",
		logger.String("file", filepath.Base(path)),
		logger.String("artist", res.Artist),
		logger.String("title", res.Title))
	return res, nil
}

// buildUpload streams the file as a multipart form without buffering it in memory.
func buildUpload(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("recognize: open %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		part, err := w.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = w.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, w.FormDataContentType(), nil
}
