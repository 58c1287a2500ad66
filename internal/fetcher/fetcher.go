package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/version"
)

// DefaultUpstreamURL is the official Rust distribution server.
const DefaultUpstreamURL = "https://static.rust-lang.org/"

const defaultDirPermissions = 0o755

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errUnknownLength   = errors.New("response has no content length")
	errShortTransfer   = errors.New("transfer ended early")
	errUpstreamMissing = errors.New("upstream url must be absolute")
)

// Fetcher opens upstream files by slash-separated, URL-escaped relative path.
type Fetcher interface {
	// Fetch returns the body and its declared length. The caller closes the body.
	Fetch(ctx context.Context, relPath string) (io.ReadCloser, int64, error)
}

// HTTPFetcher fetches over HTTP(S).
type HTTPFetcher struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout bounds every request including the body transfer. Zero keeps the transport default.
func WithTimeout(timeout time.Duration) Option {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.client = &http.Client{
				Transport: f.client.Transport,
				Timeout:   timeout,
			}
		}
	}
}

// WithRateLimit caps the number of requests started per second. Zero disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(f *HTTPFetcher) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewHTTPFetcher builds a fetcher rooted at upstream.
func NewHTTPFetcher(upstream string, opts ...Option) (*HTTPFetcher, error) {
	parsed, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%q: %w", upstream, errUpstreamMissing)
	}

	f := &HTTPFetcher{
		base:   strings.TrimRight(parsed.String(), "/"),
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// URL resolves relPath against the upstream base.
func (f *HTTPFetcher) URL(relPath string) string {
	return f.base + "/" + strings.TrimPrefix(relPath, "/")
}

// Fetch issues a GET for relPath.
func (f *HTTPFetcher) Fetch(ctx context.Context, relPath string) (io.ReadCloser, int64, error) {
	finalURL := f.URL(relPath)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%s: %w: %w", finalURL, dist.ErrTransfer, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w: %w", finalURL, dist.ErrTransfer, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", dist.ErrTransfer, err)
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, 0, fmt.Errorf("%s, %s: %w: %w", finalURL, response.Status, dist.ErrTransfer, errBadHTTPStatus)
	}

	if response.ContentLength < 0 {
		_ = response.Body.Close()

		return nil, 0, fmt.Errorf("%s: %w: %w", finalURL, dist.ErrTransfer, errUnknownLength)
	}

	return newProgressReader(ctx, relPath, response.Body, response.ContentLength), response.ContentLength, nil
}

// ReadAll fetches relPath into memory, failing if fewer bytes than declared arrive.
func ReadAll(ctx context.Context, f Fetcher, relPath string) ([]byte, error) {
	body, length, err := f.Fetch(ctx, relPath)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = body.Close()
	}()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", relPath, dist.ErrTransfer, err)
	}

	if int64(len(data)) != length {
		return nil, fmt.Errorf("%s: got %d of %d bytes: %w: %w",
			relPath, len(data), length, dist.ErrTransfer, errShortTransfer)
	}

	return data, nil
}

// Download stores relPath at dest, creating parent directories.
func Download(ctx context.Context, f Fetcher, relPath, dest string) error {
	data, err := ReadAll(ctx, f, relPath)
	if err != nil {
		return err
	}

	dest = filepath.Clean(dest)
	if err = os.MkdirAll(filepath.Dir(dest), defaultDirPermissions); err != nil {
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}

	if err = os.WriteFile(dest, data, 0o644); err != nil { //nolint:gosec // Mirrored files are public.
		return fmt.Errorf("write %s: %w", dest, err)
	}

	return nil
}
