package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"crash/internal/paths"
	pkgerrors "crash/pkg/errors"
)

// ProgressFunc receives the bytes received so far and the expected total,
// which is 0 when the server sends no Content-Length.
type ProgressFunc func(done, total int64)

// Fetcher handles HTTP downloads with retry logic
type Fetcher struct {
	client    *http.Client
	userAgent string
	backoff   Backoff
	log       *logrus.Entry

	// write puts data into the temp file; replaced in tests to simulate
	// short writes.
	write func(f *os.File, data []byte) (int, error)
}

// FetcherConfig represents fetcher configuration
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	Backoff   Backoff
}

// DefaultFetcherConfig returns default fetcher configuration. Release
// archives are large, so the overall request timeout is ten minutes.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent: "crash",
		Timeout:   600 * time.Second,
		Backoff:   DefaultBackoff,
	}
}

// NewFetcher creates a new fetcher
func NewFetcher(config FetcherConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: config.UserAgent,
		backoff:   config.Backoff,
		log:       log.WithField("component", "download"),
		write:     func(f *os.File, data []byte) (int, error) { return f.Write(data) },
	}
}

// Text fetches url and returns the body as text.
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	var body []byte
	err := f.retry(ctx, url, func(ctx context.Context) error {
		var err error
		body, err = f.fetch(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// File fetches url into dest. The body is written to dest.part, its size on
// disk checked against the bytes received, and only then renamed onto dest.
func (f *Fetcher) File(ctx context.Context, url, dest string) error {
	var body []byte
	err := f.retry(ctx, url, func(ctx context.Context) error {
		var err error
		body, err = f.fetch(ctx, url)
		return err
	})
	if err != nil {
		return err
	}

	if err := f.writeVerified(dest, body); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}
	f.log.Debugf("saved %s (%d bytes)", dest, len(body))
	return nil
}

// FileWithProgress streams url into dest, reporting progress as chunks
// arrive. A failed stream is retried from the start.
func (f *Fetcher) FileWithProgress(ctx context.Context, url, dest string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int64, int64) {}
	}
	return f.retry(ctx, url, func(ctx context.Context) error {
		return f.stream(ctx, url, dest, progress)
	})
}

// retry runs attempt until it succeeds, the backoff budget is spent or ctx is
// done. Every failure is retried except a size mismatch, which a second
// attempt would not fix.
func (f *Fetcher) retry(ctx context.Context, url string, attempt func(context.Context) error) error {
	var lastErr error
	attempts := f.backoff.MaxRetries + 1

	for n := 0; n < attempts; n++ {
		if n > 0 {
			delay := f.backoff.Delay(n)
			f.log.Warnf("retrying %s in %s (attempt %d/%d): %v", url, delay, n+1, attempts, lastErr)

			select {
			case <-ctx.Done():
				return &pkgerrors.DownloadError{URL: url, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, pkgerrors.ErrSizeMismatch) {
			break
		}
	}

	var dlErr *pkgerrors.DownloadError
	if errors.As(lastErr, &dlErr) {
		return lastErr
	}
	return &pkgerrors.DownloadError{
		URL: url,
		Err: fmt.Errorf("fetch failed after %d attempts: %w", attempts, lastErr),
	}
}

func (f *Fetcher) request(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        url,
		}
	}
	return resp, nil
}

// fetch performs a single attempt and returns the whole body.
func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.request(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (f *Fetcher) stream(ctx context.Context, url, dest string, progress ProgressFunc) error {
	resp, err := f.request(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	total := max(resp.ContentLength, 0)
	progress(0, total)

	part, err := createPart(dest)
	if err != nil {
		return err
	}
	defer os.Remove(part.Name())

	done, err := io.Copy(part, &progressReader{r: resp.Body, total: total, fn: progress})
	if cerr := part.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := commitPart(part.Name(), dest, done); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}
	return nil
}

func (f *Fetcher) writeVerified(dest string, data []byte) error {
	part, err := createPart(dest)
	if err != nil {
		return err
	}
	defer os.Remove(part.Name())

	_, err = f.write(part, data)
	if cerr := part.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return commitPart(part.Name(), dest, int64(len(data)))
}

func createPart(dest string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(dest+".part", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// commitPart checks the on-disk size of the temp file and renames it onto
// dest.
func commitPart(part, dest string, want int64) error {
	info, err := os.Stat(part)
	if err != nil {
		return err
	}
	if info.Size() != want {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", pkgerrors.ErrSizeMismatch, dest, info.Size(), want)
	}
	if err := os.Rename(part, dest); err != nil {
		return err
	}
	paths.ChownToRealUser(dest)
	return nil
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.done, p.total)
	}
	return n, err
}

// HTTPError represents an HTTP error
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s for %s", e.Status, e.URL)
}
