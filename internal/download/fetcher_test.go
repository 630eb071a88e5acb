package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	pkgerrors "crash/pkg/errors"
)

func newTestFetcher() *Fetcher {
	l := logrus.New()
	l.SetOutput(io.Discard)

	cfg := DefaultFetcherConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Backoff = Backoff{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	return NewFetcher(cfg, logrus.NewEntry(l))
}

// flaky fails the first n requests with 503.
func flaky(n int32, body string, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, body)
	}
}

func TestTextRetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(2, "mixed-port: 7890\n", &hits))
	defer srv.Close()

	got, err := newTestFetcher().Text(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "mixed-port: 7890\n" {
		t.Fatalf("Text() = %q", got)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", hits.Load())
	}
}

func TestTextGivesUpAfterRetryBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(100, "", &hits))
	defer srv.Close()

	_, err := newTestFetcher().Text(context.Background(), srv.URL)
	if !pkgerrors.IsKind(err, pkgerrors.KindDownload) {
		t.Fatalf("error kind = %v, want Download (%v)", pkgerrors.KindOf(err), err)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("last error not kept: %v", err)
	}
	if hits.Load() != 4 {
		t.Fatalf("server hit %d times, want 4", hits.Load())
	}
}

func TestClientErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := newTestFetcher().Text(context.Background(), srv.URL); err == nil {
		t.Fatal("Text() succeeded on 404")
	}
	if hits.Load() != 4 {
		t.Fatalf("server hit %d times, want 4", hits.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(100, "", &hits))
	defer srv.Close()

	f := newTestFetcher()
	f.backoff = Backoff{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for hits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := f.Text(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Text() error = %v, want context.Canceled", err)
	}
}

func TestFileWritesAndCleansUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "geo-bytes")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "geoip.dat")
	if err := newTestFetcher().File(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("File() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "geo-bytes" {
		t.Fatalf("dest = %q, %v", data, err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestFileDetectsShortWrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 1024))
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.write = func(file *os.File, data []byte) (int, error) {
		// The write reports success but only half reaches the disk.
		file.Write(data[:len(data)/2])
		return len(data), nil
	}

	dest := filepath.Join(t.TempDir(), "core.tar.gz")
	err := f.File(context.Background(), srv.URL, dest)
	if !errors.Is(err, pkgerrors.ErrSizeMismatch) {
		t.Fatalf("File() error = %v, want size mismatch", err)
	}
	if !pkgerrors.IsKind(err, pkgerrors.KindDownload) {
		t.Fatalf("error kind = %v", pkgerrors.KindOf(err))
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("dest exists after a failed size check")
	}
}

func TestFileWithProgressReportsTotals(t *testing.T) {
	payload := strings.Repeat("a", 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	var lastDone, lastTotal int64
	dest := filepath.Join(t.TempDir(), "ui.tar.gz")
	err := newTestFetcher().FileWithProgress(context.Background(), srv.URL, dest, func(done, total int64) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("FileWithProgress() error = %v", err)
	}
	if lastDone != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Fatalf("progress ended at %d/%d", lastDone, lastTotal)
	}
}

func TestFileWithProgressRetriesTruncatedBody(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", "100")
		io.WriteString(w, "short")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "geoip.dat")
	err := newTestFetcher().FileWithProgress(context.Background(), srv.URL, dest, nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("FileWithProgress() error = %v, want unexpected EOF", err)
	}
	if !pkgerrors.IsKind(err, pkgerrors.KindDownload) {
		t.Fatalf("error kind = %v", pkgerrors.KindOf(err))
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("server hit %d times, want 4", got)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("dest exists after a truncated download")
	}
}

func TestFileWithProgressUnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "part one ")
		w.(http.Flusher).Flush()
		io.WriteString(w, "part two")
	}))
	defer srv.Close()

	var totals []int64
	dest := filepath.Join(t.TempDir(), "stream")
	err := newTestFetcher().FileWithProgress(context.Background(), srv.URL, dest, func(done, total int64) {
		totals = append(totals, total)
	})
	if err != nil {
		t.Fatalf("FileWithProgress() error = %v", err)
	}
	for _, total := range totals {
		if total != 0 {
			t.Fatalf("total = %d for a chunked response, want 0", total)
		}
	}

	data, _ := os.ReadFile(dest)
	if string(data) != "part one part two" {
		t.Fatalf("dest = %q", data)
	}
}
