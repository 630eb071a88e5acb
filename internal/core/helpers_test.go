package core

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"crash/internal/config"
	"crash/internal/download"
	pkgerrors "crash/pkg/errors"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	return config.NewStore(t.TempDir(), "test", testLogger())
}

func testConfig() *config.AppConfig {
	cfg := config.Default("test")
	cfg.Target = config.TargetX86_64Linux
	return cfg
}

func writeExe(t *testing.T, store *config.Store, cfg *config.AppConfig) {
	t.Helper()
	exe := store.ExePath(cfg)
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

type spawnCall struct {
	exe  string
	args []string
	env  []string
}

// fakeProcs is an in-memory process table keyed by executable base name.
type fakeProcs struct {
	mu      sync.Mutex
	running map[string]int
	nextPID int
	spawns  []spawnCall
	kills   []string
	output  string
	memory  uint64
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{running: map[string]int{}, nextPID: 100}
}

func (f *fakeProcs) PID(name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pid, ok := f.running[name]; ok {
		return pid, nil
	}
	return 0, pkgerrors.ErrProcessNotFound
}

func (f *fakeProcs) IsRunning(name string) bool {
	_, err := f.PID(name)
	return err == nil
}

func (f *fakeProcs) Kill(nameOrPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(nameOrPath)
	f.kills = append(f.kills, name)
	delete(f.running, name)
	return nil
}

func (f *fakeProcs) Spawn(exe string, args, env []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, spawnCall{exe: exe, args: args, env: env})
	f.nextPID++
	f.running[filepath.Base(exe)] = f.nextPID
	return nil
}

func (f *fakeProcs) Memory(pid int) (uint64, error) {
	return f.memory, nil
}

func (f *fakeProcs) Output(exe string, args ...string) (string, error) {
	return f.output, nil
}

func (f *fakeProcs) start(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPID++
	f.running[name] = f.nextPID
	return f.nextPID
}

// assetServer serves named assets and counts requests per name.
type assetServer struct {
	*httptest.Server
	mu     sync.Mutex
	assets map[string][]byte
	hits   map[string]int
}

func newAssetServer(t *testing.T, assets map[string][]byte) *assetServer {
	t.Helper()
	s := &assetServer{assets: assets, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		s.mu.Lock()
		s.hits[name]++
		body, ok := s.assets[name]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *assetServer) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

func (s *assetServer) resolver(mirror config.Mirror, r config.Resource) (string, error) {
	return s.URL + "/" + r.Name, nil
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(body))
	}
	tw.Close()
	gw.Close()
	return buf.Bytes()
}

func testFetcher() *download.Fetcher {
	cfg := download.DefaultFetcherConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Backoff = download.Backoff{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return download.NewFetcher(cfg, testLogger())
}

// mihomoAssets is a full asset set for a Mihomo install on linux amd64.
func mihomoAssets(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		"mihomo-linux-amd64-v1.19.15.tar.gz": tarGz(t, map[string]string{
			"mihomo-linux-amd64": strings.Repeat("ELF", 100),
			"LICENSE":            "MIT",
		}),
		"metacubexd.tar.gz": tarGz(t, map[string]string{
			"metacubexd/index.html": "<html>",
		}),
		"geoip.metadb.tar.gz": tarGz(t, map[string]string{"geoip.metadb": "metadb"}),
		"geoip.dat.tar.gz":    tarGz(t, map[string]string{"geoip.dat": "geoip"}),
		"geosite.dat.tar.gz":  tarGz(t, map[string]string{"geosite.dat": "geosite"}),
	}
}
