package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"crash/internal/config"
	pkgerrors "crash/pkg/errors"
)

func newTestInstaller(t *testing.T, store *config.Store, srv *assetServer) *Installer {
	t.Helper()
	return NewInstaller(store, testFetcher(), testLogger(), WithResolver(srv.resolver))
}

func TestInstallCoreIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, mihomoAssets(t))
	inst := newTestInstaller(t, store, srv)
	cfg := testConfig()

	if err := inst.InstallCore(context.Background(), cfg, false); err != nil {
		t.Fatalf("InstallCore() error = %v", err)
	}
	data, err := os.ReadFile(store.ExePath(cfg))
	if err != nil || !strings.HasPrefix(string(data), "ELF") {
		t.Fatalf("installed executable = %q, %v", data, err)
	}
	if srv.total() != 1 {
		t.Fatalf("requests = %d, want 1", srv.total())
	}

	if err := inst.InstallCore(context.Background(), cfg, false); err != nil {
		t.Fatal(err)
	}
	if srv.total() != 1 {
		t.Fatalf("second install made %d requests, want none", srv.total()-1)
	}
}

func TestInstallCoreForceRedownloads(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, mihomoAssets(t))
	inst := newTestInstaller(t, store, srv)
	cfg := testConfig()
	writeExe(t, store, cfg)

	if err := inst.InstallCore(context.Background(), cfg, true); err != nil {
		t.Fatal(err)
	}
	if err := inst.InstallCore(context.Background(), cfg, true); err != nil {
		t.Fatal(err)
	}
	if srv.total() != 2 {
		t.Fatalf("requests = %d, want 2", srv.total())
	}

	entries, _ := os.ReadDir(store.Dir())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".core-") {
			t.Fatalf("scratch dir %s left behind", e.Name())
		}
	}
}

func TestInstallCoreUnsupportedTarget(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, mihomoAssets(t))
	inst := newTestInstaller(t, store, srv)
	cfg := testConfig()
	cfg.Core = config.CoreClash
	cfg.Target = config.TargetAarch64Darwin

	err := inst.InstallCore(context.Background(), cfg, false)
	if !errors.Is(err, pkgerrors.ErrUnsupportedTarget) || !pkgerrors.IsKind(err, pkgerrors.KindDownload) {
		t.Fatalf("InstallCore() error = %v", err)
	}
	if srv.total() != 0 {
		t.Fatal("request made for an unsupported target")
	}
}

func TestInstallCoreMissingAsset(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, map[string][]byte{})
	inst := newTestInstaller(t, store, srv)

	err := inst.InstallCore(context.Background(), testConfig(), false)
	if !pkgerrors.IsKind(err, pkgerrors.KindDownload) {
		t.Fatalf("InstallCore() error = %v", err)
	}
}

func TestInstallUIStripsWrapperDir(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, mihomoAssets(t))
	inst := newTestInstaller(t, store, srv)
	cfg := testConfig()

	if err := inst.InstallUI(context.Background(), cfg, false); err != nil {
		t.Fatalf("InstallUI() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.UIDir(cfg), "index.html")); err != nil {
		t.Fatal(err)
	}

	if err := inst.InstallUI(context.Background(), cfg, false); err != nil {
		t.Fatal(err)
	}
	if srv.total() != 1 {
		t.Fatalf("requests = %d, want 1", srv.total())
	}
}

func TestInstallGeoIsBestEffort(t *testing.T) {
	store := newTestStore(t)
	assets := mihomoAssets(t)
	delete(assets, "geoip.dat.tar.gz")
	srv := newAssetServer(t, assets)
	inst := newTestInstaller(t, store, srv)

	failed := inst.InstallGeo(context.Background(), testConfig(), false)
	if !reflect.DeepEqual(failed, []string{"geoip.dat.tar.gz"}) {
		t.Fatalf("failed = %v", failed)
	}
	for _, name := range []string{"geoip.metadb", "geosite.dat"} {
		if _, err := os.Stat(filepath.Join(store.Dir(), name)); err != nil {
			t.Errorf("%s not installed: %v", name, err)
		}
	}

	before := srv.total()
	inst.InstallGeo(context.Background(), testConfig(), false)
	if got := srv.total() - before; got != 2 {
		t.Fatalf("second run made %d requests, want 2 (only the missing database, retried once)", got)
	}
}

func TestEnsureDefaultConfig(t *testing.T) {
	store := newTestStore(t)
	inst := NewInstaller(store, testFetcher(), testLogger())

	for _, core := range config.Cores {
		cfg := testConfig()
		cfg.Core = core
		if err := inst.EnsureDefaultConfig(cfg); err != nil {
			t.Fatalf("%s: %v", core, err)
		}
		data, err := os.ReadFile(store.CoreConfigPath(cfg))
		if err != nil {
			t.Fatalf("%s: %v", core, err)
		}
		if core == config.CoreSingbox && !strings.Contains(string(data), `"clash_api"`) {
			t.Errorf("Singbox default missing clash_api:\n%s", data)
		}
	}

	cfg := testConfig()
	path := store.CoreConfigPath(cfg)
	os.WriteFile(path, []byte("mine"), 0o644)
	if err := inst.EnsureDefaultConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "mine" {
		t.Fatal("existing config overwritten")
	}
}

func TestFreshInstallScenario(t *testing.T) {
	store := newTestStore(t)
	srv := newAssetServer(t, mihomoAssets(t))
	procs := newFakeProcs()
	clock := clockwork.NewFakeClockAt(epoch)

	cfg, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Core != config.CoreMihomo || cfg.MaxRuntimeHours != 0 {
		t.Fatalf("defaults = %+v", cfg)
	}
	cfg.Target = config.TargetX86_64Linux

	if err := newTestInstaller(t, store, srv).Install(context.Background(), cfg, false); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	data, err := os.ReadFile(store.CoreConfigPath(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\ntun:\n") {
		t.Fatalf("core config has no tun block:\n%s", data)
	}

	ctl := NewController(store, procs, clock, testLogger())
	if err := ctl.Start(cfg, false); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(procs.spawns) != 1 {
		t.Fatal("core not spawned")
	}
	if loaded, _ := store.Load(); loaded.StartTime == 0 {
		t.Fatal("start_time not persisted")
	}

	if err := ctl.Stop(cfg, false); err != nil {
		t.Fatal(err)
	}
	if loaded, _ := store.Load(); loaded.StartTime != 0 {
		t.Fatalf("start_time after stop = %d", loaded.StartTime)
	}
}
