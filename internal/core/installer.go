package core

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"crash/internal/config"
	"crash/internal/core/patch"
	"crash/internal/download"
	"crash/internal/paths"
	pkgerrors "crash/pkg/errors"
)

//go:embed defaults
var defaults embed.FS

// DefaultConfig returns the bundled starter configuration for core, before
// patching.
func DefaultConfig(core config.Core) (string, error) {
	data, err := defaults.ReadFile("defaults/" + core.ConfigFileName())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Installer downloads the core binary, the dashboard bundle and the geo
// databases into the state directory.
type Installer struct {
	store    *config.Store
	fetcher  Fetcher
	resolve  Resolver
	progress Progress
	log      *logrus.Entry
}

// InstallerOption customises an Installer.
type InstallerOption func(*Installer)

// WithResolver replaces the mirror URL resolution.
func WithResolver(r Resolver) InstallerOption {
	return func(i *Installer) { i.resolve = r }
}

// WithProgress reports streaming progress for every download.
func WithProgress(p Progress) InstallerOption {
	return func(i *Installer) { i.progress = p }
}

// NewInstaller creates a new installer
func NewInstaller(store *config.Store, fetcher Fetcher, log *logrus.Entry, opts ...InstallerOption) *Installer {
	i := &Installer{
		store:   store,
		fetcher: fetcher,
		resolve: MirrorResolver,
		log:     log.WithField("component", "installer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install writes a default core config if none exists, then installs the
// core, the dashboard and the geo databases in that order. Geo failures are
// logged and do not fail the install.
func (i *Installer) Install(ctx context.Context, cfg *config.AppConfig, force bool) error {
	i.log.Infof("installing %s (force: %v)", cfg.Core, force)

	if err := i.EnsureDefaultConfig(cfg); err != nil {
		return err
	}
	if err := i.InstallCore(ctx, cfg, force); err != nil {
		return err
	}
	if err := i.InstallUI(ctx, cfg, force); err != nil {
		return err
	}
	i.InstallGeo(ctx, cfg, force)
	return nil
}

// EnsureDefaultConfig writes the bundled config for the core, patched like a
// fetched one, when the core has no config yet.
func (i *Installer) EnsureDefaultConfig(cfg *config.AppConfig) error {
	path := i.store.CoreConfigPath(cfg)
	if exists(path) {
		return nil
	}

	raw, err := DefaultConfig(cfg.Core)
	if err != nil {
		return &pkgerrors.ConfigError{Path: path, Err: err}
	}

	i.log.Infof("creating default config %s", path)
	return config.WriteFileAtomic(path, []byte(patch.Config(cfg.Core, cfg.Web, raw)), 0o644)
}

// InstallCore downloads the release archive for the core and target and
// installs its executable under the core's canonical name. An existing
// executable is kept unless force is set.
func (i *Installer) InstallCore(ctx context.Context, cfg *config.AppConfig, force bool) error {
	exe := i.store.ExePath(cfg)
	if exists(exe) && !force {
		i.log.Infof("core already installed at %s", exe)
		return nil
	}

	res, err := cfg.Core.Resource(cfg.Target)
	if err != nil {
		return &pkgerrors.DownloadError{Err: err}
	}
	url, err := i.resolve(cfg.Proxy, res)
	if err != nil {
		return &pkgerrors.DownloadError{Err: err}
	}

	tmp, err := i.tempDir(".core-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	i.log.Infof("downloading %s from %s", cfg.Core, url)
	archive := filepath.Join(tmp, res.Name)
	if err := i.fetch(ctx, res.Name, url, archive); err != nil {
		return err
	}

	unpacked := filepath.Join(tmp, "unpacked")
	if err := download.Extract(archive, unpacked); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}

	bin, err := largestFile(unpacked)
	if err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}
	if err := replaceFile(bin, exe, 0o755); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}

	if !exists(exe) {
		return &pkgerrors.DownloadError{
			URL: url,
			Err: fmt.Errorf("%w: %s", pkgerrors.ErrArtifactMissing, exe),
		}
	}
	i.log.Infof("core installed at %s", exe)
	return nil
}

// InstallUI downloads the dashboard bundle into its directory. An existing
// directory is kept unless force is set.
func (i *Installer) InstallUI(ctx context.Context, cfg *config.AppConfig, force bool) error {
	dir := i.store.UIDir(cfg)
	if exists(dir) && !force {
		i.log.Infof("ui already installed at %s", dir)
		return nil
	}

	res := cfg.Web.UI.Resource()
	url, err := i.resolve(cfg.Proxy, res)
	if err != nil {
		return &pkgerrors.DownloadError{Err: err}
	}

	tmp, err := i.tempDir(".ui-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	i.log.Infof("downloading %s from %s", cfg.Web.UI, url)
	archive := filepath.Join(tmp, res.Name)
	if err := i.fetch(ctx, res.Name, url, archive); err != nil {
		return err
	}

	unpacked := filepath.Join(tmp, "unpacked")
	if err := download.Extract(archive, unpacked); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}
	if err := download.FlattenSingleDir(unpacked); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Rename(unpacked, dir); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}

	if !exists(dir) {
		return &pkgerrors.DownloadError{
			URL: url,
			Err: fmt.Errorf("%w: %s", pkgerrors.ErrArtifactMissing, dir),
		}
	}
	paths.ChownToRealUser(dir)
	i.log.Infof("ui installed at %s", dir)
	return nil
}

// InstallGeo downloads each geo database the core reads. It is best effort:
// a failed database is logged and the rest still install. The names that
// failed are returned.
func (i *Installer) InstallGeo(ctx context.Context, cfg *config.AppConfig, force bool) (failed []string) {
	for _, name := range cfg.Core.GeoFiles() {
		if err := i.installGeoFile(ctx, cfg, name, force); err != nil {
			i.log.Warnf("geo database %s not installed: %v", name, err)
			failed = append(failed, name)
		}
	}
	return failed
}

func (i *Installer) installGeoFile(ctx context.Context, cfg *config.AppConfig, name string, force bool) error {
	dest := filepath.Join(i.store.Dir(), download.StripArchiveSuffix(name))
	if exists(dest) && !force {
		i.log.Infof("geo database %s already installed", filepath.Base(dest))
		return nil
	}

	url, err := i.resolve(cfg.Proxy, config.GeoResource(name))
	if err != nil {
		return &pkgerrors.DownloadError{Err: err}
	}

	tmp, err := i.tempDir(".geo-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	archive := filepath.Join(tmp, name)
	if err := i.fetch(ctx, name, url, archive); err != nil {
		return err
	}
	if err := download.Extract(archive, i.store.Dir()); err != nil {
		return &pkgerrors.DownloadError{URL: url, Err: err}
	}

	if !exists(dest) {
		return &pkgerrors.DownloadError{
			URL: url,
			Err: fmt.Errorf("%w: %s", pkgerrors.ErrArtifactMissing, dest),
		}
	}
	paths.ChownToRealUser(dest)
	return nil
}

func (i *Installer) fetch(ctx context.Context, name, url, dest string) error {
	if i.progress != nil {
		if update, finish := i.progress(name); update != nil {
			if finish != nil {
				defer finish()
			}
			return i.fetcher.FileWithProgress(ctx, url, dest, update)
		}
	}
	return i.fetcher.File(ctx, url, dest)
}

// tempDir creates a scratch directory inside the state directory so the
// final rename never crosses filesystems.
func (i *Installer) tempDir(prefix string) (string, error) {
	if err := os.MkdirAll(i.store.Dir(), 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(i.store.Dir(), prefix+"*")
}

// largestFile returns the biggest regular file under dir. Release archives
// hold one executable next to small license and readme files.
func largestFile(dir string) (string, error) {
	var (
		best string
		size int64 = -1
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > size {
			best, size = path, info.Size()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", fmt.Errorf("%w: archive has no files", pkgerrors.ErrArtifactMissing)
	}
	return best, nil
}

func replaceFile(src, dst string, perm fs.FileMode) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	if err := os.Chmod(dst, perm); err != nil {
		return err
	}
	paths.ChownToRealUser(dst)
	return nil
}
