package core

import (
	"context"
	"os"
	"strings"

	"crash/internal/config"
	"crash/internal/download"
	"crash/internal/platform"
	pkgerrors "crash/pkg/errors"
)

// Fetcher is the part of the download engine the installer and updater use.
type Fetcher interface {
	Text(ctx context.Context, url string) (string, error)
	File(ctx context.Context, url, dest string) error
	FileWithProgress(ctx context.Context, url, dest string, progress download.ProgressFunc) error
}

// Resolver turns a resource into a download URL through a mirror.
type Resolver func(mirror config.Mirror, r config.Resource) (string, error)

// MirrorResolver resolves resources with the mirror's own URL rewrite.
func MirrorResolver(mirror config.Mirror, r config.Resource) (string, error) {
	return mirror.URL(r)
}

// Progress starts reporting for the named asset. finish runs once the
// download returns. A nil update downloads without reporting.
type Progress func(name string) (update download.ProgressFunc, finish func())

// coreVersion runs the installed binary with its version flag and returns
// the third whitespace-separated token ("Mihomo Meta v1.19.15 ...").
func coreVersion(procs platform.ProcessTable, store *config.Store, cfg *config.AppConfig) (string, error) {
	exe := store.ExePath(cfg)
	if !exists(exe) {
		return "", &pkgerrors.ConfigError{Path: exe, Err: pkgerrors.ErrCoreNotFound}
	}

	out, err := procs.Output(exe, cfg.Core.VersionArgs()...)
	if err != nil {
		return "", &pkgerrors.ConfigError{Path: exe, Err: err}
	}

	fields := strings.Fields(out)
	if len(fields) < 3 {
		return "", &pkgerrors.ConfigError{Path: exe, Err: pkgerrors.ErrVersionParse}
	}
	return fields[2], nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
