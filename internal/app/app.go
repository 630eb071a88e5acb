package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"crash/internal/config"
	"crash/internal/core"
	"crash/internal/download"
	"crash/internal/paths"
	"crash/internal/platform"
	"crash/internal/task"
)

// App is the per-invocation context: the loaded configuration and the
// components that act on it. Nothing here outlives the command.
type App struct {
	InstallDir string
	Store      *config.Store
	Config     *config.AppConfig

	Procs      platform.ProcessTable
	Clock      clockwork.Clock
	Installer  *core.Installer
	Controller *core.Controller
	Updater    *core.Updater
	Reporter   *core.Reporter
	Tasks      *task.Registrar

	Log *logrus.Entry
}

// Options controls how the App is built
type Options struct {
	// Dir overrides the install directory.
	Dir      string
	Version  string
	Logger   *logrus.Logger
	Progress core.Progress
}

// New loads the configuration and wires the components around it
func New(opts Options) (*App, error) {
	installDir := opts.Dir
	if installDir == "" {
		installDir = paths.InstallDir()
	}
	installDir, err := filepath.Abs(installDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve install directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logrus.NewEntry(logger)

	store := config.NewStore(paths.StateDir(installDir), opts.Version, log)
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	procs := platform.New(log)

	fetcherConfig := download.DefaultFetcherConfig()
	fetcherConfig.UserAgent = "crash/" + opts.Version
	fetcher := download.NewFetcher(fetcherConfig, log)

	var installerOpts []core.InstallerOption
	if opts.Progress != nil {
		installerOpts = append(installerOpts, core.WithProgress(opts.Progress))
	}

	return &App{
		InstallDir: installDir,
		Store:      store,
		Config:     cfg,
		Procs:      procs,
		Clock:      clock,
		Installer:  core.NewInstaller(store, fetcher, log, installerOpts...),
		Controller: core.NewController(store, procs, clock, log),
		Updater:    core.NewUpdater(store, fetcher, log),
		Reporter:   core.NewReporter(store, procs, clock, opts.Version, log),
		Tasks:      task.NewRegistrar(procs, log),
		Log:        log.WithField("component", "app"),
	}, nil
}

// Save persists the current configuration
func (a *App) Save() error {
	return a.Store.Save(a.Config)
}

// RunTask is the scheduled refresh: pull the config, refresh the geo
// databases and restart the core.
func (a *App) RunTask(ctx context.Context) error {
	if err := a.Updater.UpdateConfig(ctx, a.Config, true); err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	if failed := a.Installer.InstallGeo(ctx, a.Config, true); len(failed) > 0 {
		a.Log.Warnf("geo databases not refreshed: %v", failed)
	}
	return a.Controller.Restart(a.Config)
}

// Executable returns the path of the running crash binary, used as the
// target of the scheduled task.
func Executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
