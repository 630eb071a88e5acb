package core

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"crash/internal/config"
	"crash/internal/platform"
	pkgerrors "crash/pkg/errors"
)

const (
	settleTimeout  = 3 * time.Second
	settleInterval = 100 * time.Millisecond
)

// Controller drives the Stopped/Running state machine of the managed core.
// Liveness comes from the OS process table on every call; the only state it
// keeps is what it persists into the config.
type Controller struct {
	store *config.Store
	procs platform.ProcessTable
	clock clockwork.Clock
	log   *logrus.Entry
}

// NewController creates a new controller
func NewController(store *config.Store, procs platform.ProcessTable, clock clockwork.Clock, log *logrus.Entry) *Controller {
	return &Controller{
		store: store,
		procs: procs,
		clock: clock,
		log:   log.WithField("component", "controller"),
	}
}

// IsRunning reports whether the configured core has a live process.
func (c *Controller) IsRunning(cfg *config.AppConfig) bool {
	return c.procs.IsRunning(cfg.Core.ExeName())
}

// Start launches the core unless it is already running. A running core is
// replaced when force is set or it has outlived max_runtime_hours. After a
// forced stop, start refuses to run until force is given.
func (c *Controller) Start(cfg *config.AppConfig, force bool) error {
	exe := c.store.ExePath(cfg)
	if !exists(exe) {
		return &pkgerrors.ProcessError{
			Name: exe,
			Err:  fmt.Errorf("%w: run 'crash install' first", pkgerrors.ErrCoreNotFound),
		}
	}

	if cfg.StopForce {
		if !force {
			return &pkgerrors.ProcessError{
				Name: cfg.Core.Name(),
				Err:  fmt.Errorf("%w: run 'crash start -f' instead", pkgerrors.ErrStopForced),
			}
		}
		cfg.StopForce = false
		if err := c.store.Save(cfg); err != nil {
			return err
		}
	}

	if c.IsRunning(cfg) {
		switch {
		case c.runtimeExceeded(cfg):
			c.log.Infof("%s exceeded max runtime of %dh, restarting", cfg.Core, cfg.MaxRuntimeHours)
		case force:
			c.log.Infof("%s is running, restarting", cfg.Core)
		default:
			c.log.Infof("%s is already running", cfg.Core)
			return nil
		}
		if err := c.Stop(cfg, false); err != nil {
			return err
		}
	}

	args := cfg.Core.Args(c.store.CoreConfigPath(cfg), cfg.Web.Host, cfg.Web.UI.String(), c.store.Dir())
	if err := c.procs.Spawn(exe, args, cfg.Core.Env(c.store.Dir())); err != nil {
		return err
	}

	cfg.StartTime = uint64(c.clock.Now().Unix())
	if err := c.store.Save(cfg); err != nil {
		return err
	}
	c.log.Infof("%s started", cfg.Core)
	return nil
}

// Stop kills the core if it is running and clears start_time. force is
// remembered so that a later start without force is refused.
func (c *Controller) Stop(cfg *config.AppConfig, force bool) error {
	cfg.StopForce = force

	name := cfg.Core.ExeName()
	if c.procs.IsRunning(name) {
		if err := c.procs.Kill(name); err != nil {
			return err
		}
		c.waitExit(name)
	}

	cfg.StartTime = 0
	if err := c.store.Save(cfg); err != nil {
		return err
	}
	c.log.Infof("%s stopped", cfg.Core)
	return nil
}

// Restart stops a running core and starts it again.
func (c *Controller) Restart(cfg *config.AppConfig) error {
	if c.IsRunning(cfg) {
		if err := c.Stop(cfg, false); err != nil {
			return fmt.Errorf("failed to stop core: %w", err)
		}
	}
	return c.Start(cfg, false)
}

// Version returns the installed core's version string.
func (c *Controller) Version(cfg *config.AppConfig) (string, error) {
	return coreVersion(c.procs, c.store, cfg)
}

func (c *Controller) runtimeExceeded(cfg *config.AppConfig) bool {
	if cfg.MaxRuntimeHours == 0 || cfg.StartTime == 0 {
		return false
	}
	now := uint64(c.clock.Now().Unix())
	if now < cfg.StartTime {
		return false
	}
	return now-cfg.StartTime >= cfg.MaxRuntimeHours*3600
}

// waitExit polls until name leaves the process table so a respawned core is
// not mistaken for the old one. Kill does not wait, so this bounds the gap.
func (c *Controller) waitExit(name string) {
	deadline := c.clock.Now().Add(settleTimeout)
	for c.procs.IsRunning(name) {
		if !c.clock.Now().Before(deadline) {
			c.log.Warnf("%s still running %s after kill", name, settleTimeout)
			return
		}
		c.clock.Sleep(settleInterval)
	}
}
