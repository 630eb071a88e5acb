package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"crash/internal/config"
	"crash/internal/core/patch"
	pkgerrors "crash/pkg/errors"
)

// Updater refreshes the core config from the user's source.
type Updater struct {
	store   *config.Store
	fetcher Fetcher
	log     *logrus.Entry
}

// NewUpdater creates a new updater
func NewUpdater(store *config.Store, fetcher Fetcher, log *logrus.Entry) *Updater {
	return &Updater{
		store:   store,
		fetcher: fetcher,
		log:     log.WithField("component", "updater"),
	}
}

// UpdateConfig fetches cfg.URL (an http(s) URL or a local path), patches it
// for the configured core and writes it to the core config path. An existing
// config is kept unless force is set.
func (u *Updater) UpdateConfig(ctx context.Context, cfg *config.AppConfig, force bool) error {
	if cfg.URL == "" {
		return &pkgerrors.ConfigError{Err: pkgerrors.ErrConfigURLEmpty}
	}

	dest := u.store.CoreConfigPath(cfg)
	if exists(dest) && !force {
		u.log.Infof("config already exists at %s", dest)
		return nil
	}

	raw, err := u.read(ctx, cfg.URL)
	if err != nil {
		return err
	}
	// Core configs must be UTF-8 text.
	if !utf8.ValidString(raw) {
		return fmt.Errorf("read %s: %w", cfg.URL, pkgerrors.ErrInvalidUTF8)
	}

	patched := patch.Config(cfg.Core, cfg.Web, raw)
	u.lint(cfg.Core, patched)

	if err := config.WriteFileAtomic(dest, []byte(patched), 0o644); err != nil {
		return &pkgerrors.ConfigError{Path: dest, Err: err}
	}
	u.log.Infof("config updated from %s", cfg.URL)
	return nil
}

func (u *Updater) read(ctx context.Context, src string) (string, error) {
	if isRemote(src) {
		return u.fetcher.Text(ctx, src)
	}

	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return "", &pkgerrors.ConfigError{Path: src, Err: pkgerrors.ErrConfigSourceAbsent}
	}
	if err != nil {
		return "", &pkgerrors.ConfigError{Path: src, Err: err}
	}
	return string(data), nil
}

// lint warns when a YAML config will not parse. The core has the final say,
// so the file is written anyway.
func (u *Updater) lint(core config.Core, text string) {
	if core == config.CoreSingbox {
		return
	}
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		u.log.Warnf("%s config does not parse as YAML: %v", core, err)
	}
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
