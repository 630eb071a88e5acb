package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"crash/internal/paths"
	pkgerrors "crash/pkg/errors"
)

// FileName is the name of the persisted configuration file.
const FileName = "crash_config.json"

// Store loads and persists the AppConfig of one state directory.
type Store struct {
	dir     string
	version string
	log     *logrus.Entry
}

// NewStore creates a store rooted at the state directory dir. version is
// stamped into every saved file.
func NewStore(dir, version string, log *logrus.Entry) *Store {
	return &Store{
		dir:     dir,
		version: version,
		log:     log.WithField("component", "config"),
	}
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the config file path.
func (s *Store) Path() string { return filepath.Join(s.dir, FileName) }

// ExePath returns where the core executable of cfg lives.
func (s *Store) ExePath(cfg *AppConfig) string { return cfg.Core.ExePath(s.dir) }

// CoreConfigPath returns where the core's own configuration lives.
func (s *Store) CoreConfigPath(cfg *AppConfig) string {
	return filepath.Join(s.dir, cfg.Core.ConfigFileName())
}

// UIDir returns where the dashboard of cfg is installed.
func (s *Store) UIDir(cfg *AppConfig) string { return cfg.Web.UIDir(s.dir) }

// Load reads the config file, falling back to defaults when it does not
// exist. The result is validated and written back so that fields added by
// newer versions are filled in on disk.
func (s *Store) Load() (*AppConfig, error) {
	path := s.Path()
	s.log.Debugf("loading configuration from %s", path)

	cfg := Default(s.version)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Infof("config file not found, creating defaults at %s", path)
	case err != nil:
		return nil, &pkgerrors.ConfigError{Path: path, Err: err}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, &pkgerrors.ConfigError{Path: path, Err: fmt.Errorf("parse: %w", err)}
		}
	}

	if err := cfg.Validate(s.dir); err != nil {
		return nil, err
	}
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as pretty JSON through a temp file and rename, so readers
// never observe a partially written file.
func (s *Store) Save(cfg *AppConfig) error {
	path := s.Path()
	s.log.Debugf("saving configuration to %s", path)

	cfg.Version = s.version
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &pkgerrors.ConfigError{Path: path, Err: fmt.Errorf("serialize: %w", err)}
	}
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return &pkgerrors.ConfigError{Path: path, Err: err}
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place. The parent directory is created when missing.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	paths.ChownToRealUser(dir)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	paths.ChownToRealUser(path)
	return nil
}
