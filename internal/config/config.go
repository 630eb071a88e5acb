package config

import (
	"unicode/utf8"

	pkgerrors "crash/pkg/errors"
)

// AppConfig is the single persisted settings record of an installation.
type AppConfig struct {
	Version         string    `json:"version"`
	StartTime       uint64    `json:"start_time"`
	Core            Core      `json:"core"`
	Proxy           Mirror    `json:"proxy"`
	Target          Target    `json:"target"`
	Web             WebConfig `json:"web"`
	URL             string    `json:"url"`
	MaxRuntimeHours uint64    `json:"max_runtime_hours"`
	StopForce       bool      `json:"stop_force"`
}

// Default returns the configuration written on first run.
func Default(version string) *AppConfig {
	return &AppConfig{
		Version: version,
		Core:    CoreMihomo,
		Proxy:   MirrorGithub,
		Target:  DetectTarget(),
		Web:     DefaultWebConfig(),
	}
}

// Validate checks the invariants that decoding alone cannot enforce.
func (c *AppConfig) Validate(dir string) error {
	if !utf8.ValidString(dir) {
		return &pkgerrors.ConfigError{Path: dir, Err: pkgerrors.ErrInvalidDir}
	}
	if err := ValidateHost(c.Web.Host); err != nil {
		return &pkgerrors.ConfigError{Err: err}
	}
	return nil
}
