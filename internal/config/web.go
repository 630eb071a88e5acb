package config

import (
	"fmt"
	"path/filepath"
	"strings"

	pkgerrors "crash/pkg/errors"
)

// UI identifies one of the bundled web dashboards.
type UI string

const (
	UIMetacubexd UI = "Metacubexd"
	UIZashboard  UI = "Zashboard"
	UIYacd       UI = "Yacd"
)

// UIs lists every supported dashboard.
var UIs = []UI{UIMetacubexd, UIZashboard, UIYacd}

// ParseUI parses a dashboard name, case-insensitively.
func ParseUI(s string) (UI, error) {
	for _, u := range UIs {
		if strings.EqualFold(string(u), s) {
			return u, nil
		}
	}
	return "", fmt.Errorf("ui %q: %w", s, pkgerrors.ErrUnknownVariant)
}

func (u UI) String() string { return string(u) }

func (u UI) MarshalText() ([]byte, error) {
	if _, err := ParseUI(string(u)); err != nil {
		return nil, err
	}
	return []byte(u), nil
}

func (u *UI) UnmarshalText(b []byte) error {
	// Persisted values are exact; only user input is matched loosely.
	for _, known := range UIs {
		if string(known) == string(b) {
			*u = known
			return nil
		}
	}
	return fmt.Errorf("ui %q: %w", string(b), pkgerrors.ErrUnknownVariant)
}

// AssetName is the archive that carries the dashboard.
func (u UI) AssetName() string {
	return strings.ToLower(string(u)) + ".tar.gz"
}

// Resource returns the file resource for the dashboard bundle.
func (u UI) Resource() Resource {
	return Resource{
		Kind:  ResourceFile,
		Owner: assetsOwner,
		Repo:  assetsRepo,
		Ref:   "main",
		Name:  u.AssetName(),
	}
}

// WebConfig holds the controller and dashboard settings.
type WebConfig struct {
	UI     UI     `json:"ui"`
	Host   string `json:"host"`
	Secret string `json:"secret"`
}

// DefaultWebConfig returns the dashboard defaults.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		UI:   UIMetacubexd,
		Host: ":9090",
	}
}

// UIDir returns the directory the dashboard is installed into.
func (w WebConfig) UIDir(dir string) string {
	return filepath.Join(dir, w.UI.String())
}

// Port returns the port part of Host, or 9090 when Host has none.
func (w WebConfig) Port() string {
	if i := strings.LastIndex(w.Host, ":"); i >= 0 && i+1 < len(w.Host) {
		return w.Host[i+1:]
	}
	return "9090"
}

// ValidateHost checks the bind-address form (must contain a colon).
func ValidateHost(host string) error {
	if !strings.Contains(host, ":") {
		return fmt.Errorf("%q: %w", host, pkgerrors.ErrInvalidHost)
	}
	return nil
}
