package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	pkgerrors "crash/pkg/errors"
)

// Core identifies the proxy-core binary being managed.
type Core string

const (
	CoreMihomo  Core = "Mihomo"
	CoreClash   Core = "Clash"
	CoreSingbox Core = "Singbox"
)

// Cores lists every supported core in display order.
var Cores = []Core{CoreMihomo, CoreClash, CoreSingbox}

// ParseCore parses a core name, case-insensitively. Unknown names are an error.
func ParseCore(s string) (Core, error) {
	for _, c := range Cores {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("core %q: %w", s, pkgerrors.ErrUnknownVariant)
}

func (c Core) String() string { return string(c) }

func (c Core) MarshalText() ([]byte, error) {
	if _, err := ParseCore(string(c)); err != nil {
		return nil, err
	}
	return []byte(c), nil
}

func (c *Core) UnmarshalText(b []byte) error {
	for _, known := range Cores {
		if string(known) == string(b) {
			*c = known
			return nil
		}
	}
	return fmt.Errorf("core %q: %w", string(b), pkgerrors.ErrUnknownVariant)
}

// Name is the canonical name the executable is installed under.
func (c Core) Name() string { return string(c) }

// ExeName returns the executable file name with the host's extension.
func (c Core) ExeName() string {
	return c.Name() + exeExtension()
}

// ExePath returns the executable path inside dir.
func (c Core) ExePath(dir string) string {
	return filepath.Join(dir, c.ExeName())
}

// ConfigFileName is Mihomo.yaml, Clash.yaml or Singbox.json.
func (c Core) ConfigFileName() string {
	if c == CoreSingbox {
		return c.Name() + ".json"
	}
	return c.Name() + ".yaml"
}

// ReleaseAsset returns the version-pinned release archive for the core on target.
func (c Core) ReleaseAsset(target Target) (string, error) {
	var assets map[Target]string
	switch c {
	case CoreMihomo:
		assets = map[Target]string{
			TargetX86_64Windows:    "mihomo-windows-amd64-v1.19.15.tar.gz",
			TargetX86_64WindowsGnu: "mihomo-windows-amd64-v1.19.15.tar.gz",
			TargetX86_64Linux:      "mihomo-linux-amd64-v1.19.15.tar.gz",
			TargetX86_64LinuxMusl:  "mihomo-linux-amd64-v1.19.15.tar.gz",
			TargetAarch64Linux:     "mihomo-linux-arm64-v1.19.15.tar.gz",
			TargetAarch64LinuxMusl: "mihomo-linux-arm64-v1.19.15.tar.gz",
			TargetAarch64Darwin:    "mihomo-darwin-arm64-v1.19.15.tar.gz",
			TargetX86_64Darwin:     "mihomo-darwin-amd64-v1.19.15.tar.gz",
		}
	case CoreClash:
		assets = map[Target]string{
			TargetX86_64Linux:      "clash-linux-amd64.tar.gz",
			TargetX86_64LinuxMusl:  "clash-linux-amd64.tar.gz",
			TargetAarch64Linux:     "clash-linux-arm64.tar.gz",
			TargetAarch64LinuxMusl: "clash-linux-arm64.tar.gz",
		}
	case CoreSingbox:
		assets = map[Target]string{
			TargetX86_64Windows:    "sing-box-1.12.12-windows-amd64.tar.gz",
			TargetX86_64WindowsGnu: "sing-box-1.12.12-windows-amd64.tar.gz",
			TargetX86_64Linux:      "sing-box-1.12.12-linux-amd64.tar.gz",
			TargetX86_64LinuxMusl:  "sing-box-1.12.12-linux-amd64.tar.gz",
			TargetAarch64Linux:     "sing-box-1.12.12-linux-arm64.tar.gz",
			TargetAarch64LinuxMusl: "sing-box-1.12.12-linux-arm64.tar.gz",
		}
	}

	name, ok := assets[target]
	if !ok {
		return "", fmt.Errorf("%s on %s: %w", c, target, pkgerrors.ErrUnsupportedTarget)
	}
	return name, nil
}

// Resource returns the release resource that carries the core archive.
func (c Core) Resource(target Target) (Resource, error) {
	name, err := c.ReleaseAsset(target)
	if err != nil {
		return Resource{}, err
	}
	return Resource{
		Kind:  ResourceRelease,
		Owner: assetsOwner,
		Repo:  assetsRepo,
		Ref:   "nightly",
		Name:  name,
	}, nil
}

// GeoFiles lists the geo database archives the core reads.
func (c Core) GeoFiles() []string {
	switch c {
	case CoreMihomo, CoreClash:
		return []string{
			"geoip.metadb.tar.gz",
			"geoip.dat.tar.gz",
			"geosite.dat.tar.gz",
		}
	default:
		return nil
	}
}

// GeoResource returns the resource for one geo database archive.
func GeoResource(name string) Resource {
	return Resource{
		Kind:  ResourceFile,
		Owner: assetsOwner,
		Repo:  assetsRepo,
		Ref:   "main",
		Name:  name,
	}
}

// Env returns the extra environment for the core process.
func (c Core) Env(workDir string) []string {
	switch c {
	case CoreMihomo:
		// mihomo refuses an external-ui outside its home unless whitelisted.
		return []string{"SAFE_PATHS=" + workDir}
	case CoreSingbox:
		return []string{"ENABLE_DEPRECATED_LEGACY_DNS_SERVERS=true"}
	default:
		return nil
	}
}

// Args builds the launch argv (without the executable).
func (c Core) Args(configPath, host, ui, workDir string) []string {
	if c == CoreSingbox {
		return []string{"run", "-c", configPath, "-D", workDir}
	}
	return []string{
		"-f", configPath,
		"-ext-ctl", host,
		"-ext-ui", ui,
		"-d", workDir,
	}
}

// VersionArgs returns the flag that prints the core version.
func (c Core) VersionArgs() []string {
	if c == CoreSingbox {
		return []string{"version"}
	}
	return []string{"-v"}
}

func exeExtension() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
