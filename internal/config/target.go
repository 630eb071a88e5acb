package config

import (
	"fmt"
	"runtime"

	pkgerrors "crash/pkg/errors"
)

// Target is the OS/arch/ABI triple used to pick a release asset.
type Target string

const (
	TargetX86_64Linux      Target = "x86_64-unknown-linux-gnu"
	TargetX86_64LinuxMusl  Target = "x86_64-unknown-linux-musl"
	TargetAarch64Linux     Target = "aarch64-unknown-linux-gnu"
	TargetAarch64LinuxMusl Target = "aarch64-unknown-linux-musl"
	TargetX86_64Windows    Target = "x86_64-pc-windows-msvc"
	TargetX86_64WindowsGnu Target = "x86_64-pc-windows-gnu"
	TargetAarch64Windows   Target = "aarch64-pc-windows-msvc"
	TargetX86_64Darwin     Target = "x86_64-apple-darwin"
	TargetAarch64Darwin    Target = "aarch64-apple-darwin"
)

// Targets lists every known triple.
var Targets = []Target{
	TargetX86_64Linux,
	TargetX86_64LinuxMusl,
	TargetAarch64Linux,
	TargetAarch64LinuxMusl,
	TargetX86_64Windows,
	TargetX86_64WindowsGnu,
	TargetAarch64Windows,
	TargetX86_64Darwin,
	TargetAarch64Darwin,
}

// ParseTarget parses a target triple.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("target %q: %w", s, pkgerrors.ErrUnknownVariant)
}

// DetectTarget guesses the triple of the running host. Linux arm64 is
// reported as musl since the published arm64 builds are static.
func DetectTarget() Target {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/arm64":
		return TargetAarch64LinuxMusl
	case "windows/amd64":
		return TargetX86_64Windows
	case "windows/arm64":
		return TargetAarch64Windows
	case "darwin/amd64":
		return TargetX86_64Darwin
	case "darwin/arm64":
		return TargetAarch64Darwin
	default:
		return TargetX86_64Linux
	}
}

func (t Target) String() string { return string(t) }

func (t Target) MarshalText() ([]byte, error) {
	if _, err := ParseTarget(string(t)); err != nil {
		return nil, err
	}
	return []byte(t), nil
}

func (t *Target) UnmarshalText(b []byte) error {
	parsed, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
