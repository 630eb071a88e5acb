package types

import (
	"fmt"
	"strconv"
	"time"

	"github.com/docker/go-units"

	"crash/internal/config"
)

// Status represents a point-in-time snapshot of the managed core
type Status struct {
	Version     string // tool version
	Core        config.Core
	CoreVersion string // empty when the binary is missing or unreadable
	Running     bool
	PID         int
	Memory      uint64 // resident bytes, 0 when unknown
	StartedAt   time.Time
	Uptime      time.Duration
	UI          config.UI
	WebURL      string
}

// Line is one key/value row of the status report
type Line struct {
	Key   string
	Value string
}

// Lines returns the report rows in display order.
func (s *Status) Lines() []Line {
	core := s.Core.String()
	if s.CoreVersion != "" {
		core = fmt.Sprintf("%s(%s)", core, s.CoreVersion)
	}

	pid, memory := "-", "-"
	if s.Running {
		pid = strconv.Itoa(s.PID)
		if s.Memory > 0 {
			memory = units.HumanSize(float64(s.Memory))
		}
	}

	state := "❌"
	if s.Running {
		state = "✅"
		if !s.StartedAt.IsZero() {
			state += " " + FormatUptime(s.Uptime)
		}
	}

	return []Line{
		{Key: "version", Value: s.Version},
		{Key: "core", Value: core},
		{Key: "pid", Value: pid},
		{Key: "memory", Value: memory},
		{Key: "web", Value: fmt.Sprintf("%s (%s)", s.UI, s.WebURL)},
		{Key: "status", Value: state},
	}
}

// String renders the report as aligned "key : value" lines.
func (s *Status) String() string {
	lines := s.Lines()
	width := 0
	for _, l := range lines {
		width = max(width, len(l.Key))
	}

	var out string
	for _, l := range lines {
		out += fmt.Sprintf("%-*s : %s\n", width, l.Key, l.Value)
	}
	return out
}

// FormatUptime renders d with its two most significant units.
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %dm", secs/3600, secs%3600/60)
	default:
		return fmt.Sprintf("%dd %dh", secs/86400, secs%86400/3600)
	}
}
