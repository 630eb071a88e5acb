// Package task registers the weekly refresh with the OS scheduler.
package task

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// Schedule runs the refresh every Wednesday at 03:00.
	Schedule = "0 3 * * 3"
	// Name is the Windows scheduled task name.
	Name = "crash"
	// Command is the subcommand the scheduler invokes.
	Command = "run-task"
)

// Runner runs an OS command and returns its stdout.
type Runner interface {
	Output(exe string, args ...string) (string, error)
}

// Registrar installs the scheduled refresh.
type Registrar struct {
	run  Runner
	goos string
	log  *logrus.Entry
}

// NewRegistrar creates a registrar for the running OS
func NewRegistrar(run Runner, log *logrus.Entry) *Registrar {
	return &Registrar{
		run:  run,
		goos: runtime.GOOS,
		log:  log.WithField("component", "task"),
	}
}

// CronEntry is the crontab line that refreshes the installation in dir.
func CronEntry(exe, dir string) string {
	return fmt.Sprintf("%s %s --dir %s %s", Schedule, cronQuote(exe), cronQuote(dir), Command)
}

// Register schedules the refresh of the installation in dir. On Unix the
// crontab line is only added when absent; added reports whether anything
// changed.
func (r *Registrar) Register(exe, dir string) (added bool, err error) {
	if r.goos == "windows" {
		return r.registerWindows(exe, dir)
	}
	return r.registerCron(exe, dir)
}

func (r *Registrar) registerCron(exe, dir string) (bool, error) {
	entry := CronEntry(exe, dir)

	// crontab -l fails when the user has no crontab yet.
	current, err := r.run.Output("crontab", "-l")
	if err != nil {
		r.log.Debugf("crontab -l: %v", err)
		current = ""
	}
	for _, line := range strings.Split(current, "\n") {
		if strings.TrimSpace(line) == entry {
			r.log.Infof("crontab already has %q", entry)
			return false, nil
		}
	}

	script := fmt.Sprintf("(crontab -l 2>/dev/null; echo %s) | crontab -", shQuote(entry))
	if _, err := r.run.Output("sh", "-c", script); err != nil {
		return false, fmt.Errorf("failed to update crontab: %w", err)
	}
	r.log.Infof("added crontab entry %q", entry)
	return true, nil
}

func (r *Registrar) registerWindows(exe, dir string) (bool, error) {
	_, err := r.run.Output("schtasks",
		"/Create", "/F",
		"/SC", "WEEKLY",
		"/D", "WED",
		"/ST", "03:00",
		"/TN", Name,
		"/TR", fmt.Sprintf("\"%s\" --dir \"%s\" %s", exe, dir, Command),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create scheduled task: %w", err)
	}
	r.log.Infof("scheduled task %s created", Name)
	return true, nil
}

// shQuote wraps s in single quotes for sh.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// cronQuote is shQuote plus escaping of %, which cron turns into a newline.
func cronQuote(s string) string {
	return strings.ReplaceAll(shQuote(s), "%", `\%`)
}
