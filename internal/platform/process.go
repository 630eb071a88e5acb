package platform

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	pkgerrors "crash/pkg/errors"
)

// ProcessTable is the view of the OS process table used to manage a core
// that was spawned detached. Liveness is always re-queried by executable
// name; no handle to the child is kept.
//
// When several processes share a name, PID returns the first one the OS
// tool reports. Nothing records the spawned child's PID to tell them apart.
type ProcessTable interface {
	// PID returns the first process named name, or ErrProcessNotFound.
	PID(name string) (int, error)
	// IsRunning reports whether PID finds a process.
	IsRunning(name string) bool
	// Kill asks the OS to terminate processes by name. It does not wait.
	Kill(nameOrPath string) error
	// Spawn starts exe detached with stdio discarded.
	Spawn(exe string, args, env []string) error
	// Memory returns the resident memory of pid in bytes.
	Memory(pid int) (uint64, error)
	// Output runs exe to completion and returns its stdout.
	Output(exe string, args ...string) (string, error)
}

// System implements ProcessTable with the host's process tools.
type System struct {
	log *logrus.Entry
}

// New returns the process table of the running OS.
func New(log *logrus.Entry) *System {
	return &System{log: log.WithField("component", "platform")}
}

// IsRunning reports whether a process named name exists.
func (s *System) IsRunning(name string) bool {
	_, err := s.PID(name)
	return err == nil
}

// Spawn starts exe with args and extra env entries and lets it outlive the
// calling process.
func (s *System) Spawn(exe string, args, env []string) error {
	s.log.Infof("starting %s %s", exe, strings.Join(args, " "))

	if _, err := os.Stat(exe); err != nil {
		return &pkgerrors.ProcessError{Name: exe, Err: pkgerrors.ErrCoreNotFound}
	}

	cmd := exec.Command(exe, args...)
	cmd.Dir = filepath.Dir(exe)
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		s.log.Errorf("failed to start %s: %v", exe, err)
		return &pkgerrors.ProcessError{Name: exe, Err: err}
	}
	// The OS process table is the only source of truth from here on.
	return cmd.Process.Release()
}

// Output runs exe and returns its stdout.
func (s *System) Output(exe string, args ...string) (string, error) {
	return s.execute(exe, args...)
}

// execute runs a helper command and returns stdout. A command that cannot be
// started, or exits non-zero, is a PlatformError; callers that treat a
// non-zero exit as an answer inspect the wrapped *exec.ExitError.
func (s *System) execute(name string, args ...string) (string, error) {
	s.log.Debugf("execute %s %s", name, strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = helperAttr()

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = &exitDetail{err: err, stderr: msg}
		}
		return stdout.String(), &pkgerrors.PlatformError{Command: name, Err: err}
	}
	return stdout.String(), nil
}

// exitDetail keeps the stderr of a failed helper next to its exit error.
type exitDetail struct {
	err    error
	stderr string
}

func (e *exitDetail) Error() string { return e.err.Error() + ": " + e.stderr }
func (e *exitDetail) Unwrap() error { return e.err }

// exitedNonZero reports whether err is a helper that ran and exited non-zero,
// as opposed to one that could not be run at all.
func exitedNonZero(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// exitCode returns the exit code of a helper that ran, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
