//go:build !windows

package platform

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	pkgerrors "crash/pkg/errors"
)

// PID looks the process up with pidof on Linux and pgrep elsewhere.
func (s *System) PID(name string) (int, error) {
	var (
		out string
		err error
	)
	if runtime.GOOS == "linux" {
		out, err = s.execute("pidof", name)
	} else {
		out, err = s.execute("pgrep", "-x", name)
	}
	if err != nil {
		// Both tools exit 1 when nothing matches; that is a stopped core.
		if exitedNonZero(err) {
			return 0, pkgerrors.ErrProcessNotFound
		}
		return 0, err
	}

	pid, err := firstPID(out)
	if err != nil {
		return 0, &pkgerrors.ProcessError{Name: name, Err: err}
	}

	// pidof can report a process that exited between the scan and now.
	if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
		return 0, pkgerrors.ErrProcessNotFound
	}
	return pid, nil
}

// Kill terminates by name with pkill, falling back to killall.
func (s *System) Kill(nameOrPath string) error {
	name := filepath.Base(nameOrPath)
	s.log.Infof("stopping %s", name)

	_, err := s.execute("pkill", "-f", name)
	if err == nil || exitCode(err) == 1 {
		return nil
	}
	s.log.Debugf("pkill %s failed: %v", name, err)

	if _, err := s.execute("killall", name); err != nil {
		return &pkgerrors.ProcessError{Name: name, Err: err}
	}
	return nil
}

// Memory reads VmRSS from /proc on Linux and asks ps elsewhere.
func (s *System) Memory(pid int) (uint64, error) {
	if runtime.GOOS == "linux" {
		return procStatusRSS(fmt.Sprintf("/proc/%d/status", pid))
	}

	out, err := s.execute("ps", "-o", "rss=", "-p", strconv.Itoa(pid))
	if err != nil {
		return 0, err
	}
	kb, err := strconv.ParseUint(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, err
	}
	return kb * 1024, nil
}

func procStatusRSS(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, scanner.Err()
}

func firstPID(out string) (int, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, pkgerrors.ErrProcessNotFound
	}
	return strconv.Atoi(fields[0])
}

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func helperAttr() *syscall.SysProcAttr {
	return nil
}
