//go:build windows

package platform

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"

	pkgerrors "crash/pkg/errors"
)

// PID scans tasklist for an image named name.
func (s *System) PID(name string) (int, error) {
	out, err := s.execute("tasklist", "/FI", "IMAGENAME eq "+name, "/NH", "/FO", "CSV")
	if err != nil {
		return 0, err
	}

	for _, rec := range tasklistRecords(out) {
		if len(rec) >= 2 && strings.EqualFold(rec[0], name) {
			pid, err := strconv.Atoi(strings.TrimSpace(rec[1]))
			if err != nil {
				return 0, &pkgerrors.ProcessError{Name: name, Err: err}
			}
			return pid, nil
		}
	}
	return 0, pkgerrors.ErrProcessNotFound
}

// Kill force-terminates by image name.
func (s *System) Kill(nameOrPath string) error {
	name := filepath.Base(nameOrPath)
	s.log.Infof("stopping %s", name)

	if _, err := s.execute("taskkill", "/F", "/IM", name); err != nil {
		return &pkgerrors.ProcessError{Name: name, Err: err}
	}
	return nil
}

// Memory reads the "Mem Usage" column of tasklist.
func (s *System) Memory(pid int) (uint64, error) {
	out, err := s.execute("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH", "/FO", "CSV")
	if err != nil {
		return 0, err
	}

	want := strconv.Itoa(pid)
	for _, rec := range tasklistRecords(out) {
		if len(rec) >= 5 && strings.TrimSpace(rec[1]) == want {
			return parseTasklistMemory(rec[4])
		}
	}
	return 0, pkgerrors.ErrProcessNotFound
}

// tasklistRecords parses CSV rows, skipping the INFO line tasklist prints
// when nothing matches.
func tasklistRecords(out string) [][]string {
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	recs, _ := r.ReadAll()
	return recs
}

// parseTasklistMemory turns "12,345 K" into bytes.
func parseTasklistMemory(s string) (uint64, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	kb, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return kb * 1024, nil
}

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

func helperAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
