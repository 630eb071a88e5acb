package paths

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	// HomeEnv overrides the install directory.
	HomeEnv = "CRASH_HOME"

	stateDirName = "crash_config"
)

// InstallDir returns the directory the tool is installed in: $CRASH_HOME when
// set, otherwise the directory holding the running executable.
func InstallDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// StateDir returns <installDir>/crash_config. All managed files (the JSON
// config, core binary, core config, dashboards and geo databases) live here.
func StateDir(installDir string) string {
	return filepath.Join(installDir, stateDirName)
}

// RealUser returns the UID and GID of the real invoking user when running
// under sudo (via SUDO_UID / SUDO_GID). Returns ok=false when not under sudo.
func RealUser() (uid, gid int, ok bool) {
	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		return 0, 0, false
	}
	u, err := strconv.ParseInt(sudoUID, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	var g int64
	if sudoGID := os.Getenv("SUDO_GID"); sudoGID != "" {
		g, _ = strconv.ParseInt(sudoGID, 10, 64)
	}
	return int(u), int(g), true
}

// ChownToRealUser changes the owner of path to the real invoking user when
// running under sudo, so a later unprivileged invocation can rewrite the
// state it left behind. It is a no-op when not under sudo.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		os.Chown(path, uid, gid)
	}
}

// DirSize returns the total size in bytes of regular files under dir.
func DirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
