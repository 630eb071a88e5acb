package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstallDirHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	if got := InstallDir(); got != dir {
		t.Fatalf("InstallDir() = %q, want %q", got, dir)
	}
	if got := StateDir(dir); got != filepath.Join(dir, "crash_config") {
		t.Fatalf("StateDir() = %q", got)
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 5), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := DirSize(dir); got != 15 {
		t.Fatalf("DirSize() = %d, want 15", got)
	}
}

func TestRealUserWithoutSudo(t *testing.T) {
	t.Setenv("SUDO_UID", "")
	if _, _, ok := RealUser(); ok {
		t.Fatal("RealUser() reported sudo without SUDO_UID")
	}
}
