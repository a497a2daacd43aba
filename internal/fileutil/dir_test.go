package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestEnsureDir verifies directory creation including nested paths and
// idempotent behavior on existing directories.
func TestEnsureDir(t *testing.T) {
	t.Parallel()

	t.Run("creates nested directories", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "a", "b", "c")
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir() error: %v", err)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat created dir: %v", err)
		}
		if !info.IsDir() {
			t.Error("created path is not a directory")
		}
	})

	t.Run("existing directory is not an error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir() on existing dir error: %v", err)
		}
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "occupied")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		if err := EnsureDir(file); err == nil {
			t.Error("expected error when path exists as a file")
		}
	})
}

// TestEnsureDirForFile verifies that the parent directory of a file path is
// created while the file itself is untouched.
func TestEnsureDirForFile(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "logs", "slot-a", "stdout.log")
	if err := EnsureDirForFile(filePath); err != nil {
		t.Fatalf("EnsureDirForFile() error: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(filePath)); err != nil {
		t.Fatalf("parent directory not created: %v", err)
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Errorf("file should not exist, stat err = %v", err)
	}
}
