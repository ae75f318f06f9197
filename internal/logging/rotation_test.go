package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriter_NoRotationWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	payload := bytes.Repeat([]byte("x"), 4096)
	for i := 0; i < 10; i++ {
		if _, err := rw.Write(payload); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("rotation occurred despite MaxSizeMB=0")
	}
	if rw.CurrentSize() != int64(len(payload)*10) {
		t.Errorf("CurrentSize = %d, want %d", rw.CurrentSize(), len(payload)*10)
	}
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	// 1 MB limit; two writes of ~600 KB force one rotation.
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	payload := bytes.Repeat([]byte("y"), 600*1024)
	if _, err := rw.Write(payload); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if _, err := rw.Write(payload); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected backup file after rotation: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() != int64(len(payload)) {
		t.Errorf("current log size = %d, want %d", info.Size(), len(payload))
	}
}

func TestRotatingWriter_MaxBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()

	payload := bytes.Repeat([]byte("z"), 700*1024)
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(payload); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected .1 backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); !os.IsNotExist(err) {
		t.Error(".2 backup exists despite MaxBackups=1")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rw, err := NewRotatingWriter(path, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}
	// Double close is a no-op.
	if err := rw.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
