package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q", lock.Path())
	}

	h := ReadHolder(lock.Path())
	if h.PID != os.Getpid() || !h.Running || h.Started == "" {
		t.Errorf("unexpected holder %+v", h)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file still present: %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}

func TestLockConflict(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer first.Release()

	second, err := AcquireLock(dir)
	if err == nil {
		second.Release()
		t.Fatal("second AcquireLock should fail")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() {
		t.Errorf("holder PID = %d, want %d", lockErr.Holder.PID, os.Getpid())
	}
	if !strings.Contains(err.Error(), lockErr.LockPath) {
		t.Errorf("error should name the lock file: %s", err)
	}
	if ReadHolder(first.Path()).PID != os.Getpid() {
		t.Error("failed attempt must not clobber the holder's details")
	}
}

func TestReadHolder(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    Holder
	}{
		{"empty", "", Holder{}},
		{"garbage", "hello world", Holder{}},
		{"stale", "pid=999999999\nstarted=2026-01-01T00:00:00Z\n", Holder{PID: 999999999, Started: "2026-01-01T00:00:00Z"}},
		{"self", fmt.Sprintf("pid=%d\n", os.Getpid()), Holder{PID: os.Getpid(), Running: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			os.WriteFile(path, []byte(tt.content), 0o644)
			if got := ReadHolder(path); got != tt.want {
				t.Errorf("ReadHolder = %+v, want %+v", got, tt.want)
			}
		})
	}
	if got := ReadHolder(filepath.Join(dir, "missing")); got != (Holder{}) {
		t.Errorf("missing file: %+v", got)
	}
}

func TestHolderString(t *testing.T) {
	if s := (Holder{}).String(); s != "unknown process" {
		t.Errorf("got %q", s)
	}
	if s := (Holder{PID: 7, Running: false}).String(); !strings.Contains(s, "stale") {
		t.Errorf("got %q", s)
	}
}
