package supervise

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPIDRoundTrip(t *testing.T) {
	runDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(runDir, "sync.pid"), []byte("12345\n"), 0o644); err != nil {
		t.Fatalf("seed pid file failed: %v", err)
	}
	pid, err := ReadPID(runDir, WorkerSync)
	if err != nil {
		t.Fatalf("read pid failed: %v", err)
	}
	if pid != 12345 {
		t.Fatalf("expected pid 12345, got %d", pid)
	}
}

func TestReadPIDRejectsMalformedFile(t *testing.T) {
	runDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(runDir, "sync.pid"), []byte("not a pid"), 0o644); err != nil {
		t.Fatalf("seed pid file failed: %v", err)
	}
	if _, err := ReadPID(runDir, WorkerSync); err == nil {
		t.Fatalf("expected malformed pid file rejected")
	}
}

func TestAliveForOwnProcess(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatalf("expected own pid to be alive")
	}
	if Alive(0) || Alive(-1) {
		t.Fatalf("expected non-positive pids to be dead")
	}
}

func TestStopWithoutPIDFileIsIdempotent(t *testing.T) {
	runDir := t.TempDir()
	stopped, err := Stop(runDir, WorkerSync)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if stopped {
		t.Fatalf("expected nothing to stop")
	}
}

func TestStatusWithoutPIDFileReportsNotStarted(t *testing.T) {
	runDir := t.TempDir()
	pid, alive := Status(runDir, WorkerSync)
	if pid != 0 || alive {
		t.Fatalf("expected no status without pid file, got pid=%d alive=%v", pid, alive)
	}
}

func TestRunDirSitsBesideConfig(t *testing.T) {
	got := RunDir("/home/user/.config/feishu-sync/config.yaml")
	if got != "/home/user/.config/feishu-sync/run" {
		t.Fatalf("unexpected run dir %s", got)
	}
}
