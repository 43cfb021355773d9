//go:build unix

package extcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func waitForFile(t *testing.T, path string, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("file %s not written within %s", path, timeout)
	return nil
}

func TestLaunchRunsThroughShell(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	l := &ShellLauncher{}
	if err := l.Launch(fmt.Sprintf("echo hello | tr a-z A-Z > %s", out)); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	got := strings.TrimSpace(string(waitForFile(t, out, 5*time.Second)))
	if got != "HELLO" {
		t.Fatalf("output = %q, want HELLO", got)
	}
}

func TestLaunchDoesNotWait(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "late.txt")

	l := &ShellLauncher{}
	start := time.Now()
	if err := l.Launch(fmt.Sprintf("sleep 1; echo done > %s", out)); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Launch blocked for %s", elapsed)
	}
	if _, err := os.Stat(out); err == nil {
		t.Fatalf("child finished before Launch returned")
	}
	waitForFile(t, out, 5*time.Second)
}

func TestLaunchStartsNewSession(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sid.txt")

	l := &ShellLauncher{}
	// field 6 of /proc/<pid>/stat is the session id
	cmd := fmt.Sprintf("cut -d' ' -f6 /proc/$$/stat > %s.tmp; echo $$ >> %s.tmp; mv %s.tmp %s", out, out, out, out)
	if err := l.Launch(cmd); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	fields := strings.Fields(string(waitForFile(t, out, 5*time.Second)))
	if len(fields) != 2 {
		t.Fatalf("unexpected output %q", fields)
	}
	sid, _ := strconv.Atoi(fields[0])
	pid, _ := strconv.Atoi(fields[1])
	if sid != pid {
		t.Fatalf("child is not a session leader: sid=%d pid=%d", sid, pid)
	}
	if sid == os.Getpid() {
		t.Fatalf("child shares the test's session")
	}
}

func TestLaunchDoesNotLeakDescriptors(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("no /proc")
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	dir := t.TempDir()
	leaked := filepath.Join(dir, "leaked")
	done := filepath.Join(dir, "done")

	cmd := fmt.Sprintf("[ -e /proc/$$/fd/%d ] && touch %s; [ -e /proc/$$/fd/%d ] && touch %s; echo ok > %s",
		r.Fd(), leaked, w.Fd(), leaked, done)
	l := &ShellLauncher{}
	if err := l.Launch(cmd); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitForFile(t, done, 5*time.Second)
	if _, err := os.Stat(leaked); err == nil {
		t.Fatalf("pipe descriptor visible in child")
	}
}

func TestLaunchMissingShell(t *testing.T) {
	l := &ShellLauncher{Shell: "/nonexistent/sh"}
	if err := l.Launch("true"); err == nil {
		t.Fatalf("expected spawn error")
	}
}
