// Package extpipe keeps a long lived encoder process fed through its stdin.
package extpipe

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "extpipe")

// Session is the Closed -> Open -> Closed lifecycle around one encoder
// process. It is owned by a single camera context and is not safe for
// concurrent use.
type Session struct {
	Shell  string
	Stdout io.Writer
	Stderr io.Writer

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	filename string
	open     bool
}

// Usage is a sample of the encoder's resource consumption.
type Usage struct {
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
}

func New() *Session {
	return &Session{
		Shell:  "/bin/sh",
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// CheckWritable checks that path can be written by creating an empty file there and
// removing it again. Missing parent directories are created.
func CheckWritable(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// IsOpen reports whether frames are currently accepted.
func (s *Session) IsOpen() bool {
	return s.open && s.stdin != nil
}

// Filename is the movie being produced by the current (or last) session.
func (s *Session) Filename() string { return s.filename }

// PID of the encoder, 0 when closed.
func (s *Session) PID() int {
	if !s.open || s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Start spawns command through the shell with a write pipe on its stdin.
// The pipe is a plain *os.File, writes are not buffered in the daemon.
func (s *Session) Start(command, filename string) error {
	if s.open {
		return ErrAlreadyOpen
	}

	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-c", command)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("start encoder: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.filename = filename
	s.open = true
	log.WithField("pid", cmd.Process.Pid).Infof("pipe opened for %s", filename)
	return nil
}

// Write sends one raw frame. A failed write leaves the session open.
func (s *Session) Write(frame []byte) error {
	if !s.IsOpen() {
		return ErrNotOpen
	}
	if _, err := s.stdin.Write(frame); err != nil {
		return fmt.Errorf("write %d bytes to pipe: %w", len(frame), err)
	}
	return nil
}

// Usage samples the encoder process. Only meaningful while open.
func (s *Session) Usage() (Usage, error) {
	pid := s.PID()
	if pid == 0 {
		return Usage{}, ErrNotOpen
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Usage{}, err
	}
	u := Usage{PID: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		u.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil {
		u.RSSBytes = mem.RSS
	}
	return u, nil
}

// Close ends the session: the pipe is closed, which signals EOF to the
// encoder, and the call blocks until the process exits. The returned code is
// the process exit status (-1 when it was killed by a signal).
func (s *Session) Close() (int, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	s.open = false

	cmd := s.cmd
	closeErr := s.stdin.Close()
	waitErr := cmd.Wait()

	s.cmd = nil
	s.stdin = nil

	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	if closeErr != nil {
		log.Warnf("closing pipe for %s: %v", s.filename, closeErr)
	}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); ok {
			return code, nil
		}
		return code, fmt.Errorf("wait for encoder: %w", waitErr)
	}
	return code, nil
}
