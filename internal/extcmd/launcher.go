// Package extcmd starts user supplied shell commands without waiting for
// them.
package extcmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// DefaultShell is the interpreter used for every command.
const DefaultShell = "/bin/sh"

var log = logrus.WithField("component", "extcmd")

// Launcher starts a command and returns as soon as it is running.
type Launcher interface {
	Launch(command string) error
}

// ShellLauncher runs commands through `sh -c` as detached children.
//
// The child gets its own session, so signals aimed at the daemon's process
// group do not reach it. Only stdin, stdout and stderr are inherited: the Go
// runtime opens every descriptor close-on-exec and no ExtraFiles are passed.
// The exit status is never reported back; a background goroutine reaps the
// child and logs how it ended.
type ShellLauncher struct {
	Shell  string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewShellLauncher returns a launcher bound to the daemon's console.
func NewShellLauncher() *ShellLauncher {
	return &ShellLauncher{
		Shell:  DefaultShell,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Launch spawns command. The error only covers the spawn itself.
func (l *ShellLauncher) Launch(command string) error {
	shell := l.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.Command(shell, "-c", command)
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unable to start external command %q: %w", command, err)
	}

	log.WithField("pid", cmd.Process.Pid).Debugf("executing external command '%s'", command)
	go reap(cmd, command)
	return nil
}

func reap(cmd *exec.Cmd, command string) {
	if err := cmd.Wait(); err != nil {
		log.WithField("pid", cmd.Process.Pid).Warnf("external command '%s' ended: %v", command, err)
	}
}
