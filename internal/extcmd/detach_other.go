//go:build !unix

package extcmd

import "os/exec"

func detach(cmd *exec.Cmd) {}
