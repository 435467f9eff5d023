//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the server in a new process group, detached from the console
func setSysProcAttr(cmd *exec.Cmd) {
	const detachedProcess = 0x00000008
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
