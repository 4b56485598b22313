// Package shellexec runs external commands, the narrow piece of the
// teacher's shell package the cache-eviction hook needs: a single
// bash -c invocation with captured combined output. The chroot/sudo/proxy
// plumbing the teacher carries for its image-build pipeline has no
// counterpart in a single-invocation patch apply, so it is dropped here.
package shellexec

import (
	"os/exec"

	"github.com/open-edge-platform/otapatch/internal/logger"
)

var log = logger.Logger()

// Executor runs a shell command and returns its combined output.
type Executor interface {
	ExecCmd(cmdStr string) (string, error)
	ExecCmdSilent(cmdStr string) (string, error)
}

type DefaultExecutor struct{}

// Default is the process-wide executor, overridable in tests.
var Default Executor = &DefaultExecutor{}

// ExecCmd runs cmdStr via bash -c, logging its output on success.
func (d *DefaultExecutor) ExecCmd(cmdStr string) (string, error) {
	cmd := exec.Command("bash", "-c", cmdStr)
	out, err := cmd.CombinedOutput()
	outStr := string(out)
	if err != nil {
		return outStr, &ExecError{Cmd: cmdStr, Output: outStr, Err: err}
	}
	if outStr != "" {
		log.Debugf(outStr)
	}
	return outStr, nil
}

// ExecCmdSilent runs cmdStr via bash -c without logging its output.
func (d *DefaultExecutor) ExecCmdSilent(cmdStr string) (string, error) {
	cmd := exec.Command("bash", "-c", cmdStr)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &ExecError{Cmd: cmdStr, Output: string(out), Err: err}
	}
	return string(out), nil
}

// ExecError wraps a failed command invocation with its captured output.
type ExecError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Output == "" {
		return "exec " + e.Cmd + ": " + e.Err.Error()
	}
	return "exec " + e.Cmd + ": output " + e.Output + ": " + e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExecCmd runs cmdStr against the process-wide Default executor.
func ExecCmd(cmdStr string) (string, error) {
	return Default.ExecCmd(cmdStr)
}

// ExecCmdSilent runs cmdStr against the process-wide Default executor
// without logging its output.
func ExecCmdSilent(cmdStr string) (string, error) {
	return Default.ExecCmdSilent(cmdStr)
}
