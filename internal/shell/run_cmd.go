// Package shell runs the external commands the installer and the removal
// executor shell out to: apt-get, docker, git, systemctl, and friends. It is the
// single choke point for process spawning, so failures always surface as a
// typed error with the captured output attached.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// CmdOutput holds the output streams captured from a spawned command.
type CmdOutput struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}

// RunCommand runs the given command, forwarding its output to the program's
// output streams.
func RunCommand(ctx context.Context, opts *options.PiSetupOptions, command string, args ...string) error {
	_, err := RunCommandWithOutput(ctx, opts, "", false, command, args...)

	return err
}

// RunCommandWithOutput runs the given command with the given arguments, capturing
// stdout and stderr. The command can be executed in a custom working directory by
// using the parameter workingDir; the process working directory is assumed if empty.
// When suppressStdout is set, stdout is captured but not forwarded, which keeps
// probe commands from cluttering the operator's terminal.
func RunCommandWithOutput(
	ctx context.Context,
	opts *options.PiSetupOptions,
	workingDir string,
	suppressStdout bool,
	command string,
	args ...string,
) (*CmdOutput, error) {
	output := CmdOutput{}

	opts.Logger.Debugf("Running command: %s %s", command, strings.Join(args, " "))

	var (
		cmdStdout io.Writer = io.MultiWriter(opts.Writer, &output.Stdout)
		cmdStderr io.Writer = io.MultiWriter(opts.ErrWriter, &output.Stderr)
	)

	if suppressStdout {
		cmdStdout = &output.Stdout
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workingDir
	cmd.Stdout = cmdStdout
	cmd.Stderr = cmdStderr

	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	if err := cmd.Run(); err != nil {
		err = ProcessExecutionError{
			Err:        err,
			Command:    command,
			Args:       args,
			WorkingDir: workingDir,
			Output:     output,
		}

		return &output, errors.New(err)
	}

	return &output, nil
}

// RunShellString splits a full command line the way a shell would and runs it.
// Used for configured probe and action strings such as "docker compose down -v".
func RunShellString(ctx context.Context, opts *options.PiSetupOptions, workingDir string, suppressStdout bool, cmdline string) (*CmdOutput, error) {
	parts, err := shlex.Split(cmdline)
	if err != nil {
		return nil, errors.New(err)
	}

	if len(parts) == 0 {
		return nil, errors.Errorf("empty command line")
	}

	return RunCommandWithOutput(ctx, opts, workingDir, suppressStdout, parts[0], parts[1:]...)
}

// ProcessExecutionError is returned when a spawned command could not be started
// or exited with a failure.
type ProcessExecutionError struct {
	Err        error
	Command    string
	Args       []string
	WorkingDir string
	Output     CmdOutput
}

func (err ProcessExecutionError) Error() string {
	return fmt.Sprintf("failed to run %s %s: %v", err.Command, strings.Join(err.Args, " "), err.Err)
}

func (err ProcessExecutionError) Unwrap() error {
	return err.Err
}

// ExitCode returns the exit code of the failed command, or -1 if the command
// never ran.
func (err ProcessExecutionError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(err.Err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
