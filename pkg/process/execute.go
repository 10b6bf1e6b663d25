package process

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
)

type ExecutionConfig struct {
	// Resolved path of the executable, see ResolveExecutable
	ExecutablePath string
	Args           []string
	// Complete environment of the child, nothing is inherited implicitly
	Environment      []string
	WorkingDirectory string
}

// StdExecuteCmd starts a process and returns it together with its combined stdout/stderr
type StdExecuteCmd func(ctx context.Context) (*os.Process, io.ReadCloser, error)

func NewStdExecuteCmd(execution ExecutionConfig, id string, logger logging.Logger) StdExecuteCmd {
	return func(ctx context.Context) (*os.Process, io.ReadCloser, error) {
		if ctx == nil {
			return nil, nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
		}

		if err := ValidateExecutionConfig(execution); err != nil {
			logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
			return nil, nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
		}

		if err := ctx.Err(); err != nil {
			return nil, nil, errors.NewCancelledError("launch cancelled before process start", err).WithContext("id", id)
		}

		logger.Debugf("Executing process, id: %s, executable path: '%s', args: %v, working directory: '%s'",
			id, execution.ExecutablePath, execution.Args, execution.WorkingDirectory)

		// Termination is driven by the caller's signal sequence, not by ctx
		cmd := exec.Command(execution.ExecutablePath, execution.Args...)
		cmd.Dir = execution.WorkingDirectory
		cmd.Env = execution.Environment

		// Platform-specific setup is handled in execute_windows.go or execute_unix.go
		setupProcessAttributes(cmd)

		reader, writer, err := os.Pipe()
		if err != nil {
			return nil, nil, errors.NewIOError("failed to create output pipe", err).WithContext("id", id)
		}
		cmd.Stdout = writer
		cmd.Stderr = writer

		err = cmd.Start()
		// The child owns its copy of the write end now
		writer.Close()
		if err != nil {
			reader.Close()
			return nil, nil, errors.NewProcessError("failed to start the process", err).
				WithContext("id", id).
				WithContext("executable_path", execution.ExecutablePath)
		}

		logger.Infof("Process started, id: %s, PID: %d", id, cmd.Process.Pid)

		return cmd.Process, reader, nil
	}
}
