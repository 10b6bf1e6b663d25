package substitution

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/process"

	"github.com/mattn/go-shellwords"
)

// StderrPolicy decides what a Command does with output on stderr
type StderrPolicy string

const (
	StderrFail    StderrPolicy = "fail"
	StderrWarn    StderrPolicy = "warn"
	StderrCapture StderrPolicy = "capture"
	StderrIgnore  StderrPolicy = "ignore"
)

// Command runs a program and substitutes its standard output.
// Parts are concatenated first, then split with shell quoting rules.
type Command struct {
	Parts    []Substitution
	OnStderr StderrPolicy
}

func NewCommand(parts ...Substitution) Command {
	return Command{Parts: parts, OnStderr: StderrFail}
}

func (c Command) Perform(ctx context.Context, lc Context) (string, error) {
	line, err := PerformAll(ctx, lc, c.Parts)
	if err != nil {
		return "", err
	}

	argv, err := shellwords.Parse(line)
	if err != nil {
		return "", errors.NewSubstitutionError("failed to split command", err).WithContext("command", line)
	}
	if len(argv) == 0 {
		return "", errors.NewSubstitutionError("command is empty", nil)
	}

	// Looked up in the launch environment, not in the launcher's own
	exe, err := process.ResolveExecutable(argv[0], lc.Getenv("PATH"))
	if err != nil {
		return "", errors.NewSubstitutionError("command not found", err).WithContext("command", line)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, argv[1:]...)
	cmd.Env = lc.Environ()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	lc.Logger().Debugf("Performing command substitution: %v", argv)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", errors.NewCancelledError("command substitution cancelled", ctx.Err()).WithContext("command", line)
		}
		return "", errors.NewSubstitutionError("command failed", err).
			WithContext("command", line).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}

	if stderr.Len() > 0 {
		switch c.OnStderr {
		case StderrIgnore:
		case StderrWarn:
			lc.Logger().Warnf("Command '%s' wrote to stderr: %s", line, strings.TrimSpace(stderr.String()))
		case StderrCapture:
			stdout.Write(stderr.Bytes())
		default:
			return "", errors.NewSubstitutionError("command wrote to stderr", nil).
				WithContext("command", line).
				WithContext("stderr", strings.TrimSpace(stderr.String()))
		}
	}

	return stdout.String(), nil
}

func (c Command) Describe() string {
	return "$(command '" + DescribeAll(c.Parts) + "')"
}
