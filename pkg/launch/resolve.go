package launch

import (
	"context"
	"path/filepath"

	"github.com/core-tools/hsu-simlaunch/pkg/ament"
	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/process"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"
)

// processAction is implemented by the actions that start a process
type processAction interface {
	Action
	options() ProcessOptions
	// baseName is the name the process counter is appended to
	baseName(ctx context.Context, lc *Context) (string, error)
	// commandLine returns the resolved executable and its arguments
	commandLine(ctx context.Context, lc *Context, name, paramsDir string) (string, []string, error)
}

func (a ExecuteProcess) options() ProcessOptions { return a.ProcessOptions }

func (a ExecuteProcess) baseName(ctx context.Context, lc *Context) (string, error) {
	if len(a.Cmd) == 0 {
		return "", errors.NewValidationError("process command cannot be empty", nil)
	}
	first, err := a.Cmd[0].Perform(ctx, lc)
	if err != nil {
		return "", err
	}
	return filepath.Base(first), nil
}

func (a ExecuteProcess) commandLine(ctx context.Context, lc *Context, name, paramsDir string) (string, []string, error) {
	argv, err := performEach(ctx, lc, a.Cmd)
	if err != nil {
		return "", nil, err
	}
	if len(argv) == 0 {
		return "", nil, errors.NewValidationError("process command cannot be empty", nil)
	}

	exe, err := process.ResolveExecutable(argv[0], lc.Getenv("PATH"))
	if err != nil {
		return "", nil, err
	}
	return exe, argv[1:], nil
}

func (a Node) options() ProcessOptions { return a.ProcessOptions }

func (a Node) baseName(ctx context.Context, lc *Context) (string, error) {
	if a.Executable == "" {
		return "", errors.NewValidationError("node executable cannot be empty", nil).WithContext("package", a.Package)
	}
	return filepath.Base(a.Executable), nil
}

func (a Node) commandLine(ctx context.Context, lc *Context, name, paramsDir string) (string, []string, error) {
	exe, err := ament.FindExecutable(a.Package, a.Executable, lc.Getenv)
	if err != nil {
		return "", nil, err
	}

	args, err := performEach(ctx, lc, a.Arguments)
	if err != nil {
		return "", nil, err
	}

	var rosArgs []string
	if a.Name != "" {
		rosArgs = append(rosArgs, "-r", "__node:="+a.Name)
	}
	if a.Namespace != "" {
		rosArgs = append(rosArgs, "-r", "__ns:="+a.Namespace)
	}
	if len(a.Parameters) > 0 {
		params, err := EvaluateParameters(ctx, lc, a.Parameters)
		if err != nil {
			return "", nil, err
		}
		path, err := WriteParametersFile(paramsDir, name, params)
		if err != nil {
			return "", nil, err
		}
		rosArgs = append(rosArgs, "--params-file", path)
	}

	if len(rosArgs) > 0 {
		args = append(args, "--ros-args")
		args = append(args, rosArgs...)
	}
	return exe, args, nil
}

func performEach(ctx context.Context, lc *Context, subs []substitution.Substitution) ([]string, error) {
	result := make([]string, 0, len(subs))
	for _, s := range subs {
		v, err := s.Perform(ctx, lc)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// buildExecution turns a process action into a complete execution config
func buildExecution(ctx context.Context, lc *Context, action processAction, name, paramsDir string) (process.ExecutionConfig, error) {
	exe, args, err := action.commandLine(ctx, lc, name, paramsDir)
	if err != nil {
		return process.ExecutionConfig{}, err
	}

	env := lc.Snapshot()
	for _, entry := range action.options().AdditionalEnv {
		value, err := substitution.PerformAll(ctx, lc, entry.Value)
		if err != nil {
			return process.ExecutionConfig{}, errors.NewSubstitutionError("failed to evaluate environment variable", err).
				WithContext("name", entry.Name)
		}
		env.Setenv(entry.Name, value)
	}

	return process.ExecutionConfig{
		ExecutablePath:   exe,
		Args:             args,
		Environment:      env.Environ(),
		WorkingDirectory: action.options().Cwd,
	}, nil
}
