package process

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestLogger struct{}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Warnf(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}

func writeScript(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho ok\n"), mode))
	return path
}

func TestValidateExecutionConfig(t *testing.T) {
	dir := t.TempDir()
	exe := writeScript(t, dir, "node", 0755)

	tests := []struct {
		name      string
		config    ExecutionConfig
		shouldErr bool
	}{
		{"valid", ExecutionConfig{ExecutablePath: exe, Environment: []string{"A=1"}, WorkingDirectory: dir}, false},
		{"missing_path", ExecutionConfig{}, true},
		{"not_found", ExecutionConfig{ExecutablePath: filepath.Join(dir, "nope")}, true},
		{"directory", ExecutionConfig{ExecutablePath: dir}, true},
		{"relative_workdir", ExecutionConfig{ExecutablePath: exe, WorkingDirectory: "relative"}, true},
		{"workdir_is_file", ExecutionConfig{ExecutablePath: exe, WorkingDirectory: exe}, true},
		{"bad_env", ExecutionConfig{ExecutablePath: exe, Environment: []string{"NOEQUALS"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExecutionConfig(tt.config)
			if tt.shouldErr {
				assert.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}

	first := t.TempDir()
	second := t.TempDir()
	writeScript(t, first, "gz", 0644)
	want := writeScript(t, second, "gz", 0755)
	pathList := strings.Join([]string{first, second}, string(os.PathListSeparator))

	path, err := ResolveExecutable("gz", pathList)
	require.NoError(t, err)
	assert.Equal(t, want, path)

	path, err = ResolveExecutable(want, "")
	require.NoError(t, err)
	assert.Equal(t, want, path)

	_, err = ResolveExecutable("rviz2", pathList)
	assert.True(t, errors.IsNotFoundError(err))

	_, err = ResolveExecutable("", pathList)
	assert.True(t, errors.IsValidationError(err))
}

func TestNewStdExecuteCmd_CombinedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	execute := NewStdExecuteCmd(ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", "echo out; echo err >&2; echo $MODEL_PATH"},
		Environment:    []string{"MODEL_PATH=/opt/models"},
	}, "sh-1", &TestLogger{})

	proc, output, err := execute(context.Background())
	require.NoError(t, err)
	defer output.Close()

	data, err := io.ReadAll(output)
	require.NoError(t, err)
	_, err = proc.Wait()
	require.NoError(t, err)

	assert.Equal(t, "out\nerr\n/opt/models\n", string(data))
}

func TestNewStdExecuteCmd_Errors(t *testing.T) {
	execute := NewStdExecuteCmd(ExecutionConfig{ExecutablePath: ""}, "bad", &TestLogger{})
	_, _, err := execute(context.Background())
	assert.True(t, errors.IsValidationError(err))

	if runtime.GOOS == "windows" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	execute = NewStdExecuteCmd(ExecutionConfig{ExecutablePath: "/bin/sh"}, "cancelled", &TestLogger{})
	_, _, err = execute(ctx)
	assert.True(t, errors.IsCancelledError(err))
}
