package processfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ProcessFileMockLogger struct{}

func (m *ProcessFileMockLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (m *ProcessFileMockLogger) Debugf(format string, args ...interface{})               {}
func (m *ProcessFileMockLogger) Infof(format string, args ...interface{})                {}
func (m *ProcessFileMockLogger) Warnf(format string, args ...interface{})                {}
func (m *ProcessFileMockLogger) Errorf(format string, args ...interface{})               {}

func newTestManager(t *testing.T) *ProcessFileManager {
	t.Helper()
	return NewProcessFileManager(ProcessFileConfig{
		RunDirectory: filepath.Join(t.TempDir(), "run"),
		LogDirectory: filepath.Join(t.TempDir(), "log"),
	}, &ProcessFileMockLogger{})
}

func TestNewProcessFileManager_WithDefaults(t *testing.T) {
	manager := NewProcessFileManager(ProcessFileConfig{}, &ProcessFileMockLogger{})

	assert.Equal(t, DefaultAppName, manager.config.AppName)
	assert.Equal(t, DefaultAppName, filepath.Base(manager.RunDirectory()))
	assert.True(t, strings.HasSuffix(manager.config.LogDirectory, filepath.Join(DefaultAppName, "log")))
}

func TestGeneratePaths(t *testing.T) {
	manager := NewProcessFileManager(ProcessFileConfig{
		RunDirectory: "/run/user/1000/simlaunch",
		LogDirectory: "/home/u/.local/state/simlaunch/log",
	}, &ProcessFileMockLogger{})

	assert.Equal(t, filepath.Join("/run/user/1000/simlaunch", "launch-1", "gz-1.pid"),
		manager.GeneratePIDFilePath("launch-1", "gz-1"))
	assert.Equal(t, filepath.Join("/home/u/.local/state/simlaunch/log", "launch-1"),
		manager.GenerateLogDirectoryPath("launch-1"))
}

func TestWriteListRemovePIDFiles(t *testing.T) {
	manager := newTestManager(t)

	require.NoError(t, manager.WritePIDFile("launch-b", "rviz2-4", 4004))
	require.NoError(t, manager.WritePIDFile("launch-a", "gz-1", 1001))
	require.NoError(t, manager.WritePIDFile("launch-a", "create-3", 3003))

	records, err := manager.ListPIDFiles()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "launch-a", records[0].LaunchID)
	assert.Equal(t, "create-3", records[0].Name)
	assert.Equal(t, 3003, records[0].PID)
	assert.Equal(t, "gz-1", records[1].Name)
	assert.Equal(t, "rviz2-4", records[2].Name)

	require.NoError(t, manager.RemovePIDFile("launch-b", "rviz2-4"))
	_, err = os.Stat(filepath.Join(manager.RunDirectory(), "launch-b"))
	assert.True(t, os.IsNotExist(err), "empty launch directory should be removed")

	require.NoError(t, manager.RemovePIDFile("launch-a", "gz-1"))
	require.NoError(t, manager.RemovePIDFile("launch-a", "gz-1"), "removing twice is not an error")

	records, err = manager.ListPIDFiles()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "create-3", records[0].Name)
}

func TestListPIDFiles_SkipsGarbage(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.WritePIDFile("launch-a", "gz-1", 1001))

	launchDir := filepath.Join(manager.RunDirectory(), "launch-a")
	require.NoError(t, os.WriteFile(filepath.Join(launchDir, "broken.pid"), []byte("abc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(launchDir, "notes.txt"), []byte("1"), 0644))

	records, err := manager.ListPIDFiles()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "gz-1", records[0].Name)
}

func TestListPIDFiles_MissingRunDirectory(t *testing.T) {
	manager := newTestManager(t)

	records, err := manager.ListPIDFiles()
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		content     string
		expectedPID int
		checker     func(error) bool
	}{
		{"valid_pid", "1234\n", 1234, nil},
		{"empty_pid", "", 0, errors.IsValidationError},
		{"invalid_format", "abc", 0, errors.IsValidationError},
		{"zero_pid", "0", 0, errors.IsValidationError},
		{"negative_pid", "-1", 0, errors.IsValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			pid, err := ReadPIDFile(path)
			if tt.checker != nil {
				assert.True(t, tt.checker(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedPID, pid)
		})
	}

	_, err := ReadPIDFile(filepath.Join(dir, "missing.pid"))
	assert.True(t, errors.IsIOError(err))
}

func TestValidatePIDFileDirectory(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, ValidatePIDFileDirectory(filepath.Join(dir, "nested", "x.pid")))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.True(t, errors.IsValidationError(ValidatePIDFileDirectory(filepath.Join(file, "x.pid"))))
}
