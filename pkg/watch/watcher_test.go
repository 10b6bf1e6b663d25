package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

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

func startWatcher(t *testing.T, dir string, debounce time.Duration) (<-chan []string, context.CancelFunc, <-chan error) {
	t.Helper()

	changes := make(chan []string, 16)
	w, err := NewWatcher(Config{Directories: []string{dir}, Debounce: debounce}, func(ctx context.Context, changed []string) {
		changes <- changed
	}, &TestLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher settle before the first write
	time.Sleep(50 * time.Millisecond)
	return changes, cancel, done
}

func TestWatcher_DebouncesTemplateChanges(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	template := filepath.Join(dir, "auv.urdf.xacro")
	include := filepath.Join(dir, "thrusters.xacro")
	require.NoError(t, os.WriteFile(template, []byte("<robot/>"), 0644))

	changes, cancel, done := startWatcher(t, dir, 200*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(template, []byte("<robot name=\"auv\"/>"), 0644))
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(include, []byte("<xacro/>"), 0644))

	select {
	case changed := <-changes:
		assert.Equal(t, []string{template, include}, changed)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change notification")
	}

	select {
	case changed := <-changes:
		t.Fatalf("unexpected second notification: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	changes, cancel, done := startWatcher(t, dir, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.rviz"), []byte("x"), 0644))

	select {
	case changed := <-changes:
		t.Fatalf("unexpected notification: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestNewWatcher_Errors(t *testing.T) {
	handler := func(ctx context.Context, changed []string) {}

	_, err := NewWatcher(Config{}, handler, &TestLogger{})
	assert.True(t, errors.IsValidationError(err))

	_, err = NewWatcher(Config{Directories: []string{t.TempDir()}}, nil, &TestLogger{})
	assert.True(t, errors.IsValidationError(err))

	_, err = NewWatcher(Config{Directories: []string{t.TempDir()}, Debounce: -time.Second}, handler, &TestLogger{})
	assert.True(t, errors.IsValidationError(err))

	_, err = NewWatcher(Config{Directories: []string{filepath.Join(t.TempDir(), "missing")}}, handler, &TestLogger{})
	assert.True(t, errors.IsIOError(err))
}
