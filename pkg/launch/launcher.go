package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
	"github.com/core-tools/hsu-simlaunch/pkg/processfile"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"
)

const (
	DefaultSigtermTimeout = 5 * time.Second
	DefaultSigkillTimeout = 5 * time.Second
)

type LauncherOptions struct {
	// Identifies this launch in PID and log paths, generated when empty
	LaunchID string
	// Process logs and parameter files, derived from LaunchID when empty
	LogDirectory string
	// Wait after SIGINT before SIGTERM is sent
	SigtermTimeout time.Duration
	// Wait after SIGTERM before the process is killed
	SigkillTimeout time.Duration
	// Initial launch environment, os.Environ() when nil
	Environ []string
}

// Launcher executes a Description and supervises the processes it starts
type Launcher struct {
	options      LauncherOptions
	logger       logging.Logger
	screen       io.Writer
	screenMutex  sync.Mutex
	processFiles *processfile.ProcessFileManager

	mutex     sync.Mutex
	processes []*managedProcess
	counter   int
	running   bool
	// Supervise loops of the current run, idle is closed when it drops to zero
	active   int
	closing  bool
	idle     chan struct{}
	startCtx context.Context
	errs     *syncErrors
}

// NewLauncher creates a launcher writing screen output to screen.
// processFiles may be nil, PID files are then not written.
func NewLauncher(options LauncherOptions, screen io.Writer, processFiles *processfile.ProcessFileManager, logger logging.Logger) (*Launcher, error) {
	if screen == nil {
		return nil, errors.NewValidationError("screen writer cannot be nil", nil)
	}
	if options.SigtermTimeout < 0 || options.SigkillTimeout < 0 {
		return nil, errors.NewValidationError("termination timeouts cannot be negative", nil)
	}

	if options.LaunchID == "" {
		options.LaunchID = NewLaunchID(time.Now())
	}
	if options.LogDirectory == "" {
		if processFiles != nil {
			options.LogDirectory = processFiles.GenerateLogDirectoryPath(options.LaunchID)
		} else {
			options.LogDirectory = filepath.Join(os.TempDir(), "simlaunch-"+options.LaunchID)
		}
	}
	if options.SigtermTimeout == 0 {
		options.SigtermTimeout = DefaultSigtermTimeout
	}
	if options.SigkillTimeout == 0 {
		options.SigkillTimeout = DefaultSigkillTimeout
	}
	if options.Environ == nil {
		options.Environ = os.Environ()
	}

	return &Launcher{
		options:      options,
		logger:       logger,
		screen:       screen,
		processFiles: processFiles,
		closing:      true,
	}, nil
}

// NewLaunchID formats a launch identifier the way ROS names its log directories
func NewLaunchID(now time.Time) string {
	return now.Format("2006-01-02-15-04-05-000000") + "-" + strconv.Itoa(os.Getpid())
}

func (l *Launcher) Options() LauncherOptions {
	return l.options
}

// Run executes the actions of desc in order and blocks until every started
// process is gone. Cancelling ctx shuts all processes down.
func (l *Launcher) Run(ctx context.Context, desc *Description) error {
	if desc == nil {
		return errors.NewValidationError("launch description cannot be nil", nil)
	}

	// Cancelled on shutdown so that pending substitutions and respawns stop
	startCtx, cancelStarts := context.WithCancel(context.Background())
	defer cancelStarts()
	errs := &syncErrors{collection: errors.NewErrorCollection()}

	l.mutex.Lock()
	if l.running {
		l.mutex.Unlock()
		return errors.NewValidationError("launcher is already running", nil)
	}
	l.running = true
	l.closing = false
	// Held until every action has executed
	l.active = 1
	l.idle = make(chan struct{})
	l.startCtx = startCtx
	l.errs = errs
	idle := l.idle
	l.mutex.Unlock()
	defer func() {
		l.mutex.Lock()
		l.running = false
		l.closing = true
		l.mutex.Unlock()
	}()

	l.logger.Infof("Launching, id: %s, log directory: %s", l.options.LaunchID, l.options.LogDirectory)

	lc := NewContext(l.options.Environ, l.logger)

	aborted := false
	for i, action := range desc.Actions {
		if ctx.Err() != nil {
			break
		}
		if err := l.execute(startCtx, lc, action); err != nil {
			l.logger.Errorf("Action %d (%s) failed, shutting down: %v", i, action.Kind(), err)
			errs.add(errors.NewInternalError(fmt.Sprintf("action %d (%s) failed", i, action.Kind()), err))
			aborted = true
			break
		}
	}
	l.release()

	if !aborted {
		select {
		case <-ctx.Done():
			l.logger.Infof("Shutdown requested: %v", ctx.Err())
		case <-idle:
			l.logger.Infof("All processes have exited")
		}
	}

	l.mutex.Lock()
	l.closing = true
	l.mutex.Unlock()

	cancelStarts()
	errs.add(l.shutdownAll())
	<-idle

	l.logger.Infof("Launch finished, id: %s", l.options.LaunchID)
	return errs.collection.ToError()
}

// startSupervisor runs mp.supervise as part of the current run. It returns
// false once the run is closing.
func (l *Launcher) startSupervisor(mp *managedProcess, initial bool) bool {
	l.mutex.Lock()
	if l.closing {
		l.mutex.Unlock()
		return false
	}
	l.active++
	ctx, errs := l.startCtx, l.errs
	l.mutex.Unlock()

	go func() {
		defer l.release()
		if err := mp.supervise(ctx, initial); err != nil {
			errs.add(errors.NewProcessError("process failed to start", err).WithContext("process", mp.name))
		}
	}()
	return true
}

func (l *Launcher) release() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.active--
	if l.active == 0 {
		l.closing = true
		close(l.idle)
	}
}

func (l *Launcher) execute(startCtx context.Context, lc *Context, action Action) error {
	switch a := action.(type) {
	case LogInfo:
		msg, err := substitution.PerformAll(startCtx, lc, a.Msg)
		if err != nil {
			return err
		}
		l.logger.Infof("%s", msg)
		return nil

	case SetEnvironmentVariable:
		if a.Name == "" {
			return errors.NewValidationError("environment variable name cannot be empty", nil)
		}
		value, err := substitution.PerformAll(startCtx, lc, a.Value)
		if err != nil {
			return err
		}
		lc.Setenv(a.Name, value)
		l.logger.Debugf("Set environment variable %s=%s", a.Name, value)
		return nil

	case processAction:
		if err := ValidateProcessOptions(a.options()); err != nil {
			return err
		}
		base, err := a.baseName(startCtx, lc)
		if err != nil {
			return err
		}
		mp := l.register(base, a, lc.Snapshot())
		if !l.startSupervisor(mp, true) {
			return errors.NewInternalError("launch is closing", nil).WithContext("process", mp.name)
		}
		return nil

	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported action type %T", action), nil)
	}
}

func (l *Launcher) register(base string, action processAction, lc *Context) *managedProcess {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.counter++
	mp := newManagedProcess(base+"-"+strconv.Itoa(l.counter), base, action, lc, l)
	l.processes = append(l.processes, mp)
	return mp
}

func (l *Launcher) snapshotProcesses() []*managedProcess {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]*managedProcess(nil), l.processes...)
}

// shutdownAll terminates every process concurrently
func (l *Launcher) shutdownAll() error {
	processes := l.snapshotProcesses()
	errs := &syncErrors{collection: errors.NewErrorCollection()}

	var wg sync.WaitGroup
	for _, mp := range processes {
		wg.Add(1)
		go func(mp *managedProcess) {
			defer wg.Done()
			errs.add(mp.shutdown(context.Background()))
		}(mp)
	}
	wg.Wait()

	return errs.collection.ToError()
}

// Restart gracefully stops and starts again every process whose name or
// executable equals name. Substitutions are evaluated again. Processes that
// exited or failed to start are started again while the launch runs.
func (l *Launcher) Restart(ctx context.Context, name string) error {
	var matched []*managedProcess
	for _, mp := range l.snapshotProcesses() {
		if mp.name == name || mp.baseName == name {
			matched = append(matched, mp)
		}
	}
	if len(matched) == 0 {
		return errors.NewNotFoundError("no process matches '"+name+"'", nil)
	}

	errs := errors.NewErrorCollection()
	for _, mp := range matched {
		l.logger.Infof("Restart requested for %s", mp.name)
		errs.Add(mp.restart(ctx))
	}
	return errs.ToError()
}

// Processes returns the state of every process started so far, in start order
func (l *Launcher) Processes() []ProcessInfo {
	processes := l.snapshotProcesses()
	result := make([]ProcessInfo, 0, len(processes))
	for _, mp := range processes {
		result = append(result, mp.info())
	}
	return result
}

func (l *Launcher) writeLine(w io.Writer, line string) {
	l.screenMutex.Lock()
	defer l.screenMutex.Unlock()
	fmt.Fprintln(w, line)
}

type syncErrors struct {
	mutex      sync.Mutex
	collection *errors.ErrorCollection
}

func (s *syncErrors) add(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.collection.Add(err)
}
