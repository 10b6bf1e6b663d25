package launch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
	"github.com/core-tools/hsu-simlaunch/pkg/process"
)

// ProcessState represents the lifecycle state of a launched process
type ProcessState string

const (
	ProcessStateStarting    ProcessState = "starting"
	ProcessStateRunning     ProcessState = "running"
	ProcessStateStopping    ProcessState = "stopping"
	ProcessStateRespawning  ProcessState = "respawning"
	ProcessStateExited      ProcessState = "exited"
	ProcessStateFailedStart ProcessState = "failed_start"
)

const outputDrainTimeout = 2 * time.Second

// ProcessInfo is a point-in-time view of a launched process
type ProcessInfo struct {
	Name       string
	Executable string
	PID        int
	State      ProcessState
	Starts     int
	Respawns   int
	ExitCode   int
}

type managedProcess struct {
	name     string
	baseName string
	action   processAction
	// Environment captured when the action ran, reused on respawn and restart
	lc       *Context
	launcher *Launcher
	logger   logging.Logger
	respawn  *respawnBreaker

	mutex            sync.Mutex
	state            ProcessState
	proc             *os.Process
	exited           chan struct{}
	starts           int
	exitCode         int
	restartRequested bool
	// A supervise loop owns the process, set before it starts
	supervising bool
	wakeCh      chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newManagedProcess(name, baseName string, action processAction, lc *Context, l *Launcher) *managedProcess {
	logger := logging.WithPrefix(l.logger, "["+name+"] ")
	return &managedProcess{
		name:        name,
		baseName:    baseName,
		action:      action,
		lc:          lc,
		launcher:    l,
		logger:      logger,
		respawn:     newRespawnBreaker(action.options(), logger),
		state:       ProcessStateStarting,
		supervising: true,
		wakeCh:      make(chan struct{}, 1),
		shutdownCh:  make(chan struct{}),
	}
}

func (mp *managedProcess) info() ProcessInfo {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	info := ProcessInfo{
		Name:       mp.name,
		Executable: mp.baseName,
		State:      mp.state,
		Starts:     mp.starts,
		Respawns:   mp.respawn.count(),
		ExitCode:   mp.exitCode,
	}
	if mp.proc != nil {
		info.PID = mp.proc.Pid
	}
	return info
}

func (mp *managedProcess) setState(state ProcessState) {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()
	mp.state = state
}

func (mp *managedProcess) isShuttingDown() bool {
	select {
	case <-mp.shutdownCh:
		return true
	default:
		return false
	}
}

// supervise starts the process and keeps it going according to its respawn
// setting. Only a failed initial start is returned. A later start failure
// leaves the process down until it is restarted.
func (mp *managedProcess) supervise(ctx context.Context, initial bool) error {
	for {
		if mp.isShuttingDown() {
			mp.settle()
			return nil
		}

		mp.beginStart()
		if err := mp.runOnce(ctx); err != nil {
			mp.setState(ProcessStateFailedStart)
			mp.logger.Errorf("Failed to start process: %v", err)
			if initial {
				mp.mutex.Lock()
				mp.supervising = false
				mp.mutex.Unlock()
				return err
			}
			if !mp.settle() {
				mp.logger.Warnf("Process stays down until it is restarted")
				return nil
			}
			mp.logger.Infof("Restarting process")
			continue
		}
		initial = false

		if mp.isShuttingDown() {
			mp.settle()
			return nil
		}

		mp.mutex.Lock()
		restart := mp.restartRequested
		mp.mutex.Unlock()
		if restart {
			mp.logger.Infof("Restarting process")
			mp.respawn.reset()
			continue
		}

		if !mp.action.options().Respawn {
			if !mp.settle() {
				return nil
			}
			mp.logger.Infof("Restarting process")
			continue
		}

		delay, err := mp.respawn.next()
		if err != nil {
			mp.logger.Warnf("Not respawning process: %v", err)
			if !mp.settle() {
				return nil
			}
			mp.logger.Infof("Restarting process")
			mp.respawn.reset()
			continue
		}

		mp.setState(ProcessStateRespawning)
		mp.logger.Infof("Respawning process in %v", delay)
		select {
		case <-time.After(delay):
		case <-mp.wakeCh:
			mp.logger.Infof("Restarting process")
			mp.respawn.reset()
		case <-mp.shutdownCh:
			mp.settle()
			return nil
		}
	}
}

// beginStart clears restart requests that the coming start satisfies
func (mp *managedProcess) beginStart() {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	mp.restartRequested = false
	select {
	case <-mp.wakeCh:
	default:
	}
	mp.state = ProcessStateStarting
}

// settle ends supervision unless a restart was requested meanwhile, in which
// case it consumes the request and returns true
func (mp *managedProcess) settle() bool {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	if mp.restartRequested && !mp.isShuttingDown() {
		mp.restartRequested = false
		return true
	}
	mp.supervising = false
	return false
}

// runOnce starts one instance and blocks until it has exited.
// A non-nil error means the instance never started.
func (mp *managedProcess) runOnce(ctx context.Context) error {
	l := mp.launcher

	execution, err := buildExecution(ctx, mp.lc, mp.action, mp.name, l.options.LogDirectory)
	if err != nil {
		return err
	}

	output, closeOutput, err := mp.openOutput()
	if err != nil {
		return err
	}
	defer closeOutput()

	// Signalled shutdown must not race with a start that is just beginning
	mp.mutex.Lock()
	if mp.isShuttingDown() {
		mp.mutex.Unlock()
		return nil
	}
	proc, reader, err := process.NewStdExecuteCmd(execution, mp.name, l.logger)(ctx)
	if err != nil {
		mp.mutex.Unlock()
		return err
	}
	exited := make(chan struct{})
	mp.proc = proc
	mp.exited = exited
	mp.state = ProcessStateRunning
	mp.starts++
	restartPending := mp.restartRequested
	mp.mutex.Unlock()

	mp.logger.Infof("process started with pid [%d]", proc.Pid)
	if restartPending {
		// Requested while substitutions were evaluated, they may be stale
		go mp.terminate(context.Background())
	}
	if l.processFiles != nil {
		if err := l.processFiles.WritePIDFile(l.options.LaunchID, mp.name, proc.Pid); err != nil {
			mp.logger.Warnf("Failed to write PID file: %v", err)
		}
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		mp.pump(reader, output)
	}()

	state, waitErr := proc.Wait()
	// Descendants may keep the pipe open after the process itself exited
	select {
	case <-pumpDone:
	case <-time.After(outputDrainTimeout):
		mp.logger.Debugf("Output still open after exit, closing")
	}
	reader.Close()
	<-pumpDone

	if l.processFiles != nil {
		if err := l.processFiles.RemovePIDFile(l.options.LaunchID, mp.name); err != nil {
			mp.logger.Warnf("Failed to remove PID file: %v", err)
		}
	}

	exitCode := -1
	if state != nil {
		exitCode = state.ExitCode()
	}

	mp.mutex.Lock()
	mp.exitCode = exitCode
	mp.state = ProcessStateExited
	mp.proc = nil
	close(exited)
	mp.mutex.Unlock()

	switch {
	case waitErr != nil:
		mp.logger.Errorf("failed waiting for process [pid %d]: %v", proc.Pid, waitErr)
	case exitCode == 0:
		mp.logger.Infof("process has finished cleanly [pid %d]", proc.Pid)
	default:
		mp.logger.Errorf("process has died [pid %d, exit code %d, cmd '%s %s']",
			proc.Pid, exitCode, execution.ExecutablePath, strings.Join(execution.Args, " "))
	}
	return nil
}

// openOutput returns the writer the process output goes to
func (mp *managedProcess) openOutput() (io.Writer, func(), error) {
	l := mp.launcher
	if mp.action.options().Output == OutputScreen {
		return l.screen, func() {}, nil
	}

	dir := l.options.LogDirectory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, errors.NewIOError("failed to create log directory", err).WithContext("directory", dir)
	}
	path := filepath.Join(dir, mp.name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.NewIOError("failed to open process log", err).WithContext("path", path)
	}
	return f, func() { f.Close() }, nil
}

func (mp *managedProcess) pump(reader io.Reader, output io.Writer) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	prefix := ""
	if mp.action.options().Output == OutputScreen {
		prefix = "[" + mp.name + "] "
	}
	for scanner.Scan() {
		mp.launcher.writeLine(output, prefix+scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		mp.logger.Debugf("Output stream closed: %v", err)
		// Drain so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, reader)
	}
}

// shutdown stops the process for good
func (mp *managedProcess) shutdown(ctx context.Context) error {
	mp.shutdownOnce.Do(func() { close(mp.shutdownCh) })
	return mp.terminate(ctx)
}

// restart stops the current instance and starts a new one. A process that
// exited or failed to start is brought back.
func (mp *managedProcess) restart(ctx context.Context) error {
	mp.mutex.Lock()
	if mp.proc != nil {
		mp.restartRequested = true
		mp.mutex.Unlock()
		return mp.terminate(ctx)
	}
	if mp.supervising {
		// Starting or waiting to respawn
		mp.restartRequested = true
		select {
		case mp.wakeCh <- struct{}{}:
		default:
		}
		mp.mutex.Unlock()
		return nil
	}
	mp.supervising = true
	mp.mutex.Unlock()

	if !mp.launcher.startSupervisor(mp, false) {
		mp.mutex.Lock()
		mp.supervising = false
		mp.mutex.Unlock()
		return errors.NewProcessError("launch is not running", nil).WithContext("process", mp.name)
	}
	return nil
}

// terminate walks the SIGINT, SIGTERM, kill sequence until the running instance exits
func (mp *managedProcess) terminate(ctx context.Context) error {
	mp.mutex.Lock()
	proc := mp.proc
	exited := mp.exited
	if proc != nil {
		mp.state = ProcessStateStopping
	}
	mp.mutex.Unlock()

	if proc == nil {
		return nil
	}

	opts := mp.launcher.options
	steps := []struct {
		signal  process.TerminationSignal
		timeout time.Duration
	}{
		{process.SignalInterrupt, opts.SigtermTimeout},
		{process.SignalTerminate, opts.SigkillTimeout},
	}

	for _, step := range steps {
		mp.logger.Debugf("sending %s to process [pid %d]", step.signal, proc.Pid)
		if err := process.SendTerminationSignal(proc.Pid, step.signal); err != nil {
			mp.logger.Warnf("Failed to send %s to PID %d: %v", step.signal, proc.Pid, err)
		}

		select {
		case <-exited:
			return nil
		case <-time.After(step.timeout):
			mp.logger.Warnf("process [pid %d] did not exit within %v after %s", proc.Pid, step.timeout, step.signal)
		case <-ctx.Done():
			mp.logger.Warnf("Context cancelled during graceful termination of PID %d, forcing termination", proc.Pid)
		}
		if ctx.Err() != nil {
			break
		}
	}

	mp.logger.Warnf("Force killing process PID %d", proc.Pid)
	if err := process.SendKillSignal(proc.Pid); err != nil {
		mp.logger.Warnf("Failed to kill process group of PID %d: %v", proc.Pid, err)
		if err := proc.Kill(); err != nil {
			select {
			case <-exited:
				return nil
			default:
			}
			return errors.NewProcessError("failed to kill process", err).WithContext("pid", proc.Pid)
		}
	}

	select {
	case <-exited:
		return nil
	case <-time.After(5 * time.Second):
		return errors.NewTimeoutError(fmt.Sprintf("process %s did not terminate even after force termination", mp.name), nil).
			WithContext("pid", proc.Pid)
	}
}
