package auvsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/launch"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
	"github.com/core-tools/hsu-simlaunch/pkg/processfile"
	"github.com/core-tools/hsu-simlaunch/pkg/processstate"
	"github.com/core-tools/hsu-simlaunch/pkg/watch"
)

// RunOptions are the per-invocation settings that do not belong in the configuration file
type RunOptions struct {
	// Skips the package lookup when set
	ShareDirectory string
	// Render the description to Output instead of launching it
	DryRun bool
	// Restart the state publisher when the robot description template changes
	Watch bool
	// Seconds until the launch is shut down, 0 runs until a signal arrives
	RunDuration int
	// Screen output of the processes, os.Stdout when nil
	Output io.Writer
	// Launch environment, os.Environ() when nil
	Environ []string
}

// LoadConfig loads and validates configFile, or returns the defaults when it is empty
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()
	if configFile != "" {
		var err error
		config, err = LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
	}

	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}
	return config, nil
}

// Run builds the simulation description and launches it until every process
// has exited, a termination signal arrives or the run duration elapses
func Run(ctx context.Context, options RunOptions, config *Config, logger logging.Logger) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.Environ == nil {
		options.Environ = os.Environ()
	}
	getenv := launch.NewContext(options.Environ, logger).Getenv

	shareDir := options.ShareDirectory
	if shareDir == "" {
		var err error
		shareDir, err = ResolveShareDirectory(&config.Simulation, getenv)
		if err != nil {
			return err
		}
	}
	logger.Infof("Using share directory of %s: %s", config.Simulation.Package, shareDir)

	desc, err := GenerateLaunchDescription(&config.Simulation, shareDir, getenv)
	if err != nil {
		return err
	}

	if options.DryRun {
		return launch.Render(desc, options.Output)
	}

	processFiles := processfile.NewProcessFileManager(config.Launch.ProcessFiles, logger)
	launcher, err := launch.NewLauncher(launch.LauncherOptions{
		SigtermTimeout: config.Launch.SigtermTimeout,
		SigkillTimeout: config.Launch.SigkillTimeout,
		Environ:        options.Environ,
	}, options.Output, processFiles, logger)
	if err != nil {
		return errors.NewInternalError("failed to create launcher", err)
	}

	if options.RunDuration > 0 {
		duration := time.Duration(options.RunDuration) * time.Second
		logger.Infof("Using RUN DURATION of %v", duration)
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, duration)
		defer cancelTimeout()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig, os.Interrupt)
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case receivedSignal := <-sig:
			logger.Infof("Received signal: %v", receivedSignal)
			cancel()
		case <-ctx.Done():
		}
	}()

	if options.Watch || config.Launch.Watch.Enabled {
		watcher, err := newTemplateWatcher(launcher, ResolvePaths(&config.Simulation, shareDir), config.Launch.Watch, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				logger.Errorf("Template watcher stopped: %v", err)
			}
		}()
	}

	err = launcher.Run(ctx, desc)

	cancel()
	wg.Wait()

	return err
}

func newTemplateWatcher(launcher *launch.Launcher, paths Paths, config WatchConfig, logger logging.Logger) (*watch.Watcher, error) {
	handler := func(ctx context.Context, changed []string) {
		logger.Infof("Robot description changed, restarting %s", StatePublisher)
		if err := launcher.Restart(ctx, StatePublisher); err != nil {
			logger.Errorf("Failed to restart %s: %v", StatePublisher, err)
		}
	}

	return watch.NewWatcher(watch.Config{
		Directories: []string{filepath.Dir(paths.RobotDescription)},
		Debounce:    config.Debounce,
	}, handler, logger)
}

// WriteStatus lists the processes recorded in PID files by earlier launches
func WriteStatus(config *Config, w io.Writer, logger logging.Logger) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	processFiles := processfile.NewProcessFileManager(config.Launch.ProcessFiles, logger)
	records, err := processFiles.ListPIDFiles()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		_, err := fmt.Fprintf(w, "No launched processes found in %s\n", processFiles.RunDirectory())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAUNCH\tPROCESS\tPID\tSTATE")
	for _, record := range records {
		state := "running"
		running, err := processstate.IsProcessRunning(record.PID)
		switch {
		case err != nil:
			state = "unknown"
			logger.Debugf("Failed to probe PID %d: %v", record.PID, err)
		case !running:
			state = "stale"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", record.LaunchID, record.Name, record.PID, state)
	}
	return tw.Flush()
}
