package main

import (
	"context"
	"fmt"
	"os"

	"github.com/core-tools/hsu-simlaunch/pkg/auvsim"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"path to the YAML launch configuration"`
	ShareDir    string `long:"share-dir" description:"share directory of the description package, skips the package lookup"`
	Print       bool   `long:"print" description:"print the launch description as YAML and exit"`
	Status      bool   `long:"status" description:"list processes of previous launches and exit"`
	Watch       bool   `long:"watch" description:"restart the state publisher when the robot description template changes"`
	LogLevel    string `long:"log-level" description:"debug, info, warn or error, overrides the configuration"`
	LogFormat   string `long:"log-format" description:"console or json, overrides the configuration"`
	RunDuration int    `long:"run-duration" description:"shut the launch down after this many seconds"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	config, err := auvsim.LoadConfig(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if opts.LogLevel != "" {
		config.Launch.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		config.Launch.LogFormat = opts.LogFormat
	}
	if err := auvsim.ValidateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(logging.ZapConfig{
		Level:  config.Launch.LogLevel,
		Format: config.Launch.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Debugf("opts: %+v", opts)

	if opts.Status {
		err = auvsim.WriteStatus(config, os.Stdout, logger)
	} else {
		err = auvsim.Run(context.Background(), auvsim.RunOptions{
			ShareDirectory: opts.ShareDir,
			DryRun:         opts.Print,
			Watch:          opts.Watch,
			RunDuration:    opts.RunDuration,
		}, config, logger)
	}

	if err != nil {
		logger.Errorf("Simulation launch failed: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}
