package auvsim

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
	"github.com/core-tools/hsu-simlaunch/pkg/processfile"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration file structure
type Config struct {
	Launch     LaunchConfig     `yaml:"launch"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// LaunchConfig controls the launcher itself
type LaunchConfig struct {
	LogLevel       string                        `yaml:"log_level,omitempty"`
	LogFormat      string                        `yaml:"log_format,omitempty"`
	SigtermTimeout time.Duration                 `yaml:"sigterm_timeout,omitempty"`
	SigkillTimeout time.Duration                 `yaml:"sigkill_timeout,omitempty"`
	ProcessFiles   processfile.ProcessFileConfig `yaml:"process_files,omitempty"`
	Watch          WatchConfig                   `yaml:"watch,omitempty"`
}

// WatchConfig restarts the state publisher when the robot description template changes
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// SimulationConfig describes what gets launched. Paths are relative to the
// share directory of Package.
type SimulationConfig struct {
	Package          string   `yaml:"package"`
	RobotDescription string   `yaml:"robot_description"`
	World            string   `yaml:"world"`
	RvizConfig       string   `yaml:"rviz_config"`
	Models           string   `yaml:"models"`
	RequiredModels   []string `yaml:"required_models,omitempty"`

	Simulator []string     `yaml:"simulator"`
	Entity    EntityConfig `yaml:"entity"`

	UseSimTime *bool `yaml:"use_sim_time,omitempty"`
}

// EntityConfig is handed to the spawner
type EntityConfig struct {
	Name  string `yaml:"name"`
	Topic string `yaml:"topic"`
	Pose  Pose   `yaml:"pose"`
}

// Pose keeps the values as written so they reach the spawner unchanged
type Pose struct {
	X     string `yaml:"x"`
	Y     string `yaml:"y"`
	Z     string `yaml:"z"`
	Roll  string `yaml:"roll"`
	Pitch string `yaml:"pitch"`
	Yaw   string `yaml:"yaw"`
}

const (
	DefaultPackage        = "auv_description"
	DefaultEntityName     = "fathom_auv"
	DefaultEntityTopic    = "robot_description"
	DefaultWatchDebounce  = 500 * time.Millisecond
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultSigtermTimeout = 5 * time.Second
	defaultSigkillTimeout = 5 * time.Second
)

var (
	DefaultRobotDescription = filepath.Join("urdf", "auv", "auv.urdf.xacro")
	DefaultWorld            = filepath.Join("worlds", "sauvc_world.sdf")
	DefaultRvizConfig       = filepath.Join("rviz", "default.rviz")
	DefaultModels           = "models"
	DefaultSimulator        = []string{"gz", "sim", "-r", "-v", "4"}
	DefaultPose             = Pose{X: "8.42", Y: "-13.66", Z: "0.15", Roll: "0", Pitch: "-0.10", Yaw: "1.61"}
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	config := &Config{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads the launch configuration from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	launch := &config.Launch
	if launch.LogLevel == "" {
		launch.LogLevel = defaultLogLevel
	}
	if launch.LogFormat == "" {
		launch.LogFormat = defaultLogFormat
	}
	if launch.SigtermTimeout == 0 {
		launch.SigtermTimeout = defaultSigtermTimeout
	}
	if launch.SigkillTimeout == 0 {
		launch.SigkillTimeout = defaultSigkillTimeout
	}
	if launch.Watch.Debounce == 0 {
		launch.Watch.Debounce = DefaultWatchDebounce
	}

	sim := &config.Simulation
	if sim.Package == "" {
		sim.Package = DefaultPackage
	}
	if sim.RobotDescription == "" {
		sim.RobotDescription = DefaultRobotDescription
	}
	if sim.World == "" {
		sim.World = DefaultWorld
	}
	if sim.RvizConfig == "" {
		sim.RvizConfig = DefaultRvizConfig
	}
	if sim.Models == "" {
		sim.Models = DefaultModels
	}
	if len(sim.Simulator) == 0 {
		sim.Simulator = append([]string(nil), DefaultSimulator...)
	}
	if sim.Entity.Name == "" {
		sim.Entity.Name = DefaultEntityName
	}
	if sim.Entity.Topic == "" {
		sim.Entity.Topic = DefaultEntityTopic
	}
	setPoseDefaults(&sim.Entity.Pose)
	if sim.UseSimTime == nil {
		useSimTime := true
		sim.UseSimTime = &useSimTime
	}
}

func setPoseDefaults(pose *Pose) {
	if pose.X == "" {
		pose.X = DefaultPose.X
	}
	if pose.Y == "" {
		pose.Y = DefaultPose.Y
	}
	if pose.Z == "" {
		pose.Z = DefaultPose.Z
	}
	if pose.Roll == "" {
		pose.Roll = DefaultPose.Roll
	}
	if pose.Pitch == "" {
		pose.Pitch = DefaultPose.Pitch
	}
	if pose.Yaw == "" {
		pose.Yaw = DefaultPose.Yaw
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateLaunchConfig(&config.Launch); err != nil {
		return errors.NewValidationError("invalid launch configuration", err)
	}

	if err := validateSimulationConfig(&config.Simulation); err != nil {
		return errors.NewValidationError("invalid simulation configuration", err)
	}

	return nil
}

func validateLaunchConfig(config *LaunchConfig) error {
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return errors.NewValidationError(err.Error(), nil).WithContext("valid_levels", "debug, info, warn, error")
	}

	switch config.LogFormat {
	case "console", "json":
	default:
		return errors.NewValidationError(fmt.Sprintf("invalid log format: %s", config.LogFormat), nil).
			WithContext("valid_formats", "console, json")
	}

	if config.SigtermTimeout < 0 || config.SigkillTimeout < 0 {
		return errors.NewValidationError("termination timeouts cannot be negative", nil)
	}
	if config.Watch.Debounce < 0 {
		return errors.NewValidationError("watch debounce cannot be negative", nil)
	}

	return nil
}

func validateSimulationConfig(config *SimulationConfig) error {
	if config.Package == "" {
		return errors.NewValidationError("package cannot be empty", nil)
	}

	paths := map[string]string{
		"robot_description": config.RobotDescription,
		"world":             config.World,
		"rviz_config":       config.RvizConfig,
		"models":            config.Models,
	}
	for name, path := range paths {
		if err := validateRelativePath(name, path); err != nil {
			return err
		}
	}

	for i, model := range config.RequiredModels {
		if model == "" || filepath.Base(model) != model {
			return errors.NewValidationError(fmt.Sprintf("invalid required model at index %d: '%s'", i, model), nil)
		}
	}

	if len(config.Simulator) == 0 || config.Simulator[0] == "" {
		return errors.NewValidationError("simulator command cannot be empty", nil)
	}

	if config.Entity.Name == "" {
		return errors.NewValidationError("entity name cannot be empty", nil)
	}
	if config.Entity.Topic == "" {
		return errors.NewValidationError("entity topic cannot be empty", nil)
	}

	return validatePose(config.Entity.Pose)
}

func validateRelativePath(name, path string) error {
	if path == "" {
		return errors.NewValidationError(name+" path cannot be empty", nil)
	}
	if filepath.IsAbs(path) {
		return errors.NewValidationError(name+" path must be relative to the package share directory", nil).
			WithContext("path", path)
	}
	return nil
}

func validatePose(pose Pose) error {
	values := []struct {
		name  string
		value string
	}{
		{"x", pose.X}, {"y", pose.Y}, {"z", pose.Z},
		{"roll", pose.Roll}, {"pitch", pose.Pitch}, {"yaw", pose.Yaw},
	}
	for _, v := range values {
		if _, err := strconv.ParseFloat(v.value, 64); err != nil {
			return errors.NewValidationError(fmt.Sprintf("pose %s is not a number: '%s'", v.name, v.value), err)
		}
	}
	return nil
}
