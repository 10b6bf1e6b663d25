package auvsim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simlaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, ValidateConfig(config))

	assert.Equal(t, "info", config.Launch.LogLevel)
	assert.Equal(t, "console", config.Launch.LogFormat)
	assert.Equal(t, 5*time.Second, config.Launch.SigtermTimeout)
	assert.Equal(t, 5*time.Second, config.Launch.SigkillTimeout)
	assert.False(t, config.Launch.Watch.Enabled)
	assert.Equal(t, DefaultWatchDebounce, config.Launch.Watch.Debounce)

	sim := config.Simulation
	assert.Equal(t, "auv_description", sim.Package)
	assert.Equal(t, filepath.Join("urdf", "auv", "auv.urdf.xacro"), sim.RobotDescription)
	assert.Equal(t, filepath.Join("worlds", "sauvc_world.sdf"), sim.World)
	assert.Equal(t, filepath.Join("rviz", "default.rviz"), sim.RvizConfig)
	assert.Equal(t, "models", sim.Models)
	assert.Equal(t, []string{"gz", "sim", "-r", "-v", "4"}, sim.Simulator)
	assert.Equal(t, "fathom_auv", sim.Entity.Name)
	assert.Equal(t, "robot_description", sim.Entity.Topic)
	assert.Equal(t, DefaultPose, sim.Entity.Pose)
	require.NotNil(t, sim.UseSimTime)
	assert.True(t, *sim.UseSimTime)
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:       "empty file gives defaults",
			configYAML: "",
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, DefaultConfig(), config)
			},
		},
		{
			name: "overrides keep pose literals",
			configYAML: `
launch:
  log_level: debug
  log_format: json
  sigterm_timeout: 2s
  process_files:
    run_directory: /tmp/simlaunch-run
  watch:
    enabled: true
    debounce: 250ms

simulation:
  required_models: [pool_ground, wall]
  use_sim_time: false
  entity:
    name: test_auv
    pose:
      x: 1.50
      pitch: -0.10
`,
			validate: func(t *testing.T, config *Config) {
				assert.Equal(t, "debug", config.Launch.LogLevel)
				assert.Equal(t, "json", config.Launch.LogFormat)
				assert.Equal(t, 2*time.Second, config.Launch.SigtermTimeout)
				assert.Equal(t, 5*time.Second, config.Launch.SigkillTimeout)
				assert.Equal(t, "/tmp/simlaunch-run", config.Launch.ProcessFiles.RunDirectory)
				assert.True(t, config.Launch.Watch.Enabled)
				assert.Equal(t, 250*time.Millisecond, config.Launch.Watch.Debounce)

				sim := config.Simulation
				assert.Equal(t, []string{"pool_ground", "wall"}, sim.RequiredModels)
				require.NotNil(t, sim.UseSimTime)
				assert.False(t, *sim.UseSimTime)
				assert.Equal(t, "test_auv", sim.Entity.Name)
				assert.Equal(t, "1.50", sim.Entity.Pose.X)
				assert.Equal(t, "-0.10", sim.Entity.Pose.Pitch)
				assert.Equal(t, DefaultPose.Yaw, sim.Entity.Pose.Yaw)
				assert.Equal(t, DefaultPackage, sim.Package)
			},
		},
		{
			name:        "invalid yaml",
			configYAML:  "launch: [unterminated",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfigFromFile(writeConfig(t, tt.configYAML))
			if tt.expectError {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			require.NoError(t, ValidateConfig(config))
			tt.validate(t, config)
		})
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsIOError(err))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Launch.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.Launch.LogFormat = "xml" }},
		{"negative timeout", func(c *Config) { c.Launch.SigkillTimeout = -time.Second }},
		{"negative debounce", func(c *Config) { c.Launch.Watch.Debounce = -time.Second }},
		{"empty package", func(c *Config) { c.Simulation.Package = "" }},
		{"absolute world", func(c *Config) { c.Simulation.World = "/abs/world.sdf" }},
		{"empty rviz config", func(c *Config) { c.Simulation.RvizConfig = "" }},
		{"nested required model", func(c *Config) { c.Simulation.RequiredModels = []string{"a/b"} }},
		{"empty simulator", func(c *Config) { c.Simulation.Simulator = []string{""} }},
		{"empty entity name", func(c *Config) { c.Simulation.Entity.Name = "" }},
		{"empty entity topic", func(c *Config) { c.Simulation.Entity.Topic = "" }},
		{"non numeric pose", func(c *Config) { c.Simulation.Entity.Pose.Yaw = "north" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			assert.True(t, errors.IsValidationError(ValidateConfig(config)))
		})
	}

	assert.True(t, errors.IsValidationError(ValidateConfig(nil)))
}
