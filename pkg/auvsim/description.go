// Package auvsim builds the launch description of the AUV simulation: the
// simulator with the competition world, the robot state publisher, the
// spawner placing the vehicle and the visualization tool.
package auvsim

import (
	"os"
	"path/filepath"

	"github.com/core-tools/hsu-simlaunch/pkg/ament"
	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/launch"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"
)

const (
	GazeboModelPathEnv    = "GAZEBO_MODEL_PATH"
	GzSimResourcePathEnv  = "GZ_SIM_RESOURCE_PATH"
	StatePublisherPackage = "robot_state_publisher"
	StatePublisher        = "robot_state_publisher"
	SpawnerPackage        = "ros_gz_sim"
	Spawner               = "create"
	ViewerPackage         = "rviz2"
	Viewer                = "rviz2"
	TemplateExpander      = "xacro"
)

// Paths are the absolute locations the description refers to
type Paths struct {
	ShareDirectory   string
	RobotDescription string
	World            string
	RvizConfig       string
	Models           string
}

// ResolvePaths joins the configured relative paths onto shareDir
func ResolvePaths(config *SimulationConfig, shareDir string) Paths {
	return Paths{
		ShareDirectory:   shareDir,
		RobotDescription: filepath.Join(shareDir, config.RobotDescription),
		World:            filepath.Join(shareDir, config.World),
		RvizConfig:       filepath.Join(shareDir, config.RvizConfig),
		Models:           filepath.Join(shareDir, config.Models),
	}
}

// ResolveShareDirectory finds the installed share directory of the configured package
func ResolveShareDirectory(config *SimulationConfig, getenv ament.Getenv) (string, error) {
	return ament.GetPackageShareDirectory(config.Package, getenv)
}

// PrependSearchPath puts dir in front of the search path current. Unlike a
// plain dir+":"+current join, an empty current yields dir alone with no
// trailing separator, so no empty entry ends up in the search path.
func PrependSearchPath(dir, current string) string {
	if current == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + current
}

// GenerateLaunchDescription builds the simulation launch. Search paths are
// computed from getenv now, the robot description is expanded when the state
// publisher starts.
func GenerateLaunchDescription(config *SimulationConfig, shareDir string, getenv ament.Getenv) (*launch.Description, error) {
	if config == nil {
		return nil, errors.NewValidationError("simulation configuration cannot be nil", nil)
	}
	if shareDir == "" {
		return nil, errors.NewValidationError("share directory cannot be empty", nil).WithContext("package", config.Package)
	}
	if getenv == nil {
		getenv = os.Getenv
	}

	paths := ResolvePaths(config, shareDir)
	useSimTime := config.UseSimTime == nil || *config.UseSimTime

	actions := []launch.Action{
		launch.NewLogInfo("Models path: " + paths.Models),
	}
	for _, model := range config.RequiredModels {
		modelPath := filepath.Join(paths.Models, model)
		if _, err := os.Stat(modelPath); err != nil {
			actions = append(actions, launch.NewLogInfo("WARNING: "+model+" model not found at "+modelPath))
		}
	}

	gazeboModelPath := PrependSearchPath(paths.Models, getenv(GazeboModelPathEnv))
	gzResourcePath := PrependSearchPath(paths.Models, getenv(GzSimResourcePathEnv))

	robotDescription := launch.SubstitutionValue{
		Substitutions: []substitution.Substitution{
			substitution.NewCommand(substitution.Text(TemplateExpander+" "), substitution.Text(paths.RobotDescription)),
		},
		Type: launch.ParameterTypeString,
	}

	pose := config.Entity.Pose
	actions = append(actions,
		launch.NewSetEnvironmentVariable(GazeboModelPathEnv, gazeboModelPath),
		launch.NewSetEnvironmentVariable(GzSimResourcePathEnv, gzResourcePath),
		launch.ExecuteProcess{
			Cmd: substitution.Texts(append(append([]string(nil), config.Simulator...), paths.World)...),
			ProcessOptions: launch.ProcessOptions{
				Output: launch.OutputScreen,
				AdditionalEnv: []launch.EnvEntry{
					{Name: GazeboModelPathEnv, Value: substitution.Texts(gazeboModelPath)},
					{Name: GzSimResourcePathEnv, Value: substitution.Texts(gzResourcePath)},
				},
			},
		},
		launch.Node{
			Package:    StatePublisherPackage,
			Executable: StatePublisher,
			Parameters: []launch.Parameter{
				{Name: "robot_description", Value: robotDescription},
				{Name: "use_sim_time", Value: useSimTime},
			},
		},
		launch.Node{
			Package:    SpawnerPackage,
			Executable: Spawner,
			Arguments: substitution.Texts(
				"-topic", config.Entity.Topic,
				"-name", config.Entity.Name,
				"-x", pose.X,
				"-y", pose.Y,
				"-z", pose.Z,
				"-R", pose.Roll,
				"-P", pose.Pitch,
				"-Y", pose.Yaw,
			),
			ProcessOptions: launch.ProcessOptions{Output: launch.OutputScreen},
		},
		launch.Node{
			Package:    ViewerPackage,
			Executable: Viewer,
			Arguments:  substitution.Texts("-d", paths.RvizConfig),
			Parameters: []launch.Parameter{
				{Name: "use_sim_time", Value: useSimTime},
			},
		},
	)

	return launch.NewDescription(actions...), nil
}
