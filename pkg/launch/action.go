package launch

import (
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/substitution"
)

type ActionKind string

const (
	ActionLogInfo                ActionKind = "log_info"
	ActionSetEnvironmentVariable ActionKind = "set_environment_variable"
	ActionExecuteProcess         ActionKind = "execute_process"
	ActionNode                   ActionKind = "node"
)

// Action is one entry of a Description
type Action interface {
	Kind() ActionKind
}

// OutputMode selects where a process's stdout and stderr go
type OutputMode string

const (
	// OutputScreen prefixes every line with the process name and writes it to the screen
	OutputScreen OutputMode = "screen"
	// OutputLog appends every line to <log directory>/<process name>.log
	OutputLog OutputMode = "log"
)

// EnvEntry is an ordered environment assignment
type EnvEntry struct {
	Name  string
	Value []substitution.Substitution
}

type LogInfo struct {
	Msg []substitution.Substitution
}

func (LogInfo) Kind() ActionKind { return ActionLogInfo }

func NewLogInfo(msg string) LogInfo {
	return LogInfo{Msg: substitution.Texts(msg)}
}

// SetEnvironmentVariable changes the launch environment seen by every later action
type SetEnvironmentVariable struct {
	Name  string
	Value []substitution.Substitution
}

func (SetEnvironmentVariable) Kind() ActionKind { return ActionSetEnvironmentVariable }

func NewSetEnvironmentVariable(name, value string) SetEnvironmentVariable {
	return SetEnvironmentVariable{Name: name, Value: substitution.Texts(value)}
}

// ProcessOptions are shared by ExecuteProcess and Node
type ProcessOptions struct {
	// Applied on top of the launch environment
	AdditionalEnv []EnvEntry
	Cwd           string
	// Empty means OutputLog
	Output OutputMode

	Respawn      bool
	RespawnDelay time.Duration
	// 0 respawns without limit
	RespawnMaxRetries int
	// Multiplies the delay after every respawn when greater than 1
	RespawnBackoffRate float64
}

// ExecuteProcess runs an arbitrary command, each element of Cmd is one argv entry
type ExecuteProcess struct {
	Cmd []substitution.Substitution
	ProcessOptions
}

func (ExecuteProcess) Kind() ActionKind { return ActionExecuteProcess }

// Node runs an executable installed by a package and passes it ROS arguments
type Node struct {
	Package    string
	Executable string
	// Optional node name and namespace remaps
	Name       string
	Namespace  string
	Arguments  []substitution.Substitution
	Parameters []Parameter
	ProcessOptions
}

func (Node) Kind() ActionKind { return ActionNode }

// Description is an ordered list of actions, built once and consumed by a Launcher
type Description struct {
	Actions []Action
}

func NewDescription(actions ...Action) *Description {
	return &Description{Actions: actions}
}
