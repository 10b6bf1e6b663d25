package launch

import (
	"bytes"
	"testing"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type unknownAction struct{}

func (unknownAction) Kind() ActionKind { return "unknown" }

func TestRender(t *testing.T) {
	desc := NewDescription(
		NewLogInfo("Models path: /share/models"),
		SetEnvironmentVariable{Name: "GZ_SIM_RESOURCE_PATH", Value: []substitution.Substitution{
			substitution.Text("/share/models:"),
			substitution.EnvironmentVariable{Name: "GZ_SIM_RESOURCE_PATH"},
		}},
		ExecuteProcess{
			Cmd:            substitution.Texts("gz", "sim", "-r"),
			ProcessOptions: ProcessOptions{Output: OutputScreen, Respawn: true, RespawnDelay: 2 * time.Second, RespawnMaxRetries: 3},
		},
		Node{
			Package:    "robot_state_publisher",
			Executable: "robot_state_publisher",
			Parameters: []Parameter{
				{Name: "robot_description", Value: SubstitutionValue{
					Substitutions: []substitution.Substitution{substitution.NewCommand(substitution.Text("xacro /share/auv.urdf.xacro"))},
					Type:          ParameterTypeString,
				}},
				{Name: "use_sim_time", Value: true},
			},
		},
	)

	var buf bytes.Buffer
	require.NoError(t, Render(desc, &buf))

	var rendered struct {
		Actions []map[string]interface{} `yaml:"actions"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rendered))
	require.Len(t, rendered.Actions, 4)

	assert.Equal(t, "log_info", rendered.Actions[0]["kind"])
	assert.Equal(t, "Models path: /share/models", rendered.Actions[0]["msg"])

	assert.Equal(t, "/share/models:$(env GZ_SIM_RESOURCE_PATH)", rendered.Actions[1]["value"])

	assert.Equal(t, []interface{}{"gz", "sim", "-r"}, rendered.Actions[2]["cmd"])
	assert.Equal(t, "screen", rendered.Actions[2]["output"])
	assert.Equal(t, "2s", rendered.Actions[2]["respawn_delay"])
	assert.Equal(t, 3, rendered.Actions[2]["respawn_max_retries"])
	assert.NotContains(t, rendered.Actions[2], "respawn_backoff_rate")

	node := rendered.Actions[3]
	assert.Equal(t, "node", node["kind"])
	assert.Equal(t, "log", node["output"])
	params := node["parameters"].([]interface{})
	require.Len(t, params, 2)
	first := params[0].(map[string]interface{})
	assert.Equal(t, "$(command 'xacro /share/auv.urdf.xacro')", first["value"])
	assert.Equal(t, "str", first["type"])
	assert.Equal(t, true, params[1].(map[string]interface{})["value"])
}

func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, errors.IsValidationError(Render(nil, &buf)))
	assert.True(t, errors.IsValidationError(Render(NewDescription(unknownAction{}), &buf)))
}
