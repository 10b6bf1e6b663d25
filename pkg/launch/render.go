package launch

import (
	"fmt"
	"io"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"

	"gopkg.in/yaml.v3"
)

type renderedEnv struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type renderedParameter struct {
	Name  string      `yaml:"name"`
	Value interface{} `yaml:"value"`
	Type  string      `yaml:"type,omitempty"`
}

type renderedAction struct {
	Kind         ActionKind          `yaml:"kind"`
	Msg          string              `yaml:"msg,omitempty"`
	Name         string              `yaml:"name,omitempty"`
	Value        string              `yaml:"value,omitempty"`
	Cmd          []string            `yaml:"cmd,omitempty"`
	Package      string              `yaml:"package,omitempty"`
	Executable   string              `yaml:"executable,omitempty"`
	Namespace    string              `yaml:"namespace,omitempty"`
	Arguments    []string            `yaml:"arguments,omitempty"`
	Parameters   []renderedParameter `yaml:"parameters,omitempty"`
	Env          []renderedEnv       `yaml:"additional_env,omitempty"`
	Cwd          string              `yaml:"cwd,omitempty"`
	Output       OutputMode          `yaml:"output,omitempty"`
	Respawn      bool                `yaml:"respawn,omitempty"`
	RespawnDelay string              `yaml:"respawn_delay,omitempty"`
	MaxRetries   int                 `yaml:"respawn_max_retries,omitempty"`
	BackoffRate  float64             `yaml:"respawn_backoff_rate,omitempty"`
}

// Render writes desc as YAML without performing any substitution
func Render(desc *Description, w io.Writer) error {
	if desc == nil {
		return errors.NewValidationError("launch description cannot be nil", nil)
	}

	actions := make([]renderedAction, 0, len(desc.Actions))
	for _, action := range desc.Actions {
		r, err := renderAction(action)
		if err != nil {
			return err
		}
		actions = append(actions, r)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(map[string]interface{}{"actions": actions}); err != nil {
		return errors.NewIOError("failed to render launch description", err)
	}
	return encoder.Close()
}

func renderAction(action Action) (renderedAction, error) {
	r := renderedAction{Kind: action.Kind()}

	switch a := action.(type) {
	case LogInfo:
		r.Msg = substitution.DescribeAll(a.Msg)
	case SetEnvironmentVariable:
		r.Name = a.Name
		r.Value = substitution.DescribeAll(a.Value)
	case ExecuteProcess:
		r.Cmd = describeEach(a.Cmd)
		renderOptions(&r, a.ProcessOptions)
	case Node:
		r.Package = a.Package
		r.Executable = a.Executable
		r.Name = a.Name
		r.Namespace = a.Namespace
		r.Arguments = describeEach(a.Arguments)
		for _, p := range a.Parameters {
			r.Parameters = append(r.Parameters, renderParameter(p))
		}
		renderOptions(&r, a.ProcessOptions)
	default:
		return r, errors.NewValidationError(fmt.Sprintf("unsupported action type %T", action), nil)
	}
	return r, nil
}

func renderOptions(r *renderedAction, opts ProcessOptions) {
	for _, e := range opts.AdditionalEnv {
		r.Env = append(r.Env, renderedEnv{Name: e.Name, Value: substitution.DescribeAll(e.Value)})
	}
	r.Cwd = opts.Cwd
	r.Output = opts.Output
	if r.Output == "" {
		r.Output = OutputLog
	}
	r.Respawn = opts.Respawn
	if opts.Respawn {
		r.RespawnDelay = opts.RespawnDelay.String()
		r.MaxRetries = opts.RespawnMaxRetries
		r.BackoffRate = opts.RespawnBackoffRate
	}
}

func renderParameter(p Parameter) renderedParameter {
	sv, ok := p.Value.(SubstitutionValue)
	if !ok {
		return renderedParameter{Name: p.Name, Value: p.Value}
	}
	return renderedParameter{Name: p.Name, Value: substitution.DescribeAll(sv.Substitutions), Type: string(sv.Type)}
}

func describeEach(subs []substitution.Substitution) []string {
	result := make([]string, 0, len(subs))
	for _, s := range subs {
		result = append(result, s.Describe())
	}
	return result
}
