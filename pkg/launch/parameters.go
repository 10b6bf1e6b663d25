package launch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/substitution"

	"gopkg.in/yaml.v3"
)

// ParameterValueType forces the type of a substituted parameter
type ParameterValueType string

const (
	// ParameterTypeAuto parses the performed text as YAML, so "true" becomes a bool
	ParameterTypeAuto ParameterValueType = ""
	// ParameterTypeString keeps the performed text verbatim
	ParameterTypeString ParameterValueType = "str"
)

// Parameter is a node parameter. Value is either a plain Go value (bool, int,
// float64, string, slices of those) or a SubstitutionValue evaluated at start.
type Parameter struct {
	Name  string
	Value interface{}
}

// SubstitutionValue is a parameter value computed when the node starts
type SubstitutionValue struct {
	Substitutions []substitution.Substitution
	Type          ParameterValueType
}

// EvaluateParameters performs substitution values and returns name -> value
func EvaluateParameters(ctx context.Context, lc substitution.Context, params []Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, errors.NewValidationError("parameter name cannot be empty", nil)
		}

		sv, ok := p.Value.(SubstitutionValue)
		if !ok {
			result[p.Name] = p.Value
			continue
		}

		text, err := substitution.PerformAll(ctx, lc, sv.Substitutions)
		if err != nil {
			return nil, errors.NewSubstitutionError("failed to evaluate parameter", err).WithContext("parameter", p.Name)
		}

		if sv.Type == ParameterTypeString {
			result[p.Name] = text
			continue
		}

		var parsed interface{}
		if err := yaml.Unmarshal([]byte(text), &parsed); err != nil || parsed == nil {
			result[p.Name] = text
		} else {
			result[p.Name] = parsed
		}
	}
	return result, nil
}

// WriteParametersFile writes a ROS 2 parameter file applying params to every node of the process
func WriteParametersFile(dir, name string, params map[string]interface{}) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewIOError("failed to create parameters directory", err).WithContext("directory", dir)
	}

	document := map[string]interface{}{
		"/**": map[string]interface{}{
			"ros__parameters": params,
		},
	}

	data, err := yaml.Marshal(document)
	if err != nil {
		return "", errors.NewInternalError("failed to encode parameters", err).WithContext("process", name)
	}

	path := filepath.Join(dir, name+".params.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.NewIOError("failed to write parameters file", err).WithContext("path", path)
	}
	return path, nil
}
