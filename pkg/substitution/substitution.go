// Package substitution holds values that are resolved when a launch action
// executes rather than when the description is built.
package substitution

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-simlaunch/pkg/logging"
)

// Context is what a substitution may observe while it is performed
type Context interface {
	Getenv(key string) string
	Environ() []string
	Logger() logging.Logger
}

type Substitution interface {
	Perform(ctx context.Context, lc Context) (string, error)
	// Describe renders the substitution without performing it
	Describe() string
}

// Text is a literal
type Text string

func (t Text) Perform(ctx context.Context, lc Context) (string, error) {
	return string(t), nil
}

func (t Text) Describe() string {
	return string(t)
}

// Texts converts literals into a substitution list
func Texts(values ...string) []Substitution {
	result := make([]Substitution, 0, len(values))
	for _, v := range values {
		result = append(result, Text(v))
	}
	return result
}

// EnvironmentVariable reads a variable from the launch environment
type EnvironmentVariable struct {
	Name    string
	Default string
}

func (e EnvironmentVariable) Perform(ctx context.Context, lc Context) (string, error) {
	if value := lc.Getenv(e.Name); value != "" {
		return value, nil
	}
	return e.Default, nil
}

func (e EnvironmentVariable) Describe() string {
	return "$(env " + e.Name + ")"
}

// PathJoin joins the performed parts with the OS path separator
type PathJoin []Substitution

func (p PathJoin) Perform(ctx context.Context, lc Context) (string, error) {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		v, err := s.Perform(ctx, lc)
		if err != nil {
			return "", err
		}
		parts = append(parts, v)
	}
	return filepath.Join(parts...), nil
}

func (p PathJoin) Describe() string {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		parts = append(parts, s.Describe())
	}
	return filepath.Join(parts...)
}

// PerformAll performs each substitution and concatenates the results
func PerformAll(ctx context.Context, lc Context, subs []Substitution) (string, error) {
	var sb strings.Builder
	for _, s := range subs {
		v, err := s.Perform(ctx, lc)
		if err != nil {
			return "", err
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

// DescribeAll concatenates the descriptions of subs
func DescribeAll(subs []Substitution) string {
	var sb strings.Builder
	for _, s := range subs {
		sb.WriteString(s.Describe())
	}
	return sb.String()
}
