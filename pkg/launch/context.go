package launch

import (
	"sort"
	"strings"
	"sync"

	"github.com/core-tools/hsu-simlaunch/pkg/logging"
)

// Context is the environment actions observe and modify while a description runs
type Context struct {
	mutex  sync.RWMutex
	env    map[string]string
	logger logging.Logger
}

// NewContext copies environ ("KEY=value" entries, later entries win)
func NewContext(environ []string, logger logging.Logger) *Context {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return &Context{env: env, logger: logger}
}

func (c *Context) Getenv(key string) string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.env[key]
}

func (c *Context) Setenv(key, value string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.env[key] = value
}

// Environ returns the environment as sorted "KEY=value" entries
func (c *Context) Environ() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]string, 0, len(c.env))
	for k, v := range c.env {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// Snapshot returns an independent copy
func (c *Context) Snapshot() *Context {
	return NewContext(c.Environ(), c.logger)
}

func (c *Context) Logger() logging.Logger {
	return c.logger
}
