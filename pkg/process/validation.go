package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
)

// ValidateExecutionConfig validates execution configuration
func ValidateExecutionConfig(config ExecutionConfig) error {
	if config.ExecutablePath == "" {
		return errors.NewValidationError("executable path is required", nil)
	}

	info, err := os.Stat(config.ExecutablePath)
	if err != nil {
		return errors.NewValidationError("executable not found: "+config.ExecutablePath, err)
	}
	if info.IsDir() {
		return errors.NewValidationError("executable is a directory: "+config.ExecutablePath, nil)
	}

	if config.WorkingDirectory != "" {
		if !filepath.IsAbs(config.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil)
		}

		if info, err := os.Stat(config.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+config.WorkingDirectory, err)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+config.WorkingDirectory, nil)
		}
	}

	for _, env := range config.Environment {
		if !strings.Contains(env, "=") {
			return errors.NewValidationError("invalid environment variable format: "+env, nil)
		}
	}

	return nil
}

// ResolveExecutable finds name in the directories of pathList, the launch
// environment's PATH. Names containing a separator are only checked for existence.
func ResolveExecutable(name, pathList string) (string, error) {
	if name == "" {
		return "", errors.NewValidationError("executable name cannot be empty", nil)
	}

	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if err := checkExecutable(name); err != nil {
			return "", errors.NewNotFoundError("executable not found: "+name, err)
		}
		return name, nil
	}

	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		for _, candidate := range candidateNames(name) {
			path := filepath.Join(dir, candidate)
			if checkExecutable(path) == nil {
				return path, nil
			}
		}
	}

	return "", errors.NewNotFoundError("executable '"+name+"' not found in PATH", nil).WithContext("path", pathList)
}

func candidateNames(name string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(name) != "" {
		return []string{name}
	}
	return []string{name + ".exe", name + ".bat", name + ".cmd", name}
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.ErrNotExist
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return os.ErrPermission
	}
	return nil
}
