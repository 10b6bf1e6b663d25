// Package ament resolves installed packages through the ament resource index,
// the same lookup ROS 2 tooling performs against AMENT_PREFIX_PATH.
package ament

import (
	"os"
	"path/filepath"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
)

const (
	PrefixPathEnv = "AMENT_PREFIX_PATH"

	resourceIndexSubfolder = "share/ament_index/resource_index"
	packagesResourceType   = "packages"
)

// Getenv looks up an environment variable, os.Getenv satisfies it
type Getenv func(key string) string

// SearchPaths returns the ordered prefixes listed in AMENT_PREFIX_PATH
func SearchPaths(getenv Getenv) []string {
	value := getenv(PrefixPathEnv)
	if value == "" {
		return nil
	}

	var paths []string
	for _, p := range filepath.SplitList(value) {
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// FindPackagePrefix returns the first prefix in which the package is registered
func FindPackagePrefix(packageName string, getenv Getenv) (string, error) {
	if packageName == "" {
		return "", errors.NewValidationError("package name cannot be empty", nil)
	}

	prefixes := SearchPaths(getenv)
	if len(prefixes) == 0 {
		return "", errors.NewNotFoundError("environment variable "+PrefixPathEnv+" is not set or empty", nil).
			WithContext("package", packageName)
	}

	for _, prefix := range prefixes {
		marker := filepath.Join(prefix, resourceIndexSubfolder, packagesResourceType, packageName)
		if info, err := os.Stat(marker); err == nil && !info.IsDir() {
			return prefix, nil
		}
	}

	return "", errors.NewNotFoundError("package '"+packageName+"' not found", nil).
		WithContext("package", packageName).
		WithContext("searched", prefixes)
}

// GetPackageShareDirectory returns <prefix>/share/<package>
func GetPackageShareDirectory(packageName string, getenv Getenv) (string, error) {
	prefix, err := FindPackagePrefix(packageName, getenv)
	if err != nil {
		return "", err
	}
	return filepath.Join(prefix, "share", packageName), nil
}

// FindExecutable returns <prefix>/lib/<package>/<executable>, the location
// colcon installs node executables to
func FindExecutable(packageName, executable string, getenv Getenv) (string, error) {
	if executable == "" {
		return "", errors.NewValidationError("executable name cannot be empty", nil).WithContext("package", packageName)
	}

	prefix, err := FindPackagePrefix(packageName, getenv)
	if err != nil {
		return "", err
	}

	path := filepath.Join(prefix, "lib", packageName, executable)
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.NewNotFoundError("executable '"+executable+"' not found in package '"+packageName+"'", err).
			WithContext("path", path)
	}
	if info.IsDir() {
		return "", errors.NewValidationError("executable path is a directory", nil).WithContext("path", path)
	}

	return path, nil
}
