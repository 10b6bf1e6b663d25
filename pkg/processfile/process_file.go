package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"

	"github.com/adrg/xdg"
)

const DefaultAppName = "simlaunch"

// ProcessFileConfig holds configuration for PID files and launch log directories
type ProcessFileConfig struct {
	// Base directory for PID files, defaults to $XDG_RUNTIME_DIR/<app>
	RunDirectory string `yaml:"run_directory,omitempty"`

	// Base directory for launch logs, defaults to $XDG_STATE_HOME/<app>/log
	LogDirectory string `yaml:"log_directory,omitempty"`

	AppName string `yaml:"app_name,omitempty"`
}

// PIDRecord is one PID file found on disk
type PIDRecord struct {
	LaunchID string
	Name     string
	PID      int
	Path     string
}

// ProcessFileManager lays out per-launch PID files: <run>/<launch id>/<process>.pid
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.RunDirectory == "" {
		config.RunDirectory = filepath.Join(runtimeBaseDirectory(), config.AppName)
	}
	if config.LogDirectory == "" {
		config.LogDirectory = filepath.Join(xdg.StateHome, config.AppName, "log")
	}

	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

func runtimeBaseDirectory() string {
	if xdg.RuntimeDir != "" {
		return xdg.RuntimeDir
	}
	return os.TempDir()
}

func (m *ProcessFileManager) RunDirectory() string {
	return m.config.RunDirectory
}

// GenerateLogDirectoryPath returns the log directory of one launch
func (m *ProcessFileManager) GenerateLogDirectoryPath(launchID string) string {
	return filepath.Join(m.config.LogDirectory, launchID)
}

// GeneratePIDFilePath returns the PID file path of a process within a launch
func (m *ProcessFileManager) GeneratePIDFilePath(launchID, name string) string {
	return filepath.Join(m.config.RunDirectory, launchID, name+".pid")
}

func (m *ProcessFileManager) WritePIDFile(launchID, name string, pid int) error {
	pidFilePath := m.GeneratePIDFilePath(launchID, name)
	m.logger.Debugf("Writing PID file, process: %s, pid: %d, path: %s", name, pid, pidFilePath)

	if err := ValidatePIDFileDirectory(pidFilePath); err != nil {
		return errors.NewIOError("PID file directory validation failed", err).WithContext("pid_file", pidFilePath)
	}

	pidContent := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(pidFilePath, []byte(pidContent), 0644); err != nil {
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", pidFilePath).WithContext("pid", pid)
	}

	return nil
}

// RemovePIDFile deletes a process PID file and, once empty, the launch directory
func (m *ProcessFileManager) RemovePIDFile(launchID, name string) error {
	pidFilePath := m.GeneratePIDFilePath(launchID, name)
	if err := os.Remove(pidFilePath); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", pidFilePath)
	}

	// Fails while other PID files remain, which is expected
	_ = os.Remove(filepath.Dir(pidFilePath))
	return nil
}

// ReadPIDFile parses a PID file
func ReadPIDFile(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", path)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, errors.NewValidationError("invalid PID format: "+pidStr, err).WithContext("pid_file", path)
	}
	if pid <= 0 {
		return 0, errors.NewValidationError("PID must be positive: "+pidStr, nil).WithContext("pid_file", path)
	}

	return pid, nil
}

// ListPIDFiles returns all readable PID files below the run directory, sorted by launch and name
func (m *ProcessFileManager) ListPIDFiles() ([]PIDRecord, error) {
	launches, err := os.ReadDir(m.config.RunDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError("failed to read run directory", err).WithContext("directory", m.config.RunDirectory)
	}

	var records []PIDRecord
	for _, launch := range launches {
		if !launch.IsDir() {
			continue
		}
		launchDir := filepath.Join(m.config.RunDirectory, launch.Name())
		files, err := os.ReadDir(launchDir)
		if err != nil {
			m.logger.Warnf("Skipping unreadable launch directory %s: %v", launchDir, err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".pid" {
				continue
			}
			path := filepath.Join(launchDir, f.Name())
			pid, err := ReadPIDFile(path)
			if err != nil {
				m.logger.Warnf("Skipping PID file %s: %v", path, err)
				continue
			}
			records = append(records, PIDRecord{
				LaunchID: launch.Name(),
				Name:     strings.TrimSuffix(f.Name(), ".pid"),
				PID:      pid,
				Path:     path,
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].LaunchID != records[j].LaunchID {
			return records[i].LaunchID < records[j].LaunchID
		}
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// ValidatePIDFileDirectory creates the directory of a PID file when needed and checks it is writable
func ValidatePIDFileDirectory(pidFilePath string) error {
	dir := filepath.Dir(pidFilePath)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access PID file directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIOError("failed to create PID file directory", err).WithContext("directory", dir)
		}
	} else if !info.IsDir() {
		return errors.NewValidationError("PID file path is not a directory", nil).WithContext("path", dir)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return errors.NewPermissionError("PID file directory is not writable", err).WithContext("directory", dir)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}
