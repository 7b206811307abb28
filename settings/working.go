package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const WORKING_FOLDER_ENV = "X360TU_HOME"

// GetWorkingFolder returns the folder holding config.json, tools and the log.
// X360TU_HOME overrides the executable's own folder.
func GetWorkingFolder() (string, error) {
	if override := os.Getenv(WORKING_FOLDER_ENV); override != "" {
		return filepath.Abs(override)
	}

	exePath, exeErr := os.Executable()
	if exeErr != nil {
		return "", exeErr
	}

	workingFolder := filepath.Dir(exePath)

	// Keep settings next to the bundle rather than inside it on MacOS
	if runtime.GOOS == "darwin" {
		if appIndex := strings.Index(workingFolder, ".app"); appIndex != -1 {
			sepIndex := strings.LastIndex(workingFolder[:appIndex], string(os.PathSeparator))
			workingFolder = workingFolder[:sepIndex]
		}
	}

	return workingFolder, nil
}
