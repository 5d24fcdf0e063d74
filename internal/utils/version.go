package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	unknownVersion      = "unknown"
	develBuildVersion   = "(devel)"
	gitExecutableName   = "git"
	gitNotFoundTemplate = "%s directory not found in or above %s"
)

var describeArgumentSets = [][]string{
	{"describe", "--tags", "--exact-match"},
	{"describe", "--tags", "--long", "--dirty"},
}

// GetApplicationVersion reports the module version from build info and falls
// back to git describe when the binary was built from a working tree.
func GetApplicationVersion() string {
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != "" && buildInfo.Main.Version != develBuildVersion {
		return buildInfo.Main.Version
	}

	repositoryDirectory, findError := FindRepositoryRoot(".")
	if findError != nil {
		return unknownVersion
	}
	for _, describeArguments := range describeArgumentSets {
		if description := describeRevision(repositoryDirectory, describeArguments); description != "" {
			return description
		}
	}
	return unknownVersion
}

func describeRevision(repositoryDirectory string, describeArguments []string) string {
	// #nosec G204
	describeCommand := exec.Command(gitExecutableName, describeArguments...)
	describeCommand.Dir = repositoryDirectory
	describeOutput, describeError := describeCommand.Output()
	if describeError != nil {
		return ""
	}
	return strings.TrimSpace(string(describeOutput))
}

// FindRepositoryRoot searches upward from startDirectory for the directory
// holding the .git folder.
func FindRepositoryRoot(startDirectory string) (string, error) {
	absoluteStartDirectory, errorAbsolute := filepath.Abs(startDirectory)
	if errorAbsolute != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", startDirectory, errorAbsolute)
	}

	currentDirectory := absoluteStartDirectory
	for {
		fileInformation, errorStat := os.Stat(filepath.Join(currentDirectory, GitDirectoryName))
		if errorStat == nil && fileInformation.IsDir() {
			return currentDirectory, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}
	return "", fmt.Errorf(gitNotFoundTemplate, GitDirectoryName, absoluteStartDirectory)
}
