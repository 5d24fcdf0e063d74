package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/codexify/internal/utils"
)

const (
	errorSaveSourceFormat  = "cannot save configuration: %w"
	errorCreateDirFormat   = "create configuration directory %s: %w"
	errorEncodeFormat      = "encode configuration: %w"
	errorWriteConfigFormat = "write configuration to %s: %w"
)

// SaveOptions describes the command-line arguments persisted by SaveProjectConfiguration.
// Paths are absolute or relative to the working directory.
type SaveOptions struct {
	Directory      string
	Name           string
	RootPath       string
	Extensions     []string
	Packages       []string
	Exclude        []string
	ExcludeFiles   []string
	IgnoreFilePath string
	OutputBaseName string
}

// ConfigurationFileName returns config.compiled.<name>.yaml, falling back to
// the default output base name for a blank name.
func ConfigurationFileName(name string) string {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		trimmedName = utils.DefaultOutputBaseName
	}
	return fmt.Sprintf(utils.CompiledConfigFileFormat, trimmedName)
}

// SaveProjectConfiguration writes options as a compiled-project configuration
// in options.Directory and returns the file path. Paths are stored relative to
// that directory so the file can be moved together with the project.
func SaveProjectConfiguration(options SaveOptions) (string, error) {
	configuration := ProjectConfiguration{
		Extensions:   nonNil(options.Extensions),
		Output:       strings.TrimSuffix(options.OutputBaseName, utils.OutputFileExtension),
		Packages:     nonNil(options.Packages),
		Exclude:      nonNil(options.Exclude),
		ExcludeFiles: nonNil(options.ExcludeFiles),
	}
	if configuration.Output == "" {
		configuration.Output = utils.DefaultOutputBaseName
	}

	directory, absoluteError := filepath.Abs(options.Directory)
	if absoluteError != nil {
		return "", fmt.Errorf(errorResolveFormat, options.Directory, absoluteError)
	}
	if options.RootPath != "" {
		configuration.Path = relativeTo(directory, options.RootPath)
	}
	if options.IgnoreFilePath != "" {
		configuration.Gitignore = relativeTo(directory, options.IgnoreFilePath)
	}
	if validationError := configuration.Validate(); validationError != nil {
		return "", fmt.Errorf(errorSaveSourceFormat, validationError)
	}

	encoded, encodeError := yaml.Marshal(configuration)
	if encodeError != nil {
		return "", fmt.Errorf(errorEncodeFormat, encodeError)
	}
	if mkdirError := os.MkdirAll(directory, 0o755); mkdirError != nil {
		return "", fmt.Errorf(errorCreateDirFormat, directory, mkdirError)
	}
	destinationPath := filepath.Join(directory, ConfigurationFileName(options.Name))
	if writeError := os.WriteFile(destinationPath, encoded, 0o644); writeError != nil {
		return "", fmt.Errorf(errorWriteConfigFormat, destinationPath, writeError)
	}
	return destinationPath, nil
}

func relativeTo(directory, path string) string {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return filepath.ToSlash(path)
	}
	relativePath, relativeError := filepath.Rel(directory, absolutePath)
	if relativeError != nil {
		return filepath.ToSlash(absolutePath)
	}
	return filepath.ToSlash(relativePath)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
