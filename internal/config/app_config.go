// Package config reads and writes compiled-project YAML configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/utils"
)

var (
	// ErrSourceRequired is returned when a configuration names neither a path nor packages.
	ErrSourceRequired = errors.New("configuration must contain at least one of 'path' or 'packages'")
	// ErrExtensionsRequired is returned when a configuration names a path without extensions.
	ErrExtensionsRequired = errors.New("'extensions' is required when 'path' is specified")
)

const (
	configurationType      = "yaml"
	yamlExtension          = ".yaml"
	ymlExtension           = ".yml"
	errorWorkingDirFormat  = "determine working directory: %w"
	errorResolveFormat     = "resolve configuration path %s: %w"
	errorStatFormat        = "stat configuration %s: %w"
	errorIsDirectoryFormat = "configuration path %s is a directory"
	errorReadFormat        = "read configuration from %s: %w"
	errorDecodeFormat      = "decode configuration from %s: %w"
	errorInvalidFormat     = "invalid configuration %s: %w"
)

// LoadOptions controls how a configuration file is located.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ProjectConfiguration mirrors the keys of a compiled-project YAML file.
// Field order is the key order used when saving.
type ProjectConfiguration struct {
	Path         string   `mapstructure:"path" yaml:"path,omitempty"`
	Extensions   []string `mapstructure:"extensions" yaml:"extensions"`
	Output       string   `mapstructure:"output" yaml:"output"`
	Packages     []string `mapstructure:"packages" yaml:"packages"`
	Exclude      []string `mapstructure:"exclude" yaml:"exclude"`
	ExcludeFiles []string `mapstructure:"exclude_files" yaml:"exclude_files"`
	Gitignore    string   `mapstructure:"gitignore" yaml:"gitignore,omitempty"`
}

// LoadedConfiguration is a validated configuration with every path made absolute.
type LoadedConfiguration struct {
	ProjectConfiguration
	FilePath       string
	Directory      string
	RootPath       string
	IgnoreFilePath string
	OutputFilePath string
}

// LoadProjectConfiguration reads and validates the configuration file named by
// options. Relative paths inside the file resolve against the file's directory
// and the output is placed there as <output>.txt.
func LoadProjectConfiguration(options LoadOptions, logger *zap.Logger) (LoadedConfiguration, error) {
	logger = utils.LoggerOrNop(logger)
	configurationPath, resolveError := resolveConfigurationPath(options.WorkingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return LoadedConfiguration{}, resolveError
	}
	warnOnUnexpectedName(configurationPath, logger)

	configuration, readError := readConfiguration(configurationPath)
	if readError != nil {
		return LoadedConfiguration{}, readError
	}
	if validationError := configuration.Validate(); validationError != nil {
		return LoadedConfiguration{}, fmt.Errorf(errorInvalidFormat, configurationPath, validationError)
	}

	configurationDirectory := filepath.Dir(configurationPath)
	loaded := LoadedConfiguration{
		ProjectConfiguration: configuration,
		FilePath:             configurationPath,
		Directory:            configurationDirectory,
	}
	if configuration.Path != "" {
		loaded.RootPath = resolveAgainst(configurationDirectory, configuration.Path)
	}
	if configuration.Gitignore != "" {
		loaded.IgnoreFilePath = resolveAgainst(configurationDirectory, configuration.Gitignore)
	}
	outputBaseName := strings.TrimSuffix(configuration.Output, utils.OutputFileExtension)
	if outputBaseName == "" {
		outputBaseName = utils.DefaultOutputBaseName
	}
	loaded.Output = outputBaseName
	loaded.OutputFilePath = filepath.Join(configurationDirectory, outputBaseName+utils.OutputFileExtension)
	loaded.Extensions = utils.DeduplicatePatterns(configuration.Extensions)
	loaded.Packages = utils.DeduplicatePatterns(configuration.Packages)
	loaded.Exclude = utils.DeduplicatePatterns(configuration.Exclude)
	loaded.ExcludeFiles = utils.DeduplicatePatterns(configuration.ExcludeFiles)
	logger.Debug("configuration loaded", zap.String("path", configurationPath), zap.String("output", loaded.OutputFilePath))
	return loaded, nil
}

// Validate checks the required-key rules.
func (configuration ProjectConfiguration) Validate() error {
	if configuration.Path == "" && len(configuration.Packages) == 0 {
		return ErrSourceRequired
	}
	if configuration.Path != "" && len(configuration.Extensions) == 0 {
		return ErrExtensionsRequired
	}
	return nil
}

func resolveConfigurationPath(workingDirectory, explicitPath string) (string, error) {
	if filepath.IsAbs(explicitPath) {
		return filepath.Clean(explicitPath), nil
	}
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return "", fmt.Errorf(errorWorkingDirFormat, workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}
	absolutePath, absoluteError := filepath.Abs(filepath.Join(workingDirectory, explicitPath))
	if absoluteError != nil {
		return "", fmt.Errorf(errorResolveFormat, explicitPath, absoluteError)
	}
	return absolutePath, nil
}

func readConfiguration(path string) (ProjectConfiguration, error) {
	info, statError := os.Stat(path)
	if statError != nil {
		return ProjectConfiguration{}, fmt.Errorf(errorStatFormat, path, statError)
	}
	if info.IsDir() {
		return ProjectConfiguration{}, fmt.Errorf(errorIsDirectoryFormat, path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType(configurationType)
	if readError := reader.ReadInConfig(); readError != nil {
		return ProjectConfiguration{}, fmt.Errorf(errorReadFormat, path, readError)
	}
	var configuration ProjectConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ProjectConfiguration{}, fmt.Errorf(errorDecodeFormat, path, decodeError)
	}
	return configuration, nil
}

func warnOnUnexpectedName(path string, logger *zap.Logger) {
	baseName := filepath.Base(path)
	lowerExtension := strings.ToLower(filepath.Ext(baseName))
	if lowerExtension != yamlExtension && lowerExtension != ymlExtension {
		logger.Warn("configuration file does not end with .yaml or .yml", zap.String("path", path))
	}
	if isMatched, _ := doublestar.Match(utils.CompiledConfigFilePattern, baseName); !isMatched {
		logger.Warn("configuration file name does not match the expected pattern",
			zap.String("name", baseName), zap.String("pattern", utils.CompiledConfigFilePattern))
	}
}

func resolveAgainst(directory, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(directory, path))
}
