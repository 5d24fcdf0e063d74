package utils

// LoggerInitializationFailedMessageFormat reports a logger that could not be built.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes the fatal log line of a failed run.
const ApplicationExecutionFailedMessage = "codexify failed"

// Names and patterns shared by the compiler, the configuration surface and the CLI.
const (
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// CompiledConfigFilePattern matches configuration files written by --save.
	CompiledConfigFilePattern = "config.compiled.*.yaml"
	// CompiledConfigFileFormat builds a configuration file name from a project name.
	CompiledConfigFileFormat = "config.compiled.%s.yaml"
	// DefaultOutputBaseName names the artifact when a configuration omits it.
	DefaultOutputBaseName = "output"
	// OutputFileExtension is appended to every artifact base name.
	OutputFileExtension = ".txt"
	// GoSourceExtension restricts package trees to Go sources.
	GoSourceExtension = ".go"
	// CurrentDirectoryDisplayName labels a root that has no usable base name.
	CurrentDirectoryDisplayName = "current_directory"
)

// BasePermanentExclusions lists the names excluded from every tree.
func BasePermanentExclusions() []string {
	return []string{GitDirectoryName}
}
