// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/codexify/internal/compiler"
	"github.com/temirov/codexify/internal/config"
	"github.com/temirov/codexify/internal/packages"
	"github.com/temirov/codexify/internal/services/clipboard"
	"github.com/temirov/codexify/internal/tokenizer"
	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
	"github.com/temirov/codexify/internal/vcs"
)

const (
	pathFlagName         = "path"
	extensionsFlagName   = "extensions"
	packagesFlagName     = "packages"
	configFlagName       = "config"
	saveFlagName         = "save"
	configNameFlagName   = "config-name"
	outputFlagName       = "output"
	excludeFlagName      = "exclude"
	excludeFilesFlagName = "exclude-files"
	gitignoreFlagName    = "gitignore"
	modelFlagName        = "model"
	copyFlagName         = "copy"
	quietFlagName        = "quiet"
	quietFlagShorthand   = "q"
	versionFlagName      = "version"

	rootUse              = "codexify"
	rootShortDescription = "compile a source tree into one LLM-ready text file"
	rootLongDescription  = `codexify walks a project directory, renders an annotated tree of it and
concatenates the content of every file whose extension is listed, honouring
an optional .gitignore and explicit exclusions. Go packages named with
--packages are appended as separate sections.

A run can be saved with --save into config.compiled.<name>.yaml and replayed
later with --config.`
	rootUsageExample = `  # Compile Python and Markdown files, skipping node_modules
  codexify --path ../project --ext .py .md --exclude node_modules

  # Honour the project's .gitignore and save the run for later
  codexify --path ../project --ext .go --gitignore .gitignore --save

  # Replay a saved run
  codexify --config config.compiled.project.yaml

  # Compile a remote repository and copy the result
  codexify --path https://github.com/spf13/cobra.git --ext .go --copy`

	pathFlagDescription         = "directory to compile, or a git repository URL"
	extensionsFlagDescription   = "file extensions or names whose content is compiled (e.g. .py .md Makefile); alias --ext"
	packagesFlagDescription     = "Go package import paths to append"
	configFlagDescription       = "load options from a config.compiled.<name>.yaml file"
	saveFlagDescription         = "save the options to config.compiled.<name>.yaml before compiling"
	configNameFlagDescription   = "name used for the saved configuration file"
	outputFlagDescription       = "output file name or directory"
	excludeFlagDescription      = "directory names whose content is omitted"
	excludeFilesFlagDescription = "file names whose content is omitted"
	gitignoreFlagDescription    = "ignore-rule file; relative to --path when given"
	modelFlagDescription        = "tokenizer model used for the token estimate"
	copyFlagDescription         = "copy the compiled text to the clipboard"
	quietFlagDescription        = "suppress progress output"
	versionFlagDescription      = "display application version"

	versionTemplate             = "codexify version: %s\n"
	successTemplate             = "Compiled %d file(s), skipped %d, ~%d tokens (%s)\n"
	outputWrittenTemplate       = "Output written to %s\n"
	configSavedTemplate         = "Configuration saved to %s\n"
	copiedMessage               = "Compiled text copied to clipboard\n"
	failureTemplate             = "Compilation failed: %s\n"
	warningTemplate             = "Warning: %s\n"
	saveIgnoredMessage          = "--save is ignored when --config is used"
	copyFailedTemplate          = "failed to copy to clipboard: %v"
	packageResolutionTemplate   = "package resolution failed: %v"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	errorReadOutputFormat       = "read compiled output %s: %w"
)

var (
	errSourceRequired     = errors.New("either --path or --packages must be specified when --config is not used")
	errExtensionsRequired = errors.New("--extensions (--ext) are required when --path is specified")
	// ErrCompilationFailed marks a run whose compiler result reported failure.
	ErrCompilationFailed = errors.New("compilation failed")
)

// packageResolver turns Go import paths into package trees.
type packageResolver interface {
	Resolve(ctx context.Context, projectRoot string, importPaths []string) ([]types.PackageTree, error)
}

// dependencies are the collaborators of a run; tests replace them.
type dependencies struct {
	standardOutput   io.Writer
	standardError    io.Writer
	workingDirectory string
	newLogger        func(quiet bool) (*zap.Logger, error)
	newCompiler      func(logger *zap.Logger) *compiler.Compiler
	newResolver      func(logger *zap.Logger) packageResolver
	cloneRepository  func(ctx context.Context, url string, logger *zap.Logger) (string, func(), error)
	copier           clipboard.Copier
}

func defaultDependencies() dependencies {
	return dependencies{
		standardOutput: os.Stdout,
		standardError:  os.Stderr,
		newLogger:      newRunLogger,
		newCompiler: func(logger *zap.Logger) *compiler.Compiler {
			return compiler.New(compiler.WithLogger(logger))
		},
		newResolver: func(logger *zap.Logger) packageResolver {
			return packages.NewResolver(packages.GoListLoader{}, logger)
		},
		cloneRepository: vcs.Clone,
		copier:          clipboard.NewService(),
	}
}

func newRunLogger(quiet bool) (*zap.Logger, error) {
	if quiet {
		return utils.NewLeveledLogger(zapcore.WarnLevel)
	}
	return utils.NewApplicationLogger()
}

// commandOptions holds the parsed flags.
type commandOptions struct {
	path         string
	extensions   []string
	packages     []string
	configPath   string
	save         bool
	configName   string
	output       string
	exclude      []string
	excludeFiles []string
	gitignore    string
	model        string
	copy         bool
	quiet        bool
	showVersion  bool
}

// Execute runs the codexify application with the process arguments.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCommand := createRootCommand(defaultDependencies())
	rootCommand.SetArgs(normalizeArguments(os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(runDependencies dependencies) *cobra.Command {
	var options commandOptions

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if options.showVersion {
				fmt.Fprintf(runDependencies.standardOutput, versionTemplate, utils.GetApplicationVersion())
				return nil
			}
			return runCompile(command.Context(), runDependencies, options)
		},
	}
	rootCommand.SetOut(runDependencies.standardOutput)
	rootCommand.SetErr(runDependencies.standardError)

	flagSet := rootCommand.Flags()
	flagSet.StringVar(&options.path, pathFlagName, "", pathFlagDescription)
	flagSet.StringArrayVar(&options.extensions, extensionsFlagName, nil, extensionsFlagDescription)
	flagSet.StringArrayVar(&options.packages, packagesFlagName, nil, packagesFlagDescription)
	flagSet.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	flagSet.BoolVar(&options.save, saveFlagName, false, saveFlagDescription)
	flagSet.StringVar(&options.configName, configNameFlagName, "", configNameFlagDescription)
	flagSet.StringVar(&options.output, outputFlagName, "", outputFlagDescription)
	flagSet.StringArrayVar(&options.exclude, excludeFlagName, nil, excludeFlagDescription)
	flagSet.StringArrayVar(&options.excludeFiles, excludeFilesFlagName, nil, excludeFilesFlagDescription)
	flagSet.StringVar(&options.gitignore, gitignoreFlagName, "", gitignoreFlagDescription)
	flagSet.StringVar(&options.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	flagSet.BoolVar(&options.copy, copyFlagName, false, copyFlagDescription)
	flagSet.BoolVarP(&options.quiet, quietFlagName, quietFlagShorthand, false, quietFlagDescription)
	flagSet.BoolVar(&options.showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.SetGlobalNormalizationFunc(normalizeFlagName)
	return rootCommand
}

// runPlan is everything a compilation needs, resolved from flags or a config file.
type runPlan struct {
	rootPath       string
	sourceName     string
	extensions     []string
	packages       []string
	exclude        []string
	excludeFiles   []string
	ignoreFilePath string
	outputFilePath string
}

func runCompile(ctx context.Context, runDependencies dependencies, options commandOptions) error {
	logger, loggerError := runDependencies.newLogger(options.quiet)
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	defer func() { _ = logger.Sync() }()

	workingDirectory := runDependencies.workingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	plan, cleanup, planError := buildPlan(ctx, runDependencies, options, workingDirectory, logger)
	if planError != nil {
		return planError
	}
	defer cleanup()

	var packageTrees []types.PackageTree
	if len(plan.packages) > 0 {
		resolvedTrees, resolveError := runDependencies.newResolver(logger).Resolve(ctx, plan.rootPath, plan.packages)
		if resolveError != nil {
			printWarning(runDependencies.standardError, fmt.Sprintf(packageResolutionTemplate, resolveError))
		}
		packageTrees = resolvedTrees
	}

	spec := &types.ProjectSpec{
		RootPath:            plan.rootPath,
		Extensions:          plan.extensions,
		ExcludedDirectories: plan.exclude,
		ExcludedFiles:       plan.excludeFiles,
		IgnoreFilePath:      plan.ignoreFilePath,
		PackageTrees:        packageTrees,
		OutputFilePath:      plan.outputFilePath,
		TokenModel:          options.model,
		Verbose:             !options.quiet,
	}
	result := runDependencies.newCompiler(logger).Compile(ctx, spec)
	if !result.Success {
		color.New(color.FgRed).Fprintf(runDependencies.standardError, failureTemplate, result.ErrorMessage)
		return fmt.Errorf("%w: %s", ErrCompilationFailed, result.ErrorMessage)
	}

	successPrinter := color.New(color.FgGreen)
	successPrinter.Fprintf(runDependencies.standardOutput, successTemplate, result.FilesCompiled, result.FilesSkipped, result.TokenCount, result.TokenModel)
	if result.OutputFilePath != "" {
		fmt.Fprintf(runDependencies.standardOutput, outputWrittenTemplate, color.New(color.FgCyan).Sprint(result.OutputFilePath))
	}
	if options.copy {
		copyResult(runDependencies, result)
	}
	return nil
}

func buildPlan(ctx context.Context, runDependencies dependencies, options commandOptions, workingDirectory string, logger *zap.Logger) (runPlan, func(), error) {
	noCleanup := func() {}
	if options.configPath != "" {
		if options.save {
			printWarning(runDependencies.standardError, saveIgnoredMessage)
		}
		loaded, loadError := config.LoadProjectConfiguration(config.LoadOptions{
			WorkingDirectory: workingDirectory,
			ExplicitFilePath: options.configPath,
		}, logger)
		if loadError != nil {
			return runPlan{}, noCleanup, loadError
		}
		return runPlan{
			rootPath:       loaded.RootPath,
			extensions:     loaded.Extensions,
			packages:       loaded.Packages,
			exclude:        loaded.Exclude,
			excludeFiles:   loaded.ExcludeFiles,
			ignoreFilePath: loaded.IgnoreFilePath,
			outputFilePath: loaded.OutputFilePath,
		}, noCleanup, nil
	}

	plan := runPlan{
		extensions:   utils.DeduplicatePatterns(utils.SplitCommaSeparated(options.extensions)),
		packages:     utils.DeduplicatePatterns(utils.SplitCommaSeparated(options.packages)),
		exclude:      utils.DeduplicatePatterns(utils.SplitCommaSeparated(options.exclude)),
		excludeFiles: utils.DeduplicatePatterns(utils.SplitCommaSeparated(options.excludeFiles)),
	}
	if options.path == "" && len(plan.packages) == 0 {
		return runPlan{}, noCleanup, errSourceRequired
	}
	if options.path != "" && len(plan.extensions) == 0 {
		return runPlan{}, noCleanup, errExtensionsRequired
	}

	cleanup := noCleanup
	if options.path != "" {
		if vcs.IsRepositoryURL(options.path) {
			clonedDirectory, cloneCleanup, cloneError := runDependencies.cloneRepository(ctx, options.path, logger)
			if cloneError != nil {
				return runPlan{}, noCleanup, cloneError
			}
			plan.rootPath = clonedDirectory
			plan.sourceName = repositoryName(options.path)
			cleanup = cloneCleanup
		} else {
			plan.rootPath = resolveAgainst(workingDirectory, options.path)
			plan.sourceName = utils.DisplayName(plan.rootPath)
		}
	}

	if options.gitignore != "" {
		ignoreBase := workingDirectory
		if plan.rootPath != "" {
			ignoreBase = plan.rootPath
		}
		plan.ignoreFilePath = resolveAgainst(ignoreBase, options.gitignore)
	}

	outputDirectory, outputBaseName := resolveOutput(workingDirectory, options.output, plan.sourceName)
	plan.outputFilePath = filepath.Join(outputDirectory, outputBaseName+utils.OutputFileExtension)

	if options.save {
		configName := options.configName
		if configName == "" {
			configName = plan.sourceName
		}
		savedPath, saveError := config.SaveProjectConfiguration(config.SaveOptions{
			Directory:      outputDirectory,
			Name:           configName,
			RootPath:       plan.rootPath,
			Extensions:     plan.extensions,
			Packages:       plan.packages,
			Exclude:        plan.exclude,
			ExcludeFiles:   plan.excludeFiles,
			IgnoreFilePath: plan.ignoreFilePath,
			OutputBaseName: outputBaseName,
		})
		if saveError != nil {
			cleanup()
			return runPlan{}, noCleanup, saveError
		}
		fmt.Fprintf(runDependencies.standardOutput, configSavedTemplate, savedPath)
	}
	return plan, cleanup, nil
}

// resolveOutput returns the output directory and the base name without
// extension. An existing directory receives <source name>.txt; anything else
// names the file itself.
func resolveOutput(workingDirectory, output, sourceName string) (string, string) {
	defaultBaseName := sourceName
	if defaultBaseName == "" || defaultBaseName == utils.CurrentDirectoryDisplayName {
		defaultBaseName = utils.DefaultOutputBaseName
	}
	if output == "" {
		return workingDirectory, defaultBaseName
	}
	absoluteOutput := resolveAgainst(workingDirectory, output)
	if info, statError := os.Stat(absoluteOutput); statError == nil && info.IsDir() {
		return absoluteOutput, defaultBaseName
	}
	baseName := strings.TrimSuffix(filepath.Base(absoluteOutput), utils.OutputFileExtension)
	if baseName == "" {
		baseName = defaultBaseName
	}
	return filepath.Dir(absoluteOutput), baseName
}

func resolveAgainst(directory, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(directory, path)
}

func repositoryName(url string) string {
	trimmedURL := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	separatorIndex := strings.LastIndexAny(trimmedURL, "/:")
	return trimmedURL[separatorIndex+1:]
}

func copyResult(runDependencies dependencies, result types.CompilationResult) {
	text := result.CompiledText
	if result.OutputFilePath != "" {
		content, readError := os.ReadFile(result.OutputFilePath)
		if readError != nil {
			printWarning(runDependencies.standardError, fmt.Errorf(errorReadOutputFormat, result.OutputFilePath, readError).Error())
			return
		}
		text = string(content)
	}
	if copyError := runDependencies.copier.Copy(text); copyError != nil {
		printWarning(runDependencies.standardError, fmt.Sprintf(copyFailedTemplate, copyError))
		return
	}
	fmt.Fprint(runDependencies.standardOutput, copiedMessage)
}

func printWarning(writer io.Writer, message string) {
	color.New(color.FgYellow).Fprintf(writer, warningTemplate, message)
}
