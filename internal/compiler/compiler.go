// Package compiler orchestrates a compilation run: it validates the project
// root, walks the project and package trees once, renders the tree, aggregates
// file content, estimates tokens and writes the artifact.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/aggregate"
	"github.com/temirov/codexify/internal/classifier"
	"github.com/temirov/codexify/internal/exclusion"
	"github.com/temirov/codexify/internal/ignore"
	"github.com/temirov/codexify/internal/output"
	"github.com/temirov/codexify/internal/tokenizer"
	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
	"github.com/temirov/codexify/internal/vcs"
	"github.com/temirov/codexify/internal/walker"
)

var (
	// ErrNilSpec is reported when Compile receives no project spec.
	ErrNilSpec = errors.New("nil project spec")
	// ErrRootMissing is reported when the project root does not exist.
	ErrRootMissing = errors.New("project root does not exist")
	// ErrRootNotDirectory is reported when the project root is not a directory.
	ErrRootNotDirectory = errors.New("project root is not a directory")
)

const (
	errorAbsolutePathFormat = "abs failed for '%s': %w"
	errorRootFormat         = "%w: %s"
	errorStatFormat         = "stat failed for '%s': %w"
	errorIgnoreFileFormat   = "load ignore rules: %w"
	errorAssembleFormat     = "assemble document: %w"
	errorPanicFormat        = "compilation aborted: %v"
	packageRootFormat       = "package:%s"
)

// RevisionFunc reports the git revision for a project root.
type RevisionFunc func(rootPath string) (string, bool)

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(compiler *Compiler) {
		compiler.logger = utils.LoggerOrNop(logger)
	}
}

// WithTokenCounter replaces tokenizer selection with counter, reported as model.
func WithTokenCounter(counter tokenizer.Counter, model string) Option {
	return func(compiler *Compiler) {
		compiler.counter = counter
		compiler.counterModel = model
	}
}

// WithRevision replaces git revision lookup.
func WithRevision(revision RevisionFunc) Option {
	return func(compiler *Compiler) {
		compiler.revision = revision
	}
}

// WithContentReader replaces the file reader used by the aggregator.
func WithContentReader(reader aggregate.ContentReader) Option {
	return func(compiler *Compiler) {
		compiler.reader = reader
	}
}

// Compiler runs compilations. It holds no per-run state.
type Compiler struct {
	logger       *zap.Logger
	counter      tokenizer.Counter
	counterModel string
	revision     RevisionFunc
	reader       aggregate.ContentReader
}

// New builds a Compiler.
func New(options ...Option) *Compiler {
	compiler := &Compiler{logger: zap.NewNop(), revision: describeRevision}
	for _, option := range options {
		option(compiler)
	}
	return compiler
}

// Compile runs a compilation with default collaborators.
func Compile(ctx context.Context, spec *types.ProjectSpec) types.CompilationResult {
	return New().Compile(ctx, spec)
}

// Compile runs one compilation. Every failure, including a panic in a
// collaborator, is reported through the result rather than returned.
func (compiler *Compiler) Compile(ctx context.Context, spec *types.ProjectSpec) (result types.CompilationResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			compiler.logger.Error("compilation panicked", zap.Any("panic", recovered))
			result = failure(fmt.Errorf(errorPanicFormat, recovered))
		}
	}()
	if spec == nil {
		return failure(ErrNilSpec)
	}
	run := &compilationRun{compiler: compiler, spec: spec}
	compiled, compileError := run.execute(ctx)
	if compileError != nil {
		compiler.logger.Warn("compilation failed", zap.Error(compileError))
		return failure(compileError)
	}
	return compiled
}

func failure(cause error) types.CompilationResult {
	return types.CompilationResult{Success: false, ErrorMessage: cause.Error()}
}

func describeRevision(rootPath string) (string, bool) {
	revision, found, describeError := vcs.Describe(rootPath)
	if describeError != nil || !found {
		return "", false
	}
	return revision.String(), true
}

// compilationRun carries the state of a single Compile call.
type compilationRun struct {
	compiler           *Compiler
	spec               *types.ProjectSpec
	rootPath           string
	outputPath         string
	ignoreFilePath     string
	projectPolicy      *exclusion.Policy
	packagePolicy      *exclusion.Policy
	projectRecords     []types.VisitRecord
	packageRecordsList [][]types.VisitRecord
}

func (run *compilationRun) progress(message string, fields ...zap.Field) {
	if run.spec.Verbose {
		run.compiler.logger.Info(message, fields...)
		return
	}
	run.compiler.logger.Debug(message, fields...)
}

func (run *compilationRun) execute(ctx context.Context) (types.CompilationResult, error) {
	if validationError := run.resolvePaths(); validationError != nil {
		return types.CompilationResult{}, validationError
	}
	if policyError := run.buildPolicies(); policyError != nil {
		return types.CompilationResult{}, policyError
	}
	if walkError := run.walk(ctx); walkError != nil {
		return types.CompilationResult{}, walkError
	}

	allRecords := append([]types.VisitRecord(nil), run.projectRecords...)
	for _, packageRecords := range run.packageRecordsList {
		allRecords = append(allRecords, packageRecords...)
	}
	aggregated, aggregateError := aggregate.New(run.compiler.reader, run.compiler.logger).Aggregate(ctx, allRecords)
	if aggregateError != nil {
		return types.CompilationResult{}, aggregateError
	}

	builder := output.NewBuilder()
	if appendError := run.appendSections(builder, aggregated); appendError != nil {
		return types.CompilationResult{}, fmt.Errorf(errorAssembleFormat, appendError)
	}
	tokenCount, tokenModel := run.estimateTokens(builder.Text())
	footer := output.RenderFooter(output.Summary{
		FilesCompiled: aggregated.FilesCompiled,
		FilesSkipped:  aggregated.FilesSkipped,
		TokenCount:    tokenCount,
		TokenModel:    tokenModel,
	})
	if appendError := builder.Append(footer); appendError != nil {
		return types.CompilationResult{}, fmt.Errorf(errorAssembleFormat, appendError)
	}
	document := builder.Finalize()

	if contextError := ctx.Err(); contextError != nil {
		return types.CompilationResult{}, contextError
	}
	result := types.CompilationResult{
		Success:       true,
		TokenCount:    tokenCount,
		TokenModel:    tokenModel,
		FilesCompiled: aggregated.FilesCompiled,
		FilesSkipped:  aggregated.FilesSkipped,
	}
	if run.outputPath == "" {
		result.CompiledText = document.Text()
		return result, nil
	}
	if writeError := WriteAtomically(run.outputPath, []byte(document.Text())); writeError != nil {
		return types.CompilationResult{}, writeError
	}
	run.progress("output written", zap.String("path", run.outputPath))
	result.OutputFilePath = run.outputPath
	return result, nil
}

func (run *compilationRun) resolvePaths() error {
	if run.spec.RootPath == "" && len(run.spec.PackageTrees) == 0 {
		return fmt.Errorf(errorRootFormat, ErrRootMissing, run.spec.RootPath)
	}
	if run.spec.RootPath != "" {
		absoluteRootPath, absoluteError := filepath.Abs(run.spec.RootPath)
		if absoluteError != nil {
			return fmt.Errorf(errorAbsolutePathFormat, run.spec.RootPath, absoluteError)
		}
		rootInfo, statError := os.Stat(absoluteRootPath)
		if statError != nil {
			if errors.Is(statError, fs.ErrNotExist) {
				return fmt.Errorf(errorRootFormat, ErrRootMissing, absoluteRootPath)
			}
			return fmt.Errorf(errorStatFormat, absoluteRootPath, statError)
		}
		if !rootInfo.IsDir() {
			return fmt.Errorf(errorRootFormat, ErrRootNotDirectory, absoluteRootPath)
		}
		run.rootPath = absoluteRootPath
	}
	if run.spec.OutputFilePath != "" {
		absoluteOutputPath, absoluteError := filepath.Abs(run.spec.OutputFilePath)
		if absoluteError != nil {
			return fmt.Errorf(errorAbsolutePathFormat, run.spec.OutputFilePath, absoluteError)
		}
		run.outputPath = absoluteOutputPath
	}
	if run.spec.IgnoreFilePath != "" {
		absoluteIgnorePath, absoluteError := filepath.Abs(run.spec.IgnoreFilePath)
		if absoluteError != nil {
			return fmt.Errorf(errorAbsolutePathFormat, run.spec.IgnoreFilePath, absoluteError)
		}
		run.ignoreFilePath = absoluteIgnorePath
	}
	return nil
}

func (run *compilationRun) buildPolicies() error {
	permanentNames := append(utils.BasePermanentExclusions(), utils.CompiledConfigFilePattern)
	permanentNames = append(permanentNames, run.spec.PermanentExclusions...)

	matcher, loadError := ignore.Load(run.ignoreFilePath, run.compiler.logger)
	if loadError != nil {
		return fmt.Errorf(errorIgnoreFileFormat, loadError)
	}

	var permanentPaths []string
	if run.outputPath != "" && run.rootPath != "" {
		if outputRelativePath, inside := utils.RelativePathWithin(run.outputPath, run.rootPath); inside {
			permanentPaths = append(permanentPaths, outputRelativePath)
		}
	}
	run.projectPolicy = exclusion.NewPolicy(exclusion.Options{
		PermanentNames:      permanentNames,
		PermanentPaths:      permanentPaths,
		Matcher:             matcher,
		ExcludedDirectories: run.spec.ExcludedDirectories,
		ExcludedFiles:       run.spec.ExcludedFiles,
	})
	run.packagePolicy = exclusion.NewPolicy(exclusion.Options{
		PermanentNames: append(utils.BasePermanentExclusions(), run.spec.PermanentExclusions...),
	})
	return nil
}

func (run *compilationRun) walk(ctx context.Context) error {
	logger := run.compiler.logger
	if run.rootPath != "" {
		run.progress("walking project", zap.String("root", run.rootPath))
		projectWalker := walker.New(run.projectPolicy, classifier.New(run.spec.Extensions, logger), logger)
		records, walkError := collect(ctx, projectWalker, run.rootPath, "")
		if walkError != nil {
			return walkError
		}
		run.projectRecords = records
	}
	packageClassifier := classifier.New([]string{utils.GoSourceExtension}, logger)
	packageWalker := walker.New(run.packagePolicy, packageClassifier, logger)
	for _, packageTree := range run.spec.PackageTrees {
		run.progress("walking package", zap.String("package", packageTree.Label), zap.String("root", packageTree.RootPath))
		records, walkError := collect(ctx, packageWalker, packageTree.RootPath, packageTree.Label)
		if walkError != nil {
			return walkError
		}
		run.packageRecordsList = append(run.packageRecordsList, records)
	}
	return nil
}

func collect(ctx context.Context, treeWalker *walker.Walker, rootPath string, label string) ([]types.VisitRecord, error) {
	var records []types.VisitRecord
	for record := range treeWalker.Walk(rootPath, label) {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
		records = append(records, record)
	}
	return records, nil
}

func (run *compilationRun) appendSections(builder *output.Builder, aggregated aggregate.Result) error {
	if run.rootPath != "" {
		displayName := utils.DisplayName(run.rootPath)
		header := output.RenderProjectHeader(run.headerOptions(displayName), output.RenderTree(displayName, run.projectRecords))
		if appendError := builder.Append(header); appendError != nil {
			return appendError
		}
	}
	if len(run.spec.PackageTrees) > 0 {
		sections := make([]output.PackageSection, 0, len(run.spec.PackageTrees))
		for packageIndex, packageTree := range run.spec.PackageTrees {
			packageRecords := run.packageRecordsList[packageIndex]
			sections = append(sections, output.PackageSection{
				Label: packageTree.Label,
				Tree:  output.RenderTree(fmt.Sprintf(packageRootFormat, packageTree.Label), packageRecords),
				Empty: len(packageRecords) == 0,
			})
		}
		if appendError := builder.Append(output.RenderPackageTrees(run.packagePolicy.PermanentExclusions(), sections)); appendError != nil {
			return appendError
		}
	}
	if appendError := builder.Append(output.RenderContentsHeading(aggregated.FilesCompiled > 0)); appendError != nil {
		return appendError
	}
	return builder.Append(aggregated.Text)
}

func (run *compilationRun) headerOptions(displayName string) output.HeaderOptions {
	options := output.HeaderOptions{
		ProjectName:         displayName,
		SourcePath:          run.rootPath,
		ExcludedDirectories: run.spec.ExcludedDirectories,
		ExcludedFiles:       run.spec.ExcludedFiles,
		PermanentExclusions: run.projectPolicy.PermanentExclusions(),
	}
	if run.ignoreFilePath != "" {
		if _, statError := os.Stat(run.ignoreFilePath); statError == nil {
			options.IgnoreFileName = filepath.Base(run.ignoreFilePath)
		}
	}
	if run.compiler.revision != nil {
		if revision, found := run.compiler.revision(run.rootPath); found {
			options.Revision = revision
		}
	}
	return options
}

// estimateTokens counts tokens in text. Failures are logged and yield zero.
func (run *compilationRun) estimateTokens(text string) (int, string) {
	counter, model := run.compiler.counter, run.compiler.counterModel
	if counter == nil {
		createdCounter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{Model: run.spec.TokenModel})
		if counterError != nil {
			run.compiler.logger.Warn("token counting unavailable", zap.Error(counterError))
			return 0, run.spec.TokenModel
		}
		counter, model = createdCounter, resolvedModel
	}
	tokenCount, estimateError := tokenizer.Estimate(counter, text)
	if estimateError != nil {
		run.compiler.logger.Warn("token counting failed", zap.Error(estimateError))
		return 0, model
	}
	return tokenCount, model
}
