// Package packages resolves Go import paths to source directories so their
// trees can be compiled next to the project tree.
package packages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/sync/errgroup"
	gopackages "golang.org/x/tools/go/packages"

	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
)

const (
	goModFileName          = "go.mod"
	defaultConcurrency     = 4
	readGoModFormat        = "read %s: %w"
	parseGoModFormat       = "parse %s: %w"
	invalidImportMessage   = "skipping invalid import path"
	unresolvedMessage      = "skipping unresolved package"
	resolvedMessage        = "resolved package"
	packageErrorsSeparator = "; "
)

// ModuleInfo describes a go.mod found at a project root.
type ModuleInfo struct {
	Directory  string
	ModulePath string
	GoVersion  string
}

// DetectModule parses directory/go.mod. The boolean is false when the file is absent.
func DetectModule(directory string) (ModuleInfo, bool, error) {
	goModPath := filepath.Join(directory, goModFileName)
	content, readError := os.ReadFile(goModPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return ModuleInfo{}, false, nil
		}
		return ModuleInfo{}, false, fmt.Errorf(readGoModFormat, goModPath, readError)
	}
	parsedFile, parseError := modfile.ParseLax(goModPath, content, nil)
	if parseError != nil {
		return ModuleInfo{}, false, fmt.Errorf(parseGoModFormat, goModPath, parseError)
	}
	info := ModuleInfo{Directory: directory}
	if parsedFile.Module != nil {
		info.ModulePath = parsedFile.Module.Mod.Path
	}
	if parsedFile.Go != nil {
		info.GoVersion = parsedFile.Go.Version
	}
	return info, true, nil
}

// Loader returns the source directory of one import path.
type Loader interface {
	Load(ctx context.Context, workingDirectory string, importPath string) (string, error)
}

// Resolver turns import paths into package trees.
type Resolver struct {
	loader      Loader
	concurrency int
	logger      *zap.Logger
}

// NewResolver builds a Resolver. A nil loader uses golang.org/x/tools/go/packages.
func NewResolver(loader Loader, logger *zap.Logger) *Resolver {
	if loader == nil {
		loader = GoListLoader{}
	}
	return &Resolver{loader: loader, concurrency: defaultConcurrency, logger: utils.LoggerOrNop(logger)}
}

// Resolve validates and loads importPaths concurrently. Invalid or unresolvable
// paths are logged and dropped. The working directory is projectRoot when it
// holds a go.mod and the process working directory otherwise. Results keep the
// order of importPaths.
func (resolver *Resolver) Resolve(ctx context.Context, projectRoot string, importPaths []string) ([]types.PackageTree, error) {
	workingDirectory, directoryError := resolver.workingDirectory(projectRoot)
	if directoryError != nil {
		return nil, directoryError
	}

	candidates := utils.DeduplicatePatterns(importPaths)
	directories := make([]string, len(candidates))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(resolver.concurrency)
	for candidateIndex, importPath := range candidates {
		if validationError := module.CheckImportPath(importPath); validationError != nil {
			resolver.logger.Warn(invalidImportMessage, zap.String("package", importPath), zap.Error(validationError))
			continue
		}
		group.Go(func() error {
			directory, loadError := resolver.loader.Load(groupContext, workingDirectory, importPath)
			if loadError != nil {
				if contextError := groupContext.Err(); contextError != nil {
					return contextError
				}
				resolver.logger.Warn(unresolvedMessage, zap.String("package", importPath), zap.Error(loadError))
				return nil
			}
			resolver.logger.Info(resolvedMessage, zap.String("package", importPath), zap.String("directory", directory))
			directories[candidateIndex] = directory
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}

	var trees []types.PackageTree
	for candidateIndex, directory := range directories {
		if directory != "" {
			trees = append(trees, types.PackageTree{RootPath: directory, Label: candidates[candidateIndex]})
		}
	}
	return trees, nil
}

func (resolver *Resolver) workingDirectory(projectRoot string) (string, error) {
	if projectRoot != "" {
		info, found, detectError := DetectModule(projectRoot)
		if detectError != nil {
			resolver.logger.Warn("ignoring unreadable go.mod", zap.String("directory", projectRoot), zap.Error(detectError))
		} else if found {
			resolver.logger.Info("using module root", zap.String("module", info.ModulePath), zap.String("directory", info.Directory))
			return projectRoot, nil
		}
	}
	currentDirectory, currentError := os.Getwd()
	if currentError != nil {
		return "", fmt.Errorf("determine working directory: %w", currentError)
	}
	return currentDirectory, nil
}

// GoListLoader resolves packages through golang.org/x/tools/go/packages.
type GoListLoader struct{}

// Load returns the directory holding the Go files of importPath.
func (GoListLoader) Load(ctx context.Context, workingDirectory string, importPath string) (string, error) {
	configuration := &gopackages.Config{
		Context: ctx,
		Dir:     workingDirectory,
		Mode:    gopackages.NeedName | gopackages.NeedFiles,
	}
	loadedPackages, loadError := gopackages.Load(configuration, importPath)
	if loadError != nil {
		return "", fmt.Errorf("load %s: %w", importPath, loadError)
	}
	for _, loadedPackage := range loadedPackages {
		if len(loadedPackage.Errors) > 0 {
			messages := make([]string, 0, len(loadedPackage.Errors))
			for _, packageError := range loadedPackage.Errors {
				messages = append(messages, packageError.Msg)
			}
			return "", fmt.Errorf("load %s: %s", importPath, strings.Join(messages, packageErrorsSeparator))
		}
		for _, sourceFiles := range [][]string{loadedPackage.GoFiles, loadedPackage.OtherFiles, loadedPackage.IgnoredFiles} {
			if len(sourceFiles) > 0 {
				return filepath.Dir(sourceFiles[0]), nil
			}
		}
	}
	return "", fmt.Errorf("load %s: no source files", importPath)
}
