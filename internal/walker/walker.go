// Package walker traverses a directory tree lazily and emits one VisitRecord per
// listed path in deterministic order.
package walker

import (
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/exclusion"
	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
)

// specialFileModes are entries that are listed but never opened; reading a
// FIFO without a writer blocks forever.
const specialFileModes = fs.ModeNamedPipe | fs.ModeSocket | fs.ModeDevice | fs.ModeCharDevice | fs.ModeIrregular

// hiddenCountLimit bounds the entries counted below an explicitly excluded directory.
const hiddenCountLimit = 100000

const (
	skippedEntryMessage      = "path removed from tree"
	specialFileMessage       = "listing special file without reading it"
	unreadableDirectoryWarn  = "skipping unreadable directory"
	hiddenCountTruncatedWarn = "hidden entry count truncated"
)

// Policy decides whether a path is listed and whether its content is eligible.
type Policy interface {
	ShouldExclude(relativePath string, isDirectory bool, name string) exclusion.Decision
	IsPermanentlyExcluded(relativePath string, name string) bool
}

// Classifier decides content eligibility for files that passed the policy.
type Classifier interface {
	IsContentEligible(absolutePath string, fileName string) (bool, types.OmissionReason)
}

// Walker traverses trees using a policy and a classifier.
type Walker struct {
	policy     Policy
	classifier Classifier
	logger     *zap.Logger
}

// New builds a Walker.
func New(policy Policy, contentClassifier Classifier, logger *zap.Logger) *Walker {
	return &Walker{policy: policy, classifier: contentClassifier, logger: utils.LoggerOrNop(logger)}
}

// Walk is a convenience wrapper around New(...).Walk for the project tree.
func Walk(rootPath string, policy Policy, contentClassifier Classifier) iter.Seq[types.VisitRecord] {
	return New(policy, contentClassifier, nil).Walk(rootPath, "")
}

// Walk returns a depth-first sequence over rootPath. The root itself is not
// emitted; its children have depth 1. Siblings are ordered directories first,
// then by name. Every call re-reads the file system.
func (walker *Walker) Walk(rootPath string, packageLabel string) iter.Seq[types.VisitRecord] {
	return func(yield func(types.VisitRecord) bool) {
		rootEntries, readError := os.ReadDir(rootPath)
		if readError != nil {
			walker.logger.Warn(unreadableDirectoryWarn, zap.String("path", rootPath), zap.Error(readError))
			return
		}
		walker.walkEntries(rootPath, "", 1, packageLabel, rootEntries, yield)
	}
}

func (walker *Walker) walkEntries(
	absoluteDirectoryPath string,
	relativeDirectoryPath string,
	depth int,
	packageLabel string,
	directoryEntries []os.DirEntry,
	yield func(types.VisitRecord) bool,
) bool {
	sortEntries(directoryEntries)
	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		relativePath := path.Join(relativeDirectoryPath, entryName)
		absolutePath := filepath.Join(absoluteDirectoryPath, entryName)
		isDirectory := directoryEntry.IsDir()

		decision := walker.policy.ShouldExclude(relativePath, isDirectory, entryName)
		if decision.ExcludeFromTree {
			walker.logger.Debug(skippedEntryMessage, zap.String("path", relativePath), zap.String("reason", string(decision.Reason)))
			continue
		}

		record := types.VisitRecord{
			RelativePath:   relativePath,
			AbsolutePath:   absolutePath,
			Name:           entryName,
			Depth:          depth,
			IsDirectory:    isDirectory,
			IncludedInTree: true,
			Reason:         types.ReasonNone,
			PackageLabel:   packageLabel,
		}

		if isDirectory {
			if decision.ExcludeContent {
				record.Reason = decision.Reason
				record.HiddenDirectories, record.HiddenFiles = walker.countHidden(absolutePath, relativePath)
				if !yield(record) {
					return false
				}
				continue
			}
			childEntries, readError := os.ReadDir(absolutePath)
			if readError != nil {
				walker.logger.Warn(unreadableDirectoryWarn, zap.String("path", relativePath), zap.Error(readError))
				record.Reason = types.ReasonUnreadable
				if !yield(record) {
					return false
				}
				continue
			}
			if !yield(record) {
				return false
			}
			if !walker.walkEntries(absolutePath, relativePath, depth+1, packageLabel, childEntries, yield) {
				return false
			}
			continue
		}

		switch {
		case directoryEntry.Type()&fs.ModeSymlink != 0:
			record.Reason = types.ReasonSymlink
		case directoryEntry.Type()&specialFileModes != 0:
			walker.logger.Debug(specialFileMessage, zap.String("path", relativePath), zap.String("mode", directoryEntry.Type().String()))
			record.Reason = types.ReasonUnreadable
		case decision.ExcludeContent:
			record.Reason = decision.Reason
		default:
			record.ContentIncluded, record.Reason = walker.classifier.IsContentEligible(absolutePath, entryName)
		}
		if !yield(record) {
			return false
		}
	}
	return true
}

// countHidden counts directories and files below an excluded directory,
// skipping permanent exclusions and never following symlinks.
func (walker *Walker) countHidden(absoluteDirectoryPath string, relativeDirectoryPath string) (int, int) {
	directoryCount, fileCount := 0, 0
	pending := []string{absoluteDirectoryPath}
	relativeOf := map[string]string{absoluteDirectoryPath: relativeDirectoryPath}
	for len(pending) > 0 {
		if directoryCount+fileCount >= hiddenCountLimit {
			walker.logger.Warn(hiddenCountTruncatedWarn, zap.String("path", relativeDirectoryPath), zap.Int("limit", hiddenCountLimit))
			break
		}
		currentDirectory := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		directoryEntries, readError := os.ReadDir(currentDirectory)
		if readError != nil {
			continue
		}
		for _, directoryEntry := range directoryEntries {
			entryRelativePath := path.Join(relativeOf[currentDirectory], directoryEntry.Name())
			if walker.policy.IsPermanentlyExcluded(entryRelativePath, directoryEntry.Name()) {
				continue
			}
			if directoryEntry.IsDir() {
				directoryCount++
				childPath := filepath.Join(currentDirectory, directoryEntry.Name())
				relativeOf[childPath] = entryRelativePath
				pending = append(pending, childPath)
				continue
			}
			fileCount++
		}
	}
	return directoryCount, fileCount
}

// sortEntries orders directories before files, then by case-sensitive name.
func sortEntries(directoryEntries []os.DirEntry) {
	sort.SliceStable(directoryEntries, func(leftIndex, rightIndex int) bool {
		leftIsDirectory := directoryEntries[leftIndex].IsDir()
		rightIsDirectory := directoryEntries[rightIndex].IsDir()
		if leftIsDirectory != rightIsDirectory {
			return leftIsDirectory
		}
		return directoryEntries[leftIndex].Name() < directoryEntries[rightIndex].Name()
	})
}
