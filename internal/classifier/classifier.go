// Package classifier decides whether a file's content is eligible for compilation.
package classifier

import (
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
)

const (
	extensionSeparator = "."
	unreadableMessage  = "unable to sniff file content"
)

// ExtensionFilter is the content allow-list. An empty filter accepts every name.
type ExtensionFilter struct {
	exactNames map[string]struct{}
	suffixes   []string
}

// NewExtensionFilter normalizes entries: ".py" is a suffix, "Makefile" is both an
// exact name and the suffix ".Makefile", and "config.yaml" is an exact name.
// Matching is case-sensitive.
func NewExtensionFilter(entries []string) ExtensionFilter {
	filter := ExtensionFilter{exactNames: map[string]struct{}{}}
	for _, entry := range utils.DeduplicatePatterns(entries) {
		trimmedEntry := strings.TrimSpace(entry)
		switch {
		case trimmedEntry == "" || trimmedEntry == extensionSeparator:
			continue
		case strings.HasPrefix(trimmedEntry, extensionSeparator):
			filter.suffixes = append(filter.suffixes, trimmedEntry)
		case !strings.Contains(trimmedEntry, extensionSeparator):
			filter.exactNames[trimmedEntry] = struct{}{}
			filter.suffixes = append(filter.suffixes, extensionSeparator+trimmedEntry)
		default:
			filter.exactNames[trimmedEntry] = struct{}{}
		}
	}
	filter.suffixes = utils.DeduplicatePatterns(filter.suffixes)
	return filter
}

// Empty reports whether the filter accepts every name.
func (filter ExtensionFilter) Empty() bool {
	return len(filter.exactNames) == 0 && len(filter.suffixes) == 0
}

// Accepts reports whether fileName passes the allow-list.
func (filter ExtensionFilter) Accepts(fileName string) bool {
	if filter.Empty() {
		return true
	}
	if _, exact := filter.exactNames[fileName]; exact {
		return true
	}
	for _, suffix := range filter.suffixes {
		if strings.HasSuffix(fileName, suffix) {
			return true
		}
	}
	return false
}

// Classifier applies the extension filter and binary detection to files that
// already passed the exclusion policy.
type Classifier struct {
	filter ExtensionFilter
	logger *zap.Logger
}

// New builds a Classifier for the given extension entries.
func New(extensions []string, logger *zap.Logger) *Classifier {
	return &Classifier{filter: NewExtensionFilter(extensions), logger: utils.LoggerOrNop(logger)}
}

// IsContentEligible reports whether the file at absolutePath, named fileName,
// should be content-included, and the omission reason when it should not.
func (classifier *Classifier) IsContentEligible(absolutePath string, fileName string) (bool, types.OmissionReason) {
	if !classifier.filter.Accepts(fileName) {
		return false, types.ReasonExtensionMismatch
	}
	binary, sniffError := IsFileBinary(absolutePath)
	if sniffError != nil {
		classifier.logger.Warn(unreadableMessage, zap.String("path", absolutePath), zap.Error(sniffError))
		return false, types.ReasonUnreadable
	}
	if binary {
		return false, types.ReasonBinary
	}
	return true, types.ReasonNone
}
