// Package exclusion decides whether a path is listed, content-included or removed.
package exclusion

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
)

// Decision is the outcome of evaluating one path.
type Decision struct {
	ExcludeFromTree bool
	ExcludeContent  bool
	Reason          types.OmissionReason
}

// PathMatcher reports whether a relative path is excluded by ignore rules.
type PathMatcher interface {
	Matches(relativePath string, isDirectory bool) bool
}

// Options configures a Policy.
type Options struct {
	// PermanentNames holds names or glob patterns excluded at every depth.
	PermanentNames []string
	// PermanentPaths holds relative paths excluded exactly, such as the output artifact.
	PermanentPaths      []string
	Matcher             PathMatcher
	ExcludedDirectories []string
	ExcludedFiles       []string
}

// Policy applies exclusion rules in precedence order: permanent exclusions,
// ignore rules, explicit name lists, then inclusion.
type Policy struct {
	permanentNames      []string
	permanentPaths      map[string]struct{}
	matcher             PathMatcher
	excludedDirectories map[string]struct{}
	excludedFiles       map[string]struct{}
}

// NewPolicy builds a Policy from options.
func NewPolicy(options Options) *Policy {
	policy := &Policy{
		permanentNames:      utils.DeduplicatePatterns(options.PermanentNames),
		permanentPaths:      toSet(normalizeAll(options.PermanentPaths)),
		matcher:             options.Matcher,
		excludedDirectories: toSet(options.ExcludedDirectories),
		excludedFiles:       toSet(options.ExcludedFiles),
	}
	return policy
}

// ShouldExclude evaluates relativePath, whose final element is name.
func (policy *Policy) ShouldExclude(relativePath string, isDirectory bool, name string) Decision {
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	if policy.IsPermanentlyExcluded(normalizedPath, name) {
		return Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonPermanentExclusion}
	}
	if policy.matcher != nil && policy.matcher.Matches(normalizedPath, isDirectory) {
		return Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonIgnoredByRule}
	}
	if isDirectory {
		if _, excluded := policy.excludedDirectories[name]; excluded {
			return Decision{ExcludeContent: true, Reason: types.ReasonExcludedDirectory}
		}
	} else if _, excluded := policy.excludedFiles[name]; excluded {
		return Decision{ExcludeContent: true, Reason: types.ReasonExcludedFile}
	}
	return Decision{Reason: types.ReasonNone}
}

// IsPermanentlyExcluded reports whether name or relativePath is system-reserved.
func (policy *Policy) IsPermanentlyExcluded(relativePath string, name string) bool {
	if _, reserved := policy.permanentPaths[utils.NormalizeRelativePath(relativePath)]; reserved {
		return true
	}
	for _, pattern := range policy.permanentNames {
		if pattern == name {
			return true
		}
		if isMatched, matchError := doublestar.Match(pattern, name); matchError == nil && isMatched {
			return true
		}
	}
	return false
}

// PermanentExclusions lists the configured permanent names and paths in sorted order.
func (policy *Policy) PermanentExclusions() []string {
	result := append([]string(nil), policy.permanentNames...)
	for permanentPath := range policy.permanentPaths {
		result = append(result, permanentPath)
	}
	sort.Strings(result)
	return utils.DeduplicatePatterns(result)
}

func normalizeAll(paths []string) []string {
	normalized := make([]string, 0, len(paths))
	for _, path := range paths {
		if normalizedPath := utils.NormalizeRelativePath(path); normalizedPath != "" {
			normalized = append(normalized, normalizedPath)
		}
	}
	return normalized
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}
