// Package utils contains general helper functions used across codexify.
package utils

import (
	"path/filepath"
	"strings"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// SplitCommaSeparated flattens values such as ".py,.md" into trimmed, non-empty entries.
func SplitCommaSeparated(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmedPart := strings.TrimSpace(part)
			if trimmedPart != "" {
				result = append(result, trimmedPart)
			}
		}
	}
	return result
}

// RelativePathOrSelf calculates the relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// RelativePathWithin returns the forward-slash path of fullPath below root and
// reports false when fullPath lies outside root or equals it.
func RelativePathWithin(fullPath, root string) (string, bool) {
	relativePath := RelativePathOrSelf(fullPath, root)
	if relativePath == "." || filepath.IsAbs(relativePath) {
		return "", false
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+pathSegmentSeparator) {
		return "", false
	}
	return relativePath, true
}

// NormalizeRelativePath converts a path to forward slashes without leading "./" or "/".
func NormalizeRelativePath(relativePath string) string {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	for strings.HasPrefix(normalizedPath, "./") {
		normalizedPath = strings.TrimPrefix(normalizedPath, "./")
	}
	normalizedPath = strings.TrimPrefix(normalizedPath, pathSegmentSeparator)
	normalizedPath = strings.TrimSuffix(normalizedPath, pathSegmentSeparator)
	if normalizedPath == "." {
		return ""
	}
	return normalizedPath
}

// DisplayName returns the base name used to label a root directory.
func DisplayName(absolutePath string) string {
	baseName := filepath.Base(filepath.Clean(absolutePath))
	if baseName == "." || baseName == pathSegmentSeparator || baseName == string(filepath.Separator) || baseName == "" {
		return CurrentDirectoryDisplayName
	}
	return baseName
}
