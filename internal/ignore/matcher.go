// Package ignore compiles gitignore-style rule files into a pure path matcher.
package ignore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/utils"
)

const (
	commentPrefix          = "#"
	negationPrefix         = "!"
	escapeCharacter        = '\\'
	directorySuffix        = "/"
	pathSeparator          = "/"
	anyDepthPrefix         = "**/"
	trailingDoubleStar     = "/**"
	oneOrMoreSegments      = "/**/*"
	malformedPatternFormat = "skipping malformed ignore pattern"
	readIgnoreFileFormat   = "read ignore file %s: %w"
)

// Rule is a single compiled ignore pattern.
type Rule struct {
	Source        string
	LineNumber    int
	Negated       bool
	DirectoryOnly bool
	Anchored      bool
	glob          string
}

// Matcher answers whether a relative path is excluded by an ordered rule list.
// The zero value and a nil Matcher match nothing.
type Matcher struct {
	rules []Rule
}

// Compile parses ignore-file content. Malformed patterns are logged and skipped.
func Compile(content string, logger *zap.Logger) *Matcher {
	logger = utils.LoggerOrNop(logger)
	matcher := &Matcher{}
	normalizedContent := strings.ReplaceAll(content, "\r\n", "\n")
	for lineIndex, line := range strings.Split(normalizedContent, "\n") {
		rule, isRule := parseRule(line, lineIndex+1)
		if !isRule {
			continue
		}
		if !doublestar.ValidatePattern(rule.glob) {
			logger.Warn(malformedPatternFormat,
				zap.Int("line", rule.LineNumber),
				zap.String("pattern", rule.Source))
			continue
		}
		matcher.rules = append(matcher.rules, rule)
	}
	return matcher
}

// Load reads and compiles the ignore file at path. A missing file yields an
// empty matcher; any other read failure is returned.
func Load(path string, logger *zap.Logger) (*Matcher, error) {
	if path == "" {
		return &Matcher{}, nil
	}
	content, readError := os.ReadFile(path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			utils.LoggerOrNop(logger).Warn("ignore file not found", zap.String("path", path))
			return &Matcher{}, nil
		}
		return nil, fmt.Errorf(readIgnoreFileFormat, path, readError)
	}
	return Compile(string(content), logger), nil
}

// Rules returns a copy of the compiled rules in file order.
func (matcher *Matcher) Rules() []Rule {
	if matcher == nil {
		return nil
	}
	return append([]Rule(nil), matcher.rules...)
}

// Empty reports whether the matcher holds no rules.
func (matcher *Matcher) Empty() bool {
	return matcher == nil || len(matcher.rules) == 0
}

// Matches reports whether relativePath is excluded. A path inside an excluded
// directory stays excluded regardless of later negations.
func (matcher *Matcher) Matches(relativePath string, isDirectory bool) bool {
	if matcher.Empty() {
		return false
	}
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	if normalizedPath == "" {
		return false
	}
	segments := strings.Split(normalizedPath, pathSeparator)
	for ancestorLength := 1; ancestorLength < len(segments); ancestorLength++ {
		if matcher.evaluate(strings.Join(segments[:ancestorLength], pathSeparator), true) {
			return true
		}
	}
	return matcher.evaluate(normalizedPath, isDirectory)
}

func (matcher *Matcher) evaluate(normalizedPath string, isDirectory bool) bool {
	excluded := false
	for _, rule := range matcher.rules {
		if rule.DirectoryOnly && !isDirectory {
			continue
		}
		isMatched, matchError := doublestar.Match(rule.glob, normalizedPath)
		if matchError != nil || !isMatched {
			continue
		}
		excluded = !rule.Negated
	}
	return excluded
}

// parseRule converts one ignore-file line into a rule. Blank lines and comments
// report false.
func parseRule(line string, lineNumber int) (Rule, bool) {
	pattern := trimTrailingSpaces(strings.TrimSuffix(line, "\r"))
	if pattern == "" || strings.HasPrefix(pattern, commentPrefix) {
		return Rule{}, false
	}
	rule := Rule{Source: line, LineNumber: lineNumber}
	switch {
	case strings.HasPrefix(pattern, negationPrefix):
		rule.Negated = true
		pattern = pattern[len(negationPrefix):]
	case strings.HasPrefix(pattern, `\`+negationPrefix), strings.HasPrefix(pattern, `\`+commentPrefix):
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, directorySuffix) {
		rule.DirectoryOnly = true
		pattern = strings.TrimRight(pattern, directorySuffix)
	}
	if pattern == "" {
		return Rule{}, false
	}
	if strings.Contains(pattern, pathSeparator) {
		rule.Anchored = true
		pattern = strings.TrimLeft(pattern, pathSeparator)
	}
	pattern = escapeBraces(pattern)
	if rule.Anchored {
		rule.glob = pattern
	} else {
		rule.glob = anyDepthPrefix + pattern
	}
	// "foo/**" matches everything inside foo but not foo itself.
	if strings.HasSuffix(rule.glob, trailingDoubleStar) {
		rule.glob = strings.TrimSuffix(rule.glob, trailingDoubleStar) + oneOrMoreSegments
	}
	return rule, true
}

// trimTrailingSpaces drops trailing spaces that are not escaped with a backslash.
func trimTrailingSpaces(pattern string) string {
	for strings.HasSuffix(pattern, " ") {
		withoutSpace := pattern[:len(pattern)-1]
		if strings.HasSuffix(withoutSpace, `\`) && !strings.HasSuffix(withoutSpace, `\\`) {
			return pattern
		}
		pattern = withoutSpace
	}
	return pattern
}

// escapeBraces disables brace expansion, which gitignore does not support.
func escapeBraces(pattern string) string {
	var builder strings.Builder
	escaped := false
	for _, character := range pattern {
		switch {
		case escaped:
			escaped = false
		case character == escapeCharacter:
			escaped = true
		case character == '{' || character == '}':
			builder.WriteRune(escapeCharacter)
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
