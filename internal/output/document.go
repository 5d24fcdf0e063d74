// Package output renders the tree diagram and assembles the compiled document.
package output

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	commentPrefix      = "# "
	ruleWidth          = 70
	projectTitleFormat = "# === Directory Tree for Local Path: '%s' ===\n"
	sourceFormat       = "# (Source: %s)\n"
	revisionFormat     = "# (Revision: %s)\n"
	optionsFormat      = "# (Options: %s%s%s)\n"
	ignoreRulesFormat  = "using rules from '%s'"
	noIgnoreRules      = "no ignore file used"
	userDirsFormat     = ", user dir excludes: [%s]"
	userFilesFormat    = ", user file excludes: [%s]"
	permanentFormat    = "# (Permanently Excluded: %s)\n"
	encodingNote       = "# (File content read as UTF-8; undecodable bytes are replaced with U+FFFD)\n"
	omittedNote        = "# (Dirs/Files marked [Content Omitted] exist but their content is excluded based on rules/extensions)\n"
	emptyTreeNote      = "# (Directory appears empty or all items were excluded)\n"

	packageTreesTitle   = "# === Package Trees ===\n"
	packageTreeFormat   = "# --- Tree for Package: %s ---\n"
	packageEmptyNote    = "# (Package directory seems empty or only contained excluded items)\n"
	contentsTitle       = "# === Compiled File Contents ===\n"
	noContentsTitle     = "# === No files matched criteria for content compilation ===\n"
	summaryFormat       = "# Summary: %d file(s) compiled, %d file(s) skipped, ~%d tokens (%s)\n"
	skippedNoteFormat   = "# Note: %d file(s) were skipped (binary, unreadable or failed to read).\n"
	listSeparator       = ", "
)

// ErrDocumentFinalized is returned when appending to a finalized document.
var ErrDocumentFinalized = errors.New("document already finalized")

// HeaderOptions describes the project tree banner.
type HeaderOptions struct {
	ProjectName         string
	SourcePath          string
	Revision            string
	IgnoreFileName      string
	ExcludedDirectories []string
	ExcludedFiles       []string
	PermanentExclusions []string
}

// PackageSection is one rendered package tree.
type PackageSection struct {
	Label string
	Tree  string
	Empty bool
}

// Summary carries the statistics printed in the footer.
type Summary struct {
	FilesCompiled int
	FilesSkipped  int
	TokenCount    int
	TokenModel    string
}

// Builder collects document sections in order. Sections can only be appended.
type Builder struct {
	sections  []string
	finalized bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds a section. Empty sections are ignored.
func (builder *Builder) Append(section string) error {
	if builder.finalized {
		return ErrDocumentFinalized
	}
	if section != "" {
		builder.sections = append(builder.sections, section)
	}
	return nil
}

// Text returns the sections appended so far.
func (builder *Builder) Text() string {
	return strings.Join(builder.sections, "")
}

// Finalize freezes the builder and returns the immutable document.
func (builder *Builder) Finalize() Document {
	builder.finalized = true
	return Document{sections: append([]string(nil), builder.sections...)}
}

// Document is a finalized compiled document.
type Document struct {
	sections []string
}

// Text returns the full document text.
func (document Document) Text() string {
	return strings.Join(document.sections, "")
}

// Sections returns a copy of the document sections in order.
func (document Document) Sections() []string {
	return append([]string(nil), document.sections...)
}

// RenderProjectHeader renders the banner and the commented tree diagram.
func RenderProjectHeader(options HeaderOptions, tree string) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, projectTitleFormat, options.ProjectName)
	fmt.Fprintf(&builder, sourceFormat, options.SourcePath)
	if options.Revision != "" {
		fmt.Fprintf(&builder, revisionFormat, options.Revision)
	}
	ignoreDescription := noIgnoreRules
	if options.IgnoreFileName != "" {
		ignoreDescription = fmt.Sprintf(ignoreRulesFormat, options.IgnoreFileName)
	}
	directoriesDescription := ""
	if len(options.ExcludedDirectories) > 0 {
		directoriesDescription = fmt.Sprintf(userDirsFormat, sortedList(options.ExcludedDirectories))
	}
	filesDescription := ""
	if len(options.ExcludedFiles) > 0 {
		filesDescription = fmt.Sprintf(userFilesFormat, sortedList(options.ExcludedFiles))
	}
	fmt.Fprintf(&builder, optionsFormat, ignoreDescription, directoriesDescription, filesDescription)
	fmt.Fprintf(&builder, permanentFormat, sortedList(options.PermanentExclusions))
	builder.WriteString(encodingNote)
	builder.WriteString(omittedNote)
	builder.WriteString(rule("="))
	if treeHasEntries(tree) {
		builder.WriteString(commentLines(tree))
	} else {
		builder.WriteString(emptyTreeNote)
	}
	builder.WriteString(rule("="))
	builder.WriteString("\n")
	return builder.String()
}

// RenderPackageTrees renders every package tree under one banner.
func RenderPackageTrees(permanentExclusions []string, sections []PackageSection) string {
	if len(sections) == 0 {
		return ""
	}
	var builder strings.Builder
	builder.WriteString(packageTreesTitle)
	fmt.Fprintf(&builder, permanentFormat, sortedList(permanentExclusions))
	builder.WriteString(rule("="))
	builder.WriteString("\n")
	for _, section := range sections {
		fmt.Fprintf(&builder, packageTreeFormat, section.Label)
		builder.WriteString(rule("-"))
		if section.Empty {
			builder.WriteString(packageEmptyNote)
		} else {
			builder.WriteString(commentLines(section.Tree))
		}
		builder.WriteString(rule("-"))
		builder.WriteString("\n")
	}
	builder.WriteString(rule("="))
	builder.WriteString("\n")
	return builder.String()
}

// RenderContentsHeading opens the content section.
func RenderContentsHeading(hasContent bool) string {
	if !hasContent {
		return noContentsTitle
	}
	return contentsTitle + rule("=") + "\n"
}

// RenderFooter renders the trailing summary block.
func RenderFooter(summary Summary) string {
	var builder strings.Builder
	builder.WriteString(rule("="))
	if summary.FilesSkipped > 0 {
		fmt.Fprintf(&builder, skippedNoteFormat, summary.FilesSkipped)
	}
	fmt.Fprintf(&builder, summaryFormat, summary.FilesCompiled, summary.FilesSkipped, summary.TokenCount, summary.TokenModel)
	builder.WriteString(rule("="))
	return builder.String()
}

func rule(character string) string {
	return commentPrefix + strings.Repeat(character, ruleWidth) + "\n"
}

func commentLines(text string) string {
	var builder strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		builder.WriteString(commentPrefix)
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	return builder.String()
}

// treeHasEntries reports whether a rendered tree lists anything below its root line.
func treeHasEntries(tree string) bool {
	return strings.Contains(strings.TrimSuffix(tree, "\n"), "\n")
}

func sortedList(values []string) string {
	sortedValues := append([]string(nil), values...)
	sort.Strings(sortedValues)
	return strings.Join(sortedValues, listSeparator)
}
