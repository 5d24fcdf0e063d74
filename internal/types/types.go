// Package types defines every cross-package data structure used by codexify.
package types

// OmissionReason explains why a visited path was not content-included.
type OmissionReason string

const (
	// ReasonNone marks a record without omission.
	ReasonNone OmissionReason = "none"
	// ReasonExcludedDirectory marks a directory named in the explicit exclusion list.
	ReasonExcludedDirectory OmissionReason = "excluded-dir"
	// ReasonExcludedFile marks a file named in the explicit exclusion list.
	ReasonExcludedFile OmissionReason = "excluded-file"
	// ReasonIgnoredByRule marks a path matched by the ignore-rule file.
	ReasonIgnoredByRule OmissionReason = "ignored-by-rule"
	// ReasonBinary marks a file whose leading bytes look binary.
	ReasonBinary OmissionReason = "binary"
	// ReasonExtensionMismatch marks a file outside the extension allow-list.
	ReasonExtensionMismatch OmissionReason = "extension-mismatch"
	// ReasonPermanentExclusion marks a system-reserved path.
	ReasonPermanentExclusion OmissionReason = "permanent-exclusion"
	// ReasonUnreadable marks a path that could not be listed or read.
	ReasonUnreadable OmissionReason = "unreadable"
	// ReasonSymlink marks a symbolic link, which is listed but never followed.
	ReasonSymlink OmissionReason = "symlink"
)

// PackageTree is a pre-fetched external source tree aggregated after the project tree.
type PackageTree struct {
	RootPath string
	Label    string
}

// ProjectSpec is the immutable input of a compilation run.
type ProjectSpec struct {
	RootPath            string
	Extensions          []string
	ExcludedDirectories []string
	ExcludedFiles       []string
	PermanentExclusions []string
	IgnoreFilePath      string
	PackageTrees        []PackageTree
	// OutputFilePath selects a file destination. An empty value keeps the document in memory.
	OutputFilePath string
	TokenModel     string
	Verbose        bool
}

// VisitRecord describes one path produced by the tree walker.
type VisitRecord struct {
	RelativePath    string
	AbsolutePath    string
	Name            string
	Depth           int
	IsDirectory     bool
	IncludedInTree  bool
	ContentIncluded bool
	Reason          OmissionReason
	PackageLabel    string
	// HiddenDirectories and HiddenFiles count entries below an explicitly excluded directory.
	HiddenDirectories int
	HiddenFiles       int
}

// Omitted reports whether the record carries an omission marker.
func (record VisitRecord) Omitted() bool {
	return record.Reason != "" && record.Reason != ReasonNone
}

// CompilationResult is the outcome of a compilation run.
type CompilationResult struct {
	Success        bool
	CompiledText   string
	OutputFilePath string
	TokenCount     int
	TokenModel     string
	FilesCompiled  int
	FilesSkipped   int
	ErrorMessage   string
}
