package output

import (
	"fmt"
	"strings"

	"github.com/temirov/codexify/internal/types"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	contentOmittedMarker = "[Content Omitted]"
	unreadableMarker     = "[Unreadable]"
	symlinkMarker        = "[Symlink]"
	hiddenCountsFormat   = " (Dirs: %d, Files: %d)"
)

// RenderTree draws the tree diagram for records in walk order. The first line is
// rootName; records not included in the tree are skipped.
func RenderTree(rootName string, records []types.VisitRecord) string {
	listed := make([]types.VisitRecord, 0, len(records))
	for _, record := range records {
		if record.IncludedInTree {
			listed = append(listed, record)
		}
	}
	lastSibling := lastSiblingFlags(listed)

	var builder strings.Builder
	builder.WriteString(rootName)
	builder.WriteString("\n")
	ancestorIsLast := map[int]bool{}
	for recordIndex, record := range listed {
		for level := 1; level < record.Depth; level++ {
			if ancestorIsLast[level] {
				builder.WriteString(treeLastPadding)
			} else {
				builder.WriteString(treeBranchPadding)
			}
		}
		if lastSibling[recordIndex] {
			builder.WriteString(treeLastConnector)
		} else {
			builder.WriteString(treeBranchConnector)
		}
		builder.WriteString(record.Name)
		if marker := omissionMarker(record); marker != "" {
			builder.WriteString(" ")
			builder.WriteString(marker)
		}
		builder.WriteString("\n")
		ancestorIsLast[record.Depth] = lastSibling[recordIndex]
	}
	return builder.String()
}

// lastSiblingFlags marks records that have no later sibling under the same parent.
func lastSiblingFlags(records []types.VisitRecord) []bool {
	flags := make([]bool, len(records))
	siblingSeen := map[int]bool{}
	for recordIndex := len(records) - 1; recordIndex >= 0; recordIndex-- {
		depth := records[recordIndex].Depth
		for seenDepth := range siblingSeen {
			if seenDepth > depth {
				delete(siblingSeen, seenDepth)
			}
		}
		flags[recordIndex] = !siblingSeen[depth]
		siblingSeen[depth] = true
	}
	return flags
}

func omissionMarker(record types.VisitRecord) string {
	if !record.Omitted() {
		return ""
	}
	switch record.Reason {
	case types.ReasonUnreadable:
		return unreadableMarker
	case types.ReasonSymlink:
		return symlinkMarker
	case types.ReasonExcludedDirectory:
		return contentOmittedMarker + fmt.Sprintf(hiddenCountsFormat, record.HiddenDirectories, record.HiddenFiles)
	default:
		return contentOmittedMarker
	}
}
