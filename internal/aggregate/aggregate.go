// Package aggregate concatenates the content of included files into framed blocks.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/types"
	"github.com/temirov/codexify/internal/utils"
)

const (
	openMarkerFormat     = "=== %s ==="
	endMarkerFormat      = "=== END %s ==="
	packageHeadingFormat = "--- Package: %s ---\n\n"
	packagePathFormat    = "package:%s/%s"
	escapeNoteFormat     = "# Note: %d line(s) of %s looked like block markers and were escaped with a leading '\\'\n"
	readErrorFormat      = "# Error reading file '%s': %v\n\n"
	escapePrefix         = `\`
	markerFence          = "=== "
	markerClose          = " ==="
	lineBreak            = "\n"
	skippedFileMessage   = "skipping file content"
	readFailedMessage    = "failed to read file content"
)

// ContentReader reads the bytes of one file.
type ContentReader interface {
	Read(absolutePath string) ([]byte, error)
}

// FileSystemReader opens and closes each file on every read.
type FileSystemReader struct{}

// Read returns the full content of the file at absolutePath.
func (FileSystemReader) Read(absolutePath string) ([]byte, error) {
	fileHandle, openError := os.Open(absolutePath)
	if openError != nil {
		return nil, openError
	}
	defer fileHandle.Close()
	return io.ReadAll(fileHandle)
}

// Result is the aggregated content and its counters.
type Result struct {
	Text          string
	FilesCompiled int
	FilesSkipped  int
}

// Aggregator frames file content in walk order.
type Aggregator struct {
	reader ContentReader
	logger *zap.Logger
}

// New builds an Aggregator. A nil reader reads from the file system.
func New(reader ContentReader, logger *zap.Logger) *Aggregator {
	if reader == nil {
		reader = FileSystemReader{}
	}
	return &Aggregator{reader: reader, logger: utils.LoggerOrNop(logger)}
}

// Aggregate is a convenience wrapper for New(reader, nil).Aggregate.
func Aggregate(records []types.VisitRecord, reader ContentReader) (string, int, int) {
	result, _ := New(reader, nil).Aggregate(context.Background(), records)
	return result.Text, result.FilesCompiled, result.FilesSkipped
}

// Aggregate emits one block per content-included record. Project records come
// first; records carrying a package label are grouped under a package heading
// in order of first appearance. Files dropped after passing the name filters
// (binary, unreadable, failed reads) are counted as skipped.
func (aggregator *Aggregator) Aggregate(ctx context.Context, records []types.VisitRecord) (Result, error) {
	var result Result
	var builder strings.Builder
	currentLabel := ""
	for _, record := range records {
		if contextError := ctx.Err(); contextError != nil {
			return Result{}, contextError
		}
		if record.IsDirectory || !record.IncludedInTree {
			continue
		}
		if !record.ContentIncluded {
			if countsAsSkipped(record.Reason) {
				aggregator.logger.Info(skippedFileMessage, zap.String("path", record.RelativePath), zap.String("reason", string(record.Reason)))
				result.FilesSkipped++
			}
			continue
		}
		if record.PackageLabel != "" && record.PackageLabel != currentLabel {
			currentLabel = record.PackageLabel
			fmt.Fprintf(&builder, packageHeadingFormat, currentLabel)
		}
		blockPath := record.RelativePath
		if record.PackageLabel != "" {
			blockPath = fmt.Sprintf(packagePathFormat, record.PackageLabel, record.RelativePath)
		}
		content, readError := aggregator.reader.Read(record.AbsolutePath)
		if readError != nil {
			aggregator.logger.Warn(readFailedMessage, zap.String("path", blockPath), zap.Error(readError))
			fmt.Fprintf(&builder, readErrorFormat, blockPath, readError)
			result.FilesSkipped++
			continue
		}
		builder.WriteString(FrameBlock(blockPath, DecodeContent(content)))
		result.FilesCompiled++
	}
	result.Text = builder.String()
	return result, nil
}

// FrameBlock wraps content between opening and end markers. Lines shaped like
// any block marker, for this path or another, are escaped with a leading
// backslash and the block is preceded by a note.
func FrameBlock(blockPath string, content string) string {
	openMarker := fmt.Sprintf(openMarkerFormat, blockPath)
	endMarker := fmt.Sprintf(endMarkerFormat, blockPath)
	escapedContent, escapedCount := escapeMarkerLines(content)

	var builder strings.Builder
	if escapedCount > 0 {
		fmt.Fprintf(&builder, escapeNoteFormat, escapedCount, blockPath)
	}
	builder.WriteString(openMarker)
	builder.WriteString(lineBreak)
	builder.WriteString(escapedContent)
	if escapedContent != "" && !strings.HasSuffix(escapedContent, lineBreak) {
		builder.WriteString(lineBreak)
	}
	builder.WriteString(endMarker)
	builder.WriteString(lineBreak)
	builder.WriteString(lineBreak)
	return builder.String()
}

// DecodeContent returns data as UTF-8, replacing undecodable bytes with U+FFFD.
func DecodeContent(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// escapeMarkerLines prefixes every marker-shaped line, after removing any
// leading backslashes, with one more backslash.
func escapeMarkerLines(content string) (string, int) {
	lines := strings.Split(content, lineBreak)
	escapedCount := 0
	for lineIndex, line := range lines {
		if isMarkerShaped(strings.TrimSuffix(strings.TrimLeft(line, escapePrefix), "\r")) {
			lines[lineIndex] = escapePrefix + line
			escapedCount++
		}
	}
	if escapedCount == 0 {
		return content, 0
	}
	return strings.Join(lines, lineBreak), escapedCount
}

// isMarkerShaped reports whether line reads as "=== <something> ===".
func isMarkerShaped(line string) bool {
	return len(line) > len(markerFence)*2 &&
		strings.HasPrefix(line, markerFence) &&
		strings.HasSuffix(line, markerClose) &&
		strings.TrimSpace(line[len(markerFence):len(line)-len(markerClose)]) != ""
}

func countsAsSkipped(reason types.OmissionReason) bool {
	return reason == types.ReasonBinary || reason == types.ReasonUnreadable
}
