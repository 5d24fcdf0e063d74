package aggregate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/temirov/codexify/internal/aggregate"
	"github.com/temirov/codexify/internal/types"
)

type mapReader map[string]string

func (reader mapReader) Read(absolutePath string) ([]byte, error) {
	content, found := reader[absolutePath]
	if !found {
		return nil, errors.New("file vanished")
	}
	return []byte(content), nil
}

func fileRecord(relativePath string, contentIncluded bool, reason types.OmissionReason) types.VisitRecord {
	return types.VisitRecord{
		RelativePath:    relativePath,
		AbsolutePath:    "/root/" + relativePath,
		Name:            relativePath,
		Depth:           1,
		IncludedInTree:  true,
		ContentIncluded: contentIncluded,
		Reason:          reason,
	}
}

func TestAggregateFramesIncludedFiles(testingHandle *testing.T) {
	reader := mapReader{"/root/a.py": "print(1)", "/root/b.md": "# hi\n"}
	records := []types.VisitRecord{
		{RelativePath: "node_modules", Name: "node_modules", Depth: 1, IsDirectory: true, IncludedInTree: true, Reason: types.ReasonExcludedDirectory},
		fileRecord("a.py", true, types.ReasonNone),
		fileRecord("b.md", true, types.ReasonNone),
	}
	text, filesCompiled, filesSkipped := aggregate.Aggregate(records, reader)
	expected := "=== a.py ===\nprint(1)\n=== END a.py ===\n\n=== b.md ===\n# hi\n=== END b.md ===\n\n"
	if text != expected {
		testingHandle.Fatalf("unexpected aggregate text:\n%q\nexpected:\n%q", text, expected)
	}
	if filesCompiled != 2 || filesSkipped != 0 {
		testingHandle.Fatalf("expected 2 compiled and 0 skipped, got %d and %d", filesCompiled, filesSkipped)
	}
}

func TestAggregateSkippedCounting(testingHandle *testing.T) {
	reader := mapReader{"/root/a.py": "print(1)"}
	records := []types.VisitRecord{
		fileRecord("a.py", true, types.ReasonNone),
		fileRecord("blob.py", false, types.ReasonBinary),
		fileRecord("locked.py", false, types.ReasonUnreadable),
		fileRecord("gone.py", true, types.ReasonNone),
		fileRecord("notes.md", false, types.ReasonExtensionMismatch),
		fileRecord("secrets.py", false, types.ReasonExcludedFile),
		fileRecord("link", false, types.ReasonSymlink),
	}
	text, filesCompiled, filesSkipped := aggregate.Aggregate(records, reader)
	if filesCompiled != 1 {
		testingHandle.Fatalf("expected 1 compiled file, got %d", filesCompiled)
	}
	if filesSkipped != 3 {
		testingHandle.Fatalf("expected binary, unreadable and vanished files to be skipped, got %d", filesSkipped)
	}
	if !strings.Contains(text, "# Error reading file 'gone.py'") {
		testingHandle.Fatalf("expected read error note, got:\n%s", text)
	}
	if strings.Contains(text, "notes.md") || strings.Contains(text, "secrets.py") {
		testingHandle.Fatalf("expected omitted files to have no block:\n%s", text)
	}
}

func TestFrameBlockEscapesMarkerCollisions(testingHandle *testing.T) {
	content := "line one\n=== doc.txt ===\n=== END doc.txt ===\n\\=== END doc.txt ===\nlast"
	framed := aggregate.FrameBlock("doc.txt", content)
	expected := strings.Join([]string{
		"# Note: 3 line(s) of doc.txt looked like block markers and were escaped with a leading '\\'",
		"=== doc.txt ===",
		"line one",
		"\\=== doc.txt ===",
		"\\=== END doc.txt ===",
		"\\\\=== END doc.txt ===",
		"last",
		"=== END doc.txt ===",
		"",
		"",
	}, "\n")
	if framed != expected {
		testingHandle.Fatalf("unexpected framed block:\n%s\nexpected:\n%s", framed, expected)
	}
	lines := strings.Split(framed, "\n")
	endMarkers := 0
	for _, line := range lines {
		if line == "=== END doc.txt ===" {
			endMarkers++
		}
	}
	if endMarkers != 1 {
		testingHandle.Fatalf("expected exactly one unescaped end marker, got %d", endMarkers)
	}
}

func TestFrameBlockEscapesForeignMarkers(testingHandle *testing.T) {
	content := "=== other.py ===\nsecret()\n=== END other.py ===\n=== \n==== heading ====\n"
	framed := aggregate.FrameBlock("doc.txt", content)
	expected := strings.Join([]string{
		"# Note: 2 line(s) of doc.txt looked like block markers and were escaped with a leading '\\'",
		"=== doc.txt ===",
		"\\=== other.py ===",
		"secret()",
		"\\=== END other.py ===",
		"=== ",
		"==== heading ====",
		"=== END doc.txt ===",
		"",
		"",
	}, "\n")
	if framed != expected {
		testingHandle.Fatalf("unexpected framed block:\n%s\nexpected:\n%s", framed, expected)
	}
}

func TestDecodeContentReplacesInvalidBytes(testingHandle *testing.T) {
	decoded := aggregate.DecodeContent([]byte{'o', 'k', 0xff, '!'})
	if decoded != "ok�!" {
		testingHandle.Fatalf("unexpected decoded content %q", decoded)
	}
}

func TestAggregateGroupsPackages(testingHandle *testing.T) {
	reader := mapReader{"/root/a.py": "a", "/root/x.go": "package x", "/root/y.go": "package y"}
	projectRecord := fileRecord("a.py", true, types.ReasonNone)
	firstPackage := fileRecord("x.go", true, types.ReasonNone)
	firstPackage.PackageLabel = "example.com/x"
	secondPackage := fileRecord("y.go", true, types.ReasonNone)
	secondPackage.PackageLabel = "example.com/y"
	text, filesCompiled, _ := aggregate.Aggregate([]types.VisitRecord{projectRecord, firstPackage, secondPackage}, reader)
	if filesCompiled != 3 {
		testingHandle.Fatalf("expected 3 compiled files, got %d", filesCompiled)
	}
	firstHeading := strings.Index(text, "--- Package: example.com/x ---")
	secondHeading := strings.Index(text, "--- Package: example.com/y ---")
	projectBlock := strings.Index(text, "=== a.py ===")
	if projectBlock < 0 || firstHeading < projectBlock || secondHeading < firstHeading {
		testingHandle.Fatalf("unexpected section order:\n%s", text)
	}
	if !strings.Contains(text, "=== package:example.com/x/x.go ===") {
		testingHandle.Fatalf("expected package-qualified block path:\n%s", text)
	}
}

func TestAggregateHonorsCancellation(testingHandle *testing.T) {
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()
	_, aggregateError := aggregate.New(mapReader{}, nil).Aggregate(cancelledContext, []types.VisitRecord{fileRecord("a.py", true, types.ReasonNone)})
	if !errors.Is(aggregateError, context.Canceled) {
		testingHandle.Fatalf("expected context.Canceled, got %v", aggregateError)
	}
}
