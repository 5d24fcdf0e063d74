package classifier_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/codexify/internal/classifier"
	"github.com/temirov/codexify/internal/types"
)

func TestExtensionFilter(testingHandle *testing.T) {
	filter := classifier.NewExtensionFilter([]string{".py", "Makefile", "config.yaml", ".py"})
	testCases := []struct {
		testName string
		fileName string
		expected bool
	}{
		{testName: "suffix_match", fileName: "main.py", expected: true},
		{testName: "suffix_is_case_sensitive", fileName: "MAIN.PY", expected: false},
		{testName: "bare_name_exact", fileName: "Makefile", expected: true},
		{testName: "bare_name_as_suffix", fileName: "build.Makefile", expected: true},
		{testName: "dotted_name_exact", fileName: "config.yaml", expected: true},
		{testName: "dotted_name_not_suffix", fileName: "app.config.yaml", expected: false},
		{testName: "other_extension", fileName: "notes.md", expected: false},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.testName, func(subTest *testing.T) {
			if actual := filter.Accepts(testCase.fileName); actual != testCase.expected {
				subTest.Fatalf("Accepts(%q) = %v, expected %v", testCase.fileName, actual, testCase.expected)
			}
		})
	}
	if !classifier.NewExtensionFilter(nil).Accepts("anything.bin") {
		testingHandle.Fatalf("expected empty filter to accept every name")
	}
}

func TestIsBinary(testingHandle *testing.T) {
	testCases := []struct {
		testName string
		data     []byte
		expected bool
	}{
		{testName: "empty", data: nil, expected: false},
		{testName: "plain_text", data: []byte("package main\n\nfunc main() {}\n"), expected: false},
		{testName: "utf8_text", data: []byte("héllo wörld ✓\n"), expected: false},
		{testName: "nul_byte", data: []byte("abc\x00def"), expected: true},
		{testName: "control_heavy", data: []byte("\x01\x02\x03\x04abc"), expected: true},
		{testName: "few_invalid_bytes", data: append([]byte("mostly readable latin text "), 0xe9, 't', 'e'), expected: false},
		{testName: "invalid_utf8_heavy", data: []byte{0xff, 0xfe, 0xfd, 0xfc, 'a'}, expected: true},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.testName, func(subTest *testing.T) {
			if actual := classifier.IsBinary(testCase.data); actual != testCase.expected {
				subTest.Fatalf("IsBinary(%q) = %v, expected %v", testCase.data, actual, testCase.expected)
			}
		})
	}
}

func TestIsContentEligible(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	textPath := filepath.Join(rootDirectory, "a.py")
	binaryPath := filepath.Join(rootDirectory, "blob.py")
	lateNulPath := filepath.Join(rootDirectory, "late.py")
	notesPath := filepath.Join(rootDirectory, "notes.md")
	if writeError := os.WriteFile(textPath, []byte("print(1)\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("write text: %v", writeError)
	}
	if writeError := os.WriteFile(binaryPath, []byte("print\x00(1)"), 0o644); writeError != nil {
		testingHandle.Fatalf("write binary: %v", writeError)
	}
	lateContent := append(bytes.Repeat([]byte("a"), classifier.SniffLength), 0)
	if writeError := os.WriteFile(lateNulPath, lateContent, 0o644); writeError != nil {
		testingHandle.Fatalf("write late nul: %v", writeError)
	}
	if writeError := os.WriteFile(notesPath, []byte("# hi\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("write notes: %v", writeError)
	}

	contentClassifier := classifier.New([]string{".py"}, nil)
	testCases := []struct {
		testName       string
		absolutePath   string
		expectEligible bool
		expectReason   types.OmissionReason
	}{
		{testName: "text_matches", absolutePath: textPath, expectEligible: true, expectReason: types.ReasonNone},
		{testName: "nul_in_sniff_window", absolutePath: binaryPath, expectEligible: false, expectReason: types.ReasonBinary},
		{testName: "nul_after_sniff_window", absolutePath: lateNulPath, expectEligible: true, expectReason: types.ReasonNone},
		{testName: "extension_mismatch", absolutePath: notesPath, expectEligible: false, expectReason: types.ReasonExtensionMismatch},
		{testName: "missing_file", absolutePath: filepath.Join(rootDirectory, "gone.py"), expectEligible: false, expectReason: types.ReasonUnreadable},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.testName, func(subTest *testing.T) {
			eligible, reason := contentClassifier.IsContentEligible(testCase.absolutePath, filepath.Base(testCase.absolutePath))
			if eligible != testCase.expectEligible || reason != testCase.expectReason {
				subTest.Fatalf("IsContentEligible = (%v, %s), expected (%v, %s)", eligible, reason, testCase.expectEligible, testCase.expectReason)
			}
		})
	}
}
