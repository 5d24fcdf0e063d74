package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/compiler"
	"github.com/temirov/codexify/internal/types"
)

type runeCounter struct{}

func (runeCounter) Name() string { return "stub" }

func (runeCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

type stubResolver struct {
	requested []string
	trees     []types.PackageTree
}

func (resolver *stubResolver) Resolve(_ context.Context, _ string, importPaths []string) ([]types.PackageTree, error) {
	resolver.requested = append(resolver.requested, importPaths...)
	return resolver.trees, nil
}

type testHarness struct {
	dependencies dependencies
	stdout       *bytes.Buffer
	stderr       *bytes.Buffer
	copier       *recordingCopier
	resolver     *stubResolver
}

func newTestHarness(t *testing.T, workingDirectory string) *testHarness {
	t.Helper()
	harness := &testHarness{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		copier:   &recordingCopier{},
		resolver: &stubResolver{},
	}
	harness.dependencies = dependencies{
		standardOutput:   harness.stdout,
		standardError:    harness.stderr,
		workingDirectory: workingDirectory,
		newLogger:        func(bool) (*zap.Logger, error) { return zap.NewNop(), nil },
		newCompiler: func(logger *zap.Logger) *compiler.Compiler {
			return compiler.New(
				compiler.WithLogger(logger),
				compiler.WithTokenCounter(runeCounter{}, "stub"),
				compiler.WithRevision(func(string) (string, bool) { return "", false }),
			)
		},
		newResolver: func(*zap.Logger) packageResolver { return harness.resolver },
		cloneRepository: func(context.Context, string, *zap.Logger) (string, func(), error) {
			return "", nil, errors.New("cloning disabled in tests")
		},
		copier: harness.copier,
	}
	return harness
}

func (harness *testHarness) run(arguments ...string) error {
	command := createRootCommand(harness.dependencies)
	command.SetArgs(normalizeArguments(arguments))
	return command.ExecuteContext(context.Background())
}

func createProject(t *testing.T, parent string) string {
	t.Helper()
	projectDirectory := filepath.Join(parent, "project")
	files := map[string]string{
		"a.py":              "print(1)",
		"b.md":              "# hi",
		"node_modules/x.js": "module.exports = 1",
	}
	for relativePath, content := range files {
		fullPath := filepath.Join(projectDirectory, relativePath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", relativePath, err)
		}
	}
	return projectDirectory
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output %s: %v", path, err)
	}
	return string(content)
}

func TestCompileFromFlags(t *testing.T) {
	workingDirectory := t.TempDir()
	createProject(t, workingDirectory)
	harness := newTestHarness(t, workingDirectory)
	if err := harness.run("--path", "project", "--ext", ".py", ".md", "--exclude", "node_modules"); err != nil {
		t.Fatalf("run error: %v (stderr: %s)", err, harness.stderr.String())
	}
	output := readOutput(t, filepath.Join(workingDirectory, "project.txt"))
	for _, expected := range []string{"node_modules [Content Omitted]", "=== a.py ===", "=== b.md ==="} {
		if !strings.Contains(output, expected) {
			t.Fatalf("output missing %q:\n%s", expected, output)
		}
	}
	if !strings.Contains(harness.stdout.String(), "Compiled 2 file(s), skipped 0") {
		t.Fatalf("unexpected summary: %s", harness.stdout.String())
	}
}

func TestSaveAndReplayConfiguration(t *testing.T) {
	workingDirectory := t.TempDir()
	createProject(t, workingDirectory)
	ignorePath := filepath.Join(workingDirectory, "project", ".gitignore")
	if err := os.WriteFile(ignorePath, []byte("node_modules/\n"), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}
	harness := newTestHarness(t, workingDirectory)
	if err := harness.run("--path", "project", "--ext=.py,.md", "--gitignore", ".gitignore", "--save"); err != nil {
		t.Fatalf("save run error: %v (stderr: %s)", err, harness.stderr.String())
	}
	configurationPath := filepath.Join(workingDirectory, "config.compiled.project.yaml")
	if _, err := os.Stat(configurationPath); err != nil {
		t.Fatalf("expected saved configuration: %v", err)
	}
	outputPath := filepath.Join(workingDirectory, "project.txt")
	firstOutput := readOutput(t, outputPath)
	if err := os.Remove(outputPath); err != nil {
		t.Fatalf("remove output: %v", err)
	}

	replay := newTestHarness(t, t.TempDir())
	if err := replay.run("--config", configurationPath); err != nil {
		t.Fatalf("replay error: %v (stderr: %s)", err, replay.stderr.String())
	}
	secondOutput := readOutput(t, outputPath)
	if firstOutput != secondOutput {
		t.Fatalf("expected replayed output to match the original run")
	}
	if strings.Contains(secondOutput, "node_modules") {
		t.Fatalf("expected ignore rules to be replayed:\n%s", secondOutput)
	}
}

func TestArgumentValidation(t *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedError error
	}{
		{name: "no_source", arguments: []string{}, expectedError: errSourceRequired},
		{name: "path_without_extensions", arguments: []string{"--path", "."}, expectedError: errExtensionsRequired},
		{name: "missing_root", arguments: []string{"--path", "absent", "--ext", ".py"}, expectedError: ErrCompilationFailed},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			harness := newTestHarness(t, t.TempDir())
			err := harness.run(testCase.arguments...)
			if !errors.Is(err, testCase.expectedError) {
				t.Fatalf("expected %v, got %v", testCase.expectedError, err)
			}
		})
	}
}

func TestCopyFlagCopiesCompiledText(t *testing.T) {
	workingDirectory := t.TempDir()
	createProject(t, workingDirectory)
	harness := newTestHarness(t, workingDirectory)
	if err := harness.run("--path", "project", "--ext", ".py", "--copy"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(harness.copier.copied) != 1 || !strings.Contains(harness.copier.copied[0], "=== a.py ===") {
		t.Fatalf("expected compiled text on the clipboard, got %v", harness.copier.copied)
	}

	disabled := newTestHarness(t, workingDirectory)
	if err := disabled.run("--path", "project", "--ext", ".py", "--copy", "no"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(disabled.copier.copied) != 0 {
		t.Fatalf("expected --copy no to skip the clipboard")
	}
}

func TestPackagesAreResolvedAndCompiled(t *testing.T) {
	workingDirectory := t.TempDir()
	packageDirectory := filepath.Join(workingDirectory, "lib")
	if err := os.MkdirAll(packageDirectory, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(packageDirectory, "lib.go"), []byte("package lib\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	harness := newTestHarness(t, workingDirectory)
	harness.resolver.trees = []types.PackageTree{{RootPath: packageDirectory, Label: "example.com/lib"}}
	if err := harness.run("--packages", "example.com/lib", "--output", "deps"); err != nil {
		t.Fatalf("run error: %v (stderr: %s)", err, harness.stderr.String())
	}
	if !reflect.DeepEqual(harness.resolver.requested, []string{"example.com/lib"}) {
		t.Fatalf("unexpected resolver input %v", harness.resolver.requested)
	}
	output := readOutput(t, filepath.Join(workingDirectory, "deps.txt"))
	if !strings.Contains(output, "=== package:example.com/lib/lib.go ===") {
		t.Fatalf("expected package block:\n%s", output)
	}
}

func TestVersionFlag(t *testing.T) {
	harness := newTestHarness(t, t.TempDir())
	if err := harness.run("--version"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.HasPrefix(harness.stdout.String(), "codexify version: ") {
		t.Fatalf("unexpected version output %q", harness.stdout.String())
	}
}

func TestResolveOutput(t *testing.T) {
	workingDirectory := t.TempDir()
	outputDirectory := filepath.Join(workingDirectory, "out")
	if err := os.MkdirAll(outputDirectory, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testCases := []struct {
		name              string
		output            string
		sourceName        string
		expectedDirectory string
		expectedBaseName  string
	}{
		{name: "default", output: "", sourceName: "project", expectedDirectory: workingDirectory, expectedBaseName: "project"},
		{name: "default_without_source", output: "", sourceName: "", expectedDirectory: workingDirectory, expectedBaseName: "output"},
		{name: "existing_directory", output: "out", sourceName: "project", expectedDirectory: outputDirectory, expectedBaseName: "project"},
		{name: "file_with_extension", output: "out/report.txt", sourceName: "project", expectedDirectory: outputDirectory, expectedBaseName: "report"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			directory, baseName := resolveOutput(workingDirectory, testCase.output, testCase.sourceName)
			if directory != testCase.expectedDirectory || baseName != testCase.expectedBaseName {
				t.Fatalf("expected %s/%s, got %s/%s", testCase.expectedDirectory, testCase.expectedBaseName, directory, baseName)
			}
		})
	}
}

func TestRepositoryName(t *testing.T) {
	testCases := map[string]string{
		"https://github.com/spf13/cobra.git": "cobra",
		"git@github.com:spf13/pflag.git":     "pflag",
	}
	for url, expected := range testCases {
		if actual := repositoryName(url); actual != expected {
			t.Fatalf("repositoryName(%q) = %q, want %q", url, actual, expected)
		}
	}
}
