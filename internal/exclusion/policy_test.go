package exclusion_test

import (
	"testing"

	"github.com/temirov/codexify/internal/exclusion"
	"github.com/temirov/codexify/internal/ignore"
	"github.com/temirov/codexify/internal/types"
)

func TestShouldExcludePrecedence(testingHandle *testing.T) {
	policy := exclusion.NewPolicy(exclusion.Options{
		PermanentNames:      []string{".git", "config.compiled.*.yaml"},
		PermanentPaths:      []string{"out/codexify.txt"},
		Matcher:             ignore.Compile("build/\n*.log\n", nil),
		ExcludedDirectories: []string{"build", "node_modules"},
		ExcludedFiles:       []string{"secrets.env"},
	})

	testCases := []struct {
		testName     string
		relativePath string
		isDirectory  bool
		expected     exclusion.Decision
	}{
		{
			testName:     "git_directory_is_permanent",
			relativePath: "sub/.git",
			isDirectory:  true,
			expected:     exclusion.Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonPermanentExclusion},
		},
		{
			testName:     "generated_config_is_permanent",
			relativePath: "config.compiled.app.yaml",
			expected:     exclusion.Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonPermanentExclusion},
		},
		{
			testName:     "output_artifact_is_permanent",
			relativePath: "out/codexify.txt",
			expected:     exclusion.Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonPermanentExclusion},
		},
		{
			testName:     "ignore_rule_wins_over_explicit_directory",
			relativePath: "build",
			isDirectory:  true,
			expected:     exclusion.Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonIgnoredByRule},
		},
		{
			testName:     "ignored_file",
			relativePath: "logs/app.log",
			expected:     exclusion.Decision{ExcludeFromTree: true, ExcludeContent: true, Reason: types.ReasonIgnoredByRule},
		},
		{
			testName:     "explicit_directory_is_listed",
			relativePath: "web/node_modules",
			isDirectory:  true,
			expected:     exclusion.Decision{ExcludeContent: true, Reason: types.ReasonExcludedDirectory},
		},
		{
			testName:     "explicit_file_is_listed",
			relativePath: "deploy/secrets.env",
			expected:     exclusion.Decision{ExcludeContent: true, Reason: types.ReasonExcludedFile},
		},
		{
			testName:     "directory_name_does_not_exclude_file",
			relativePath: "node_modules",
			expected:     exclusion.Decision{Reason: types.ReasonNone},
		},
		{
			testName:     "default_included",
			relativePath: "src/main.go",
			expected:     exclusion.Decision{Reason: types.ReasonNone},
		},
	}

	for _, testCase := range testCases {
		testingHandle.Run(testCase.testName, func(subTest *testing.T) {
			name := testCase.relativePath
			for index := len(name) - 1; index >= 0; index-- {
				if name[index] == '/' {
					name = name[index+1:]
					break
				}
			}
			actual := policy.ShouldExclude(testCase.relativePath, testCase.isDirectory, name)
			if actual != testCase.expected {
				subTest.Fatalf("ShouldExclude(%q) = %+v, expected %+v", testCase.relativePath, actual, testCase.expected)
			}
		})
	}
}

func TestPermanentExclusionsAreSorted(testingHandle *testing.T) {
	policy := exclusion.NewPolicy(exclusion.Options{
		PermanentNames: []string{"config.compiled.*.yaml", ".git"},
		PermanentPaths: []string{"./result.txt"},
	})
	listed := policy.PermanentExclusions()
	expected := []string{".git", "config.compiled.*.yaml", "result.txt"}
	if len(listed) != len(expected) {
		testingHandle.Fatalf("expected %v, got %v", expected, listed)
	}
	for index := range expected {
		if listed[index] != expected[index] {
			testingHandle.Fatalf("expected %v, got %v", expected, listed)
		}
	}
}

func TestNilMatcherIsAllowed(testingHandle *testing.T) {
	policy := exclusion.NewPolicy(exclusion.Options{})
	decision := policy.ShouldExclude("a.py", false, "a.py")
	if decision.ExcludeFromTree || decision.ExcludeContent {
		testingHandle.Fatalf("expected inclusion without rules, got %+v", decision)
	}
}
