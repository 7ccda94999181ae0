package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// E2ETestSpec is one end-to-end run of the command on an input file
type E2ETestSpec struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	Args         []string `yaml:"args"`          // Extra flags placed before the file name
	Expect       []string `yaml:"expect"`        // Strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`  // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"` // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`    // Strings that must NOT appear in output
	Error        string   `yaml:"error"`         // Expected failure text on stderr
	Reference    bool     `yaml:"reference"`     // Also compare against llvm-tblgen when present
	Skip         string   `yaml:"skip,omitempty"`
}

// E2ETestFile represents the tblgen.yaml file structure
type E2ETestFile struct {
	Tests []E2ETestSpec `yaml:"tests"`
}

func loadE2ETests(t *testing.T) E2ETestFile {
	t.Helper()
	data, err := os.ReadFile("../../testdata/tblgen.yaml")
	if err != nil {
		t.Fatalf("tblgen.yaml not found: %v", err)
	}
	var testFile E2ETestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse tblgen.yaml: %v", err)
	}
	return testFile
}

// findLLVMTblgen looks for a reference llvm-tblgen binary
func findLLVMTblgen() (string, bool) {
	if path := os.Getenv("LLVM_TBLGEN"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	path, err := exec.LookPath("llvm-tblgen")
	if err == nil {
		return path, true
	}
	return "", false
}

// normalizeOutput drops blank lines and trailing whitespace for comparison
func normalizeOutput(s string) string {
	var normalized []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		normalized = append(normalized, line)
	}
	return strings.Join(normalized, "\n")
}

func TestE2EYAML(t *testing.T) {
	for _, tc := range loadE2ETests(t).Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			tmpDir := t.TempDir()
			inputFile := filepath.Join(tmpDir, "test.td")
			if err := os.WriteFile(inputFile, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			resetFlags()
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetArgs(normalizeFlags(append(append([]string{}, tc.Args...), inputFile)))
			err := cmd.Execute()

			if tc.Error != "" {
				if err == nil {
					t.Fatalf("expected failure containing %q\nGot:\n%s", tc.Error, out.String())
				}
				if !strings.Contains(errOut.String(), tc.Error) {
					t.Errorf("expected stderr to contain %q, got %q", tc.Error, errOut.String())
				}
				if out.Len() != 0 {
					t.Errorf("failed run wrote output:\n%s", out.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("ralph-tblgen failed: %v\nStderr: %s", err, errOut.String())
			}

			output := out.String()
			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}

			lastIdx := -1
			for _, exp := range tc.ExpectOrder {
				idx := strings.Index(output, exp)
				if idx == -1 {
					t.Errorf("expected output to contain %q for order check\nGot:\n%s", exp, output)
				} else if idx <= lastIdx {
					t.Errorf("expected %q to appear after previous pattern (position %d vs %d)\nGot:\n%s", exp, idx, lastIdx, output)
				}
				lastIdx = idx
			}

			for _, exp := range tc.ExpectUnique {
				if count := strings.Count(output, exp); count != 1 {
					t.Errorf("expected %q to appear exactly once, found %d times\nGot:\n%s", exp, count, output)
				}
			}

			for _, exp := range tc.ExpectNot {
				if strings.Contains(output, exp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", exp, output)
				}
			}
		})
	}
}

// TestLLVMEquivalence compares the record listing with llvm-tblgen's
func TestLLVMEquivalence(t *testing.T) {
	tblgenPath, found := findLLVMTblgen()
	if !found {
		t.Skip("llvm-tblgen not found; set LLVM_TBLGEN to compare against it")
	}

	for _, tc := range loadE2ETests(t).Tests {
		if !tc.Reference || tc.Skip != "" {
			continue
		}
		t.Run(tc.Name, func(t *testing.T) {
			tmpDir := t.TempDir()
			inputFile := filepath.Join(tmpDir, "test.td")
			if err := os.WriteFile(inputFile, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			refOut, err := exec.Command(tblgenPath, inputFile).CombinedOutput()
			if err != nil {
				t.Fatalf("llvm-tblgen failed: %v\nOutput: %s", err, refOut)
			}

			resetFlags()
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetArgs([]string{inputFile})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("ralph-tblgen failed: %v\nStderr: %s", err, errOut.String())
			}

			// llvm-tblgen prefixes its listing with a banner comment
			want := normalizeOutput(stripBanner(string(refOut)))
			got := normalizeOutput(out.String())
			if want != got {
				t.Errorf("Output mismatch\n--- llvm-tblgen ---\n%s\n--- ralph-tblgen ---\n%s", want, got)
			}
		})
	}
}

func stripBanner(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "/*===") || strings.HasPrefix(line, "|*") || strings.HasPrefix(line, "\\*===") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
