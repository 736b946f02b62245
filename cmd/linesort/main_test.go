package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = execute(context.Background(), cmd)
	return out.String(), errOut.String(), err
}

func TestSortCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(src, []byte("banana\napple\ncherry\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCmd(t, "sort", src, "--log-level", "error")
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	want := filepath.Join(dir, "data_Sorted.txt")
	if strings.TrimSpace(stdout) != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
	got, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "apple\nbanana\ncherry\n" {
		t.Errorf("result = %q", got)
	}

	stdout, _, err = runCmd(t, "verify", want)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(stdout, "3 records") {
		t.Errorf("verify output = %q", stdout)
	}
}

func TestSortCommandMissingSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, stderr, err := runCmd(t, "sort", missing, "--log-level", "error")
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !strings.Contains(stderr, "validate") || !strings.Contains(stderr, "input") {
		t.Errorf("diagnostic should name stage and kind, got %q", stderr)
	}
	if strings.Count(stderr, "sort failed during") != 1 || strings.HasPrefix(stderr, "linesort: ") || strings.Contains(stderr, "\nlinesort: ") {
		t.Errorf("failure should be reported exactly once, got %q", stderr)
	}
}

func TestSortCommandFlags(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(src, []byte("b\na\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "custom.out")

	if _, _, err := runCmd(t, "sort", src, "-o", out, "--workers", "2", "--no-verify", "--log-format", "json", "--log-level", "error"); err != nil {
		t.Fatalf("sort: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a\nb\n" {
		t.Errorf("result = %q", got)
	}

	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"sort", src, "--chunk-size", "0"}, "--chunk-size must be positive"},
		{[]string{"sort", src, "--log-format", "xml"}, `unknown log format "xml"`},
		{[]string{"sort", src, "--workers", "-1"}, "worker count must not be negative"},
		{[]string{"sort", src, "--chunk-size", "big"}, "invalid argument"},
		{[]string{"sort"}, "requires at least 1 arg"},
	} {
		_, stderr, err := runCmd(t, tc.args...)
		if err == nil {
			t.Errorf("%v: expected error", tc.args)
			continue
		}
		if !strings.Contains(stderr, tc.want) {
			t.Errorf("%v: stderr = %q, want it to mention %q", tc.args, stderr, tc.want)
		}
	}
}

func TestVerifyCommandUnsorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsorted.txt")
	if err := os.WriteFile(path, []byte("b\na\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := runCmd(t, "verify", path)
	if err == nil {
		t.Fatal("expected verify to fail on unsorted file")
	}
	if strings.Count(stderr, "line 2") != 1 {
		t.Errorf("stderr should report the failure once, got %q", stderr)
	}
}

func TestSortCommandGlob(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"x.txt":        "b\na\n",
		"sub/y.txt":    "d\nc\n",
		"x_Sorted.txt": "stale\n",
		"notes.md":     "z\ny\n",
	} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stdout, _, err := runCmd(t, "sort", filepath.Join(dir, "**", "*.txt"), "--log-level", "error", "--compress-chunks")
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	results := strings.Fields(stdout)
	if len(results) != 2 {
		t.Fatalf("got results %q, want 2", results)
	}
	for path, want := range map[string]string{
		filepath.Join(dir, "x_Sorted.txt"):        "a\nb\n",
		filepath.Join(dir, "sub", "y_Sorted.txt"): "c\nd\n",
	} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "x_Sorted_Sorted.txt")); !os.IsNotExist(err) {
		t.Error("an earlier result was sorted again")
	}

	_, stderr, err := runCmd(t, "sort", filepath.Join(dir, "*.csv"))
	if err == nil {
		t.Error("expected error for a pattern without matches")
	} else if !strings.Contains(stderr, "no files match") {
		t.Errorf("stderr = %q", stderr)
	}
	_, stderr, err = runCmd(t, "sort", filepath.Join(dir, "**", "*.txt"), "-o", filepath.Join(dir, "out.txt"))
	if err == nil {
		t.Error("expected error for --output with several sources")
	} else if !strings.Contains(stderr, "--output needs a single source") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestIsResult(t *testing.T) {
	for path, want := range map[string]bool{
		"data_Sorted.txt":     true,
		"dir/data_Sorted":     true,
		"data.txt":            false,
		"Sorted.txt":          false,
		"data_Sorted.txt.bak": false,
	} {
		if got := isResult(path); got != want {
			t.Errorf("isResult(%q) = %v, want %v", path, got, want)
		}
	}
}
