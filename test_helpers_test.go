package linesort

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a deterministic rng seeded from the test name.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// randomLines returns n lines of 0..maxLen random printable bytes drawn
// from a small alphabet so duplicates and shared prefixes are common.
func randomLines(rng *rand.Rand, n, maxLen int) []string {
	const alphabet = "abcAB01 ~"
	out := make([]string, n)
	buf := make([]byte, maxLen)
	for i := range out {
		l := rng.IntN(maxLen + 1)
		for j := range l {
			buf[j] = alphabet[rng.IntN(len(alphabet))]
		}
		out[i] = string(buf[:l])
	}
	return out
}

// writeSource writes lines, each followed by "\n", to dir/name.
func writeSource(t testing.TB, dir, name string, lines []string) string {
	t.Helper()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return writeRaw(t, dir, name, b.String())
}

// writeRaw writes content verbatim to dir/name.
func writeRaw(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// readLines returns the records of the file at path.
func readLines(t testing.TB, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("%s does not end with a newline", path)
	}
	return strings.Split(string(data[:len(data)-1]), "\n")
}

// sortedCopy returns lines sorted byte-wise.
func sortedCopy(lines []string) []string {
	out := slices.Clone(lines)
	slices.SortFunc(out, func(a, b string) int {
		return bytes.Compare([]byte(a), []byte(b))
	})
	return out
}

// dirNames lists the entry names of dir.
func dirNames(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// sortTestFile runs a sort with logging discarded and fails the test on error.
func sortTestFile(t testing.TB, source string, opts ...SortOption) *Result {
	t.Helper()
	res, err := SortFile(context.Background(), source, opts...)
	if err != nil {
		t.Fatalf("SortFile(%s): %v", source, err)
	}
	return res
}

// testSorter returns a Sorter whose split stage can be driven directly.
func testSorter(t testing.TB, workDir string, opts ...SortOption) *Sorter {
	t.Helper()
	s, err := NewSorter(context.Background(), filepath.Join(workDir, "unused.txt"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	s.workDir = workDir
	return s
}
