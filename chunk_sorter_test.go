package linesort

import (
	"bytes"
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	sorterrors "github.com/tamirms/linesort/errors"
)

// writeRawChunk writes lines as raw chunk seq in dir.
func writeRawChunk(t *testing.T, dir string, seq int, lines []string) chunkFile {
	t.Helper()
	c := chunkFile{seq: seq, dir: dir}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(c.rawPath(), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSortChunk(t *testing.T) {
	dir := t.TempDir()
	lines := randomLines(newTestRNG(t), 2000, 40)
	c := writeRawChunk(t, dir, 1, lines)

	n, err := sortChunk(c, 4096, false)
	if err != nil {
		t.Fatalf("sortChunk: %v", err)
	}
	if n != len(lines) {
		t.Errorf("sorted %d records, want %d", n, len(lines))
	}
	if got, want := readLines(t, c.sortedPath()), sortedCopy(lines); !slices.Equal(got, want) {
		t.Error("sorted chunk is not the sorted raw chunk")
	}
	if _, err := os.Stat(c.rawPath()); !os.IsNotExist(err) {
		t.Errorf("raw chunk still present: %v", err)
	}
}

func TestSortChunkCompressed(t *testing.T) {
	dir := t.TempDir()
	lines := randomLines(newTestRNG(t), 2000, 40)
	c := writeRawChunk(t, dir, 1, lines)

	if _, err := sortChunk(c, 4096, true); err != nil {
		t.Fatalf("sortChunk: %v", err)
	}
	data, err := os.ReadFile(c.sortedPath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		t.Fatalf("sorted chunk is not a zstd stream: % x", data[:min(4, len(data))])
	}

	r, err := openChunkReader(c.sortedPath(), 100, minReaderBufferSize, true)
	if err != nil {
		t.Fatal(err)
	}
	defer r.close()
	var got []string
	for {
		n, err := r.fill()
		if err != nil {
			t.Fatalf("fill: %v", err)
		}
		if n == 0 {
			break
		}
		for !r.empty() {
			got = append(got, string(r.peek()))
			r.pop()
		}
	}
	if !slices.Equal(got, sortedCopy(lines)) {
		t.Error("decoded chunk is not the sorted raw chunk")
	}
}

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func TestSortChunkEmpty(t *testing.T) {
	dir := t.TempDir()
	c := writeRawChunk(t, dir, 1, nil)

	n, err := sortChunk(c, 4096, false)
	if err != nil {
		t.Fatalf("sortChunk: %v", err)
	}
	if n != 0 {
		t.Errorf("sorted %d records, want 0", n)
	}
	info, err := os.Stat(c.sortedPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("sorted chunk has %d bytes, want 0", info.Size())
	}
}

func TestSortChunkMissingRaw(t *testing.T) {
	c := chunkFile{seq: 7, dir: t.TempDir()}
	_, err := sortChunk(c, 4096, false)

	var se *sorterrors.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != sorterrors.StageSort || se.Kind != sorterrors.KindResource || se.Path != c.rawPath() {
		t.Errorf("got %s/%s on %s", se.Stage, se.Kind, se.Path)
	}
	if _, err := os.Stat(c.sortedPath()); !os.IsNotExist(err) {
		t.Error("sorted chunk created for a missing raw chunk")
	}
}

func TestSortChunksParallel(t *testing.T) {
	dir := t.TempDir()
	rng := newTestRNG(t)

	var chunks []chunkFile
	var want [][]string
	for seq := 1; seq <= 12; seq++ {
		lines := randomLines(rng, 300, 20)
		chunks = append(chunks, writeRawChunk(t, dir, seq, lines))
		want = append(want, sortedCopy(lines))
	}

	s := testSorter(t, dir, WithWorkers(4))
	if err := s.sortChunks(chunks); err != nil {
		t.Fatalf("sortChunks: %v", err)
	}
	for i, c := range chunks {
		if got := readLines(t, c.sortedPath()); !slices.Equal(got, want[i]) {
			t.Errorf("chunk %d not sorted", c.seq)
		}
		if _, err := os.Stat(c.rawPath()); !os.IsNotExist(err) {
			t.Errorf("raw chunk %d still present", c.seq)
		}
	}
}

func TestSortChunksStopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunkFile{
		writeRawChunk(t, dir, 1, []string{"b", "a"}),
		{seq: 2, dir: dir}, // raw file never written
	}

	s := testSorter(t, dir, WithWorkers(1))
	err := s.sortChunks(chunks)

	var se *sorterrors.StageError
	if !errors.As(err, &se) || se.Stage != sorterrors.StageSort {
		t.Fatalf("expected sort StageError, got %v", err)
	}
}

func TestSortChunksCanceled(t *testing.T) {
	dir := t.TempDir()
	chunks := []chunkFile{writeRawChunk(t, dir, 1, []string{"b", "a"})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewSorter(ctx, "unused.txt")
	if err != nil {
		t.Fatal(err)
	}
	s.workDir = dir

	err = s.sortChunks(chunks)
	var se *sorterrors.StageError
	if !errors.As(err, &se) || se.Kind != sorterrors.KindCanceled {
		t.Fatalf("expected canceled StageError, got %v", err)
	}
	if _, statErr := os.Stat(chunks[0].rawPath()); statErr != nil {
		t.Errorf("raw chunk touched after cancellation: %v", statErr)
	}
}
