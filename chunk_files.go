package linesort

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

const (
	rawChunkPrefix    = "splitted"
	sortedChunkPrefix = "sorted"
	chunkExt          = ".tmp"

	// resultSuffix is inserted before the source extension.
	resultSuffix = "_Sorted"

	// workDirPattern names the per-run directory holding chunk files.
	workDirPattern = "linesort-*"
)

// chunkFile identifies one chunk by its 1-based sequence number. The raw
// and sorted files share the number and differ by prefix.
type chunkFile struct {
	seq int
	dir string
}

func (c chunkFile) rawPath() string {
	return filepath.Join(c.dir, chunkName(rawChunkPrefix, c.seq))
}

func (c chunkFile) sortedPath() string {
	return filepath.Join(c.dir, chunkName(sortedChunkPrefix, c.seq))
}

// chunkName formats prefix + zero-padded sequence number + extension.
// Three digits is a minimum width; larger numbers widen the field.
func chunkName(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d%s", prefix, seq, chunkExt)
}

// ResultPath returns the default result path for source: name.ext becomes
// name_Sorted.ext in the same directory.
func ResultPath(source string) string {
	dir, base := filepath.Split(source)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+resultSuffix+ext)
}

// bufferCapacity returns how many records each merge buffer holds:
// budget / chunks / recordSize / overhead, at least 1 so the merge always
// makes progress.
func bufferCapacity(budget int64, chunks, recordSize int, overhead float64) int {
	if chunks <= 0 || recordSize <= 0 || overhead <= 0 {
		return 1
	}
	perChunk := budget / int64(chunks)
	n := math.Floor(float64(perChunk) / float64(recordSize) / overhead)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

const minReaderBufferSize = 4 * 1024

// readerBufferSize returns the bufio size for each merge cursor: an eighth
// of the chunk's share of the budget, between 4 KiB and maxSize. With thousands
// of chunks this keeps the read buffers inside the merge budget.
func readerBufferSize(budget int64, chunks, maxSize int) int {
	if chunks <= 0 {
		return maxSize
	}
	n := budget / int64(chunks) / 8
	if n < minReaderBufferSize {
		return minReaderBufferSize
	}
	if n > int64(maxSize) {
		return maxSize
	}
	return int(n)
}
