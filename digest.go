package linesort

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/lines"
)

// RecordDigest summarizes a multiset of records. Two record sequences that
// are permutations of each other have equal digests, so comparing the
// digest taken while splitting with the one taken while merging detects
// lost or duplicated records without a second pass over the data.
type RecordDigest struct {
	Count uint64
	Sum   uint64 // wrapping sum of xxh3 record hashes
}

// Add folds one record into the digest.
func (d *RecordDigest) Add(record []byte) {
	d.Count++
	d.Sum += xxh3.Hash(record)
}

// FileStats describes a line-sorted file checked by Verify.
type FileStats struct {
	Records  uint64
	Bytes    int64
	Checksum uint64 // xxHash64 of the file contents
	Digest   RecordDigest
}

// Verify reads the file at path and checks that its records are in
// ascending byte-wise order. Records end at '\n' as in the files Sort
// writes; a '\r' before it is part of the record. The error wraps ErrUnsortedOutput with the
// 1-based line number of the first record that sorts before its predecessor.
func Verify(path string) (*FileStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fadviseSequential(int(f.Fd()))

	hasher := xxhash.New()
	counter := &countingWriter{w: hasher}
	r := lines.NewLFReader(io.TeeReader(f, counter), defaultIOBufferSize)

	stats := &FileStats{}
	var prev []byte
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if stats.Records > 0 && bytes.Compare(prev, rec) > 0 {
			return nil, fmt.Errorf("%w: %s line %d", sorterrors.ErrUnsortedOutput, path, stats.Records+1)
		}
		stats.Records++
		stats.Digest.Add(rec)
		prev = append(prev[:0], rec...)
	}

	stats.Bytes = counter.n
	stats.Checksum = hasher.Sum64()
	return stats, nil
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
