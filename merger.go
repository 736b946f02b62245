package linesort

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/mergeheap"
)

// mergeResult describes the output of a completed merge.
type mergeResult struct {
	records  uint64
	bytes    int64
	checksum uint64 // xxHash64 of the result file
}

// merge k-way merges the sorted chunks into the result file.
//
// Every chunk gets a read-ahead buffer of bufferCapacity records. The
// chunk whose head record is smallest is kept on top of an index heap; its
// head is written, popped, and the chunk is refilled once its buffer runs
// dry. A chunk whose refill yields nothing is retired by removing it from
// the heap.
//
// Output goes to a temporary sibling of the result path that is renamed
// into place only after every check passed. On failure it is removed, so a
// partial result is never visible under the result name. When verification
// is enabled, want is the digest of the source records taken while
// splitting. total is the byte size of all records, terminators included.
func (s *Sorter) merge(chunks []chunkFile, want RecordDigest, total int64) (res *mergeResult, err error) {
	capacity := bufferCapacity(s.cfg.memoryBudget, len(chunks), s.cfg.recordSize, s.cfg.recordOverhead)
	readBuf := readerBufferSize(s.cfg.memoryBudget, len(chunks), s.cfg.ioBufferSize)
	s.logger.Debug("merge buffers sized",
		"chunks", len(chunks),
		"records_per_chunk", capacity,
		"read_buffer", readBuf)

	readers := make([]*chunkReader, 0, len(chunks))
	defer func() {
		for _, r := range readers {
			_ = r.close()
		}
	}()

	for _, c := range chunks {
		r, err := openChunkReader(c.sortedPath(), capacity, readBuf, s.cfg.compress)
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
		if _, err := r.fill(); err != nil {
			return nil, err
		}
	}

	out, err := os.CreateTemp(filepath.Dir(s.resultPath), filepath.Base(s.resultPath)+".*.partial")
	if err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindResource, s.resultPath,
			fmt.Errorf("create result: %w", err))
	}
	tmpPath := out.Name()
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// The output is exactly as large as the source records combined.
	if err := reserveFile(out, total); err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindResource, tmpPath,
			fmt.Errorf("reserve %d bytes for result: %w", total, err))
	}

	hasher := xxhash.New()
	w := bufio.NewWriterSize(io.MultiWriter(out, hasher), s.cfg.ioBufferSize)
	writeErr := func(err error) error {
		return sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, tmpPath,
			fmt.Errorf("write result: %w", err))
	}

	h := mergeheap.New(len(readers), func(a, b int) bool {
		return bytes.Compare(readers[a].peek(), readers[b].peek()) < 0
	})
	for i, r := range readers {
		if !r.empty() {
			h.Push(i)
		}
	}

	res = &mergeResult{}
	var got RecordDigest
	var prev []byte
	checkCounter := 0
	for h.Len() > 0 {
		checkCounter++
		if checkCounter >= contextCheckInterval {
			checkCounter = 0
			if err := s.ctx.Err(); err != nil {
				return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindCanceled, tmpPath, err)
			}
		}

		top := h.Top()
		r := readers[top]
		rec := r.peek()

		if s.cfg.verify {
			if res.records > 0 && bytes.Compare(prev, rec) > 0 {
				return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIntegrity, r.path,
					fmt.Errorf("%w: record %d", sorterrors.ErrUnsortedOutput, res.records+1))
			}
			prev = append(prev[:0], rec...)
			got.Add(rec)
		}

		if _, err := w.Write(rec); err != nil {
			return nil, writeErr(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return nil, writeErr(err)
		}
		res.records++
		res.bytes += int64(len(rec)) + 1

		r.pop()
		if r.empty() {
			n, err := r.fill()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				h.Pop()
				continue
			}
		}
		h.Fix()
	}

	if err := w.Flush(); err != nil {
		return nil, writeErr(err)
	}
	// Drop any reserved space the records did not use.
	if err := out.Truncate(res.bytes); err != nil {
		return nil, writeErr(err)
	}
	if err := out.Close(); err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, tmpPath,
			fmt.Errorf("close result: %w", err))
	}
	res.checksum = hasher.Sum64()

	if s.cfg.verify && got != want {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIntegrity, s.resultPath,
			fmt.Errorf("%w: merged %d records, split %d", sorterrors.ErrRecordMismatch, got.Count, want.Count))
	}

	if err := removeSortedChunks(chunks, readers); err != nil {
		return nil, err
	}

	if err := os.Rename(tmpPath, s.resultPath); err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, s.resultPath,
			fmt.Errorf("rename result: %w", err))
	}
	return res, nil
}

// removeSortedChunks closes every reader and deletes its chunk file.
func removeSortedChunks(chunks []chunkFile, readers []*chunkReader) error {
	var errs []error
	for _, r := range readers {
		if err := r.close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range chunks {
		if err := os.Remove(c.sortedPath()); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove sorted chunk: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, "", err)
	}
	return nil
}
