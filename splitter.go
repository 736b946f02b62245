package linesort

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/lines"
)

// splitter cuts a record stream into raw chunk files of roughly chunkSize
// bytes. A chunk is closed only after a whole record has been written, so
// a chunk may overshoot the threshold by one record but never splits one.
type splitter struct {
	dir        string
	chunkSize  int64
	bufferSize int

	chunks  []chunkFile
	digest  RecordDigest
	records uint64
	bytes   int64

	cur     *os.File
	w       *bufio.Writer
	written int64 // bytes in the current chunk
}

func newSplitter(dir string, chunkSize int64, bufferSize int) *splitter {
	return &splitter{
		dir:        dir,
		chunkSize:  chunkSize,
		bufferSize: bufferSize,
	}
}

// run reads src to the end and writes every record to the chunk sequence.
// sourcePath only labels errors. On failure the open chunk is closed; chunk
// files already written are left for the caller to remove.
func (sp *splitter) run(ctx context.Context, sourcePath string, src io.Reader) (err error) {
	defer func() {
		if err != nil {
			sp.abort()
		}
	}()

	r := lines.NewReader(src, sp.bufferSize)
	if err := sp.open(); err != nil {
		return err
	}

	checkCounter := 0
	for {
		checkCounter++
		if checkCounter >= contextCheckInterval {
			checkCounter = 0
			if err := ctx.Err(); err != nil {
				return sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindCanceled, sourcePath, err)
			}
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindIO, sourcePath,
				fmt.Errorf("read source: %w", err))
		}

		if err := sp.write(rec); err != nil {
			return err
		}
		sp.digest.Add(rec)
		sp.records++

		// Roll over only when more input remains, so input ending exactly
		// at a boundary does not leave an empty trailing chunk.
		if sp.written > sp.chunkSize && r.More() {
			if err := sp.finish(); err != nil {
				return err
			}
			if err := sp.open(); err != nil {
				return err
			}
		}
	}

	return sp.finish()
}

// open creates the next raw chunk file.
func (sp *splitter) open() error {
	c := chunkFile{seq: len(sp.chunks) + 1, dir: sp.dir}
	f, err := os.Create(c.rawPath())
	if err != nil {
		return sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindResource, c.rawPath(),
			fmt.Errorf("create chunk: %w", err))
	}
	sp.chunks = append(sp.chunks, c)
	sp.cur = f
	if sp.w == nil {
		sp.w = bufio.NewWriterSize(f, sp.bufferSize)
	} else {
		sp.w.Reset(f)
	}
	sp.written = 0
	return nil
}

func (sp *splitter) write(rec []byte) error {
	if _, err := sp.w.Write(rec); err != nil {
		return sp.writeErr(err)
	}
	if err := sp.w.WriteByte('\n'); err != nil {
		return sp.writeErr(err)
	}
	n := int64(len(rec)) + 1
	sp.written += n
	sp.bytes += n
	return nil
}

func (sp *splitter) writeErr(err error) error {
	return sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindIO, sp.cur.Name(),
		fmt.Errorf("write chunk: %w", err))
}

// finish flushes and closes the current chunk.
func (sp *splitter) finish() error {
	f := sp.cur
	sp.cur = nil
	if err := sp.w.Flush(); err != nil {
		primaryErr := sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindIO, f.Name(),
			fmt.Errorf("flush chunk: %w", err))
		return errors.Join(primaryErr, f.Close())
	}
	if err := f.Close(); err != nil {
		return sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindIO, f.Name(),
			fmt.Errorf("close chunk: %w", err))
	}
	return nil
}

// abort closes the current chunk without reporting errors.
func (sp *splitter) abort() {
	if sp.cur != nil {
		_ = sp.cur.Close()
		sp.cur = nil
	}
}
