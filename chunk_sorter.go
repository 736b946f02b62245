package linesort

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/lines"
)

// sortChunks sorts every raw chunk into its sorted counterpart using up to
// workers concurrent tasks. Each task touches only its own chunk's files.
// The first failure cancels the tasks that have not started yet; Wait
// returns once every started task has finished.
func (s *Sorter) sortChunks(chunks []chunkFile) error {
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.cfg.workers)

	for _, c := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindCanceled, c.rawPath(), err)
			}
			start := time.Now()
			n, err := sortChunk(c, s.cfg.ioBufferSize, s.cfg.compress)
			if err != nil {
				return err
			}
			s.logger.Debug("chunk sorted",
				"chunk", c.seq,
				"records", n,
				"duration", time.Since(start))
			return nil
		})
	}
	return g.Wait()
}

// sortChunk loads the raw chunk into memory, sorts its records byte-wise,
// writes them to the sorted chunk file and deletes the raw file. The
// mapping and record slice are released before it returns. With compress
// set the sorted chunk is a zstd stream.
func sortChunk(c chunkFile, bufferSize int, compress bool) (records int, err error) {
	rawPath, sortedPath := c.rawPath(), c.sortedPath()

	in, err := os.Open(rawPath)
	if err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindResource, rawPath,
			fmt.Errorf("open raw chunk: %w", err))
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindIO, rawPath,
			fmt.Errorf("stat raw chunk: %w", err))
	}

	out, err := os.Create(sortedPath)
	if err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindResource, sortedPath,
			fmt.Errorf("create sorted chunk: %w", err))
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(sortedPath)
		}
	}()

	// Zero-length files cannot be mapped; an empty raw chunk yields an
	// empty sorted chunk, compressed or not.
	if stat.Size() > 0 {
		records, err = writeSortedRecords(in, out, bufferSize, compress)
		if err != nil {
			return 0, err
		}
	}

	if err := out.Close(); err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindIO, sortedPath,
			fmt.Errorf("close sorted chunk: %w", err))
	}
	if err := os.Remove(rawPath); err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindIO, rawPath,
			fmt.Errorf("remove raw chunk: %w", err))
	}
	return records, nil
}

// writeSortedRecords maps in read-only, sorts its records and writes them
// to out. Records alias the mapping, so it is unmapped only after the
// writer has been flushed.
func writeSortedRecords(in, out *os.File, bufferSize int, compress bool) (int, error) {
	var dst io.Writer = out
	var enc *zstd.Encoder
	if compress {
		var err error
		enc, err = newChunkEncoder(out)
		if err != nil {
			return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindResource, out.Name(),
				fmt.Errorf("create zstd encoder: %w", err))
		}
		dst = enc
	}

	mm, err := mmap.Map(in, mmap.RDONLY, 0)
	if err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindResource, in.Name(),
			fmt.Errorf("mmap raw chunk: %w", err))
	}

	data := []byte(mm)
	recs := lines.Split(make([][]byte, 0, lines.Count(data)), data)
	slices.SortFunc(recs, bytes.Compare)

	writeErr := func(err error) error {
		return unmapOnErr(mm, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindIO, out.Name(),
			fmt.Errorf("write sorted chunk: %w", err)))
	}
	w := bufio.NewWriterSize(dst, bufferSize)
	for _, rec := range recs {
		if _, err := w.Write(rec); err != nil {
			return 0, writeErr(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, writeErr(err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, writeErr(err)
	}
	if enc != nil {
		// Close writes the final zstd frame; it does not close out.
		if err := enc.Close(); err != nil {
			return 0, writeErr(err)
		}
	}

	if err := mm.Unmap(); err != nil {
		return 0, sorterrors.NewStageError(sorterrors.StageSort, sorterrors.KindResource, in.Name(),
			fmt.Errorf("munmap raw chunk: %w", err))
	}
	return len(recs), nil
}

func unmapOnErr(mm mmap.MMap, primaryErr error) error {
	return errors.Join(primaryErr, mm.Unmap())
}
