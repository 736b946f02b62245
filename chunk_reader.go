package linesort

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/lines"
)

// chunkReader is a forward-only cursor over a sorted chunk with a bounded
// prefetch queue. Buffered records are packed into a single arena that is
// reused by every refill, so a reader holds at most capacity records.
type chunkReader struct {
	path     string
	file     *os.File
	dec      *zstd.Decoder // nil for plain chunks
	lines    *lines.Reader
	capacity int

	arena []byte
	ends  []int    // end offset of each buffered record in arena
	queue [][]byte // views into arena, valid until the next fill
	head  int
	eof   bool
}

// openChunkReader opens path for merging. It does not read any records.
// A compressed chunk is decoded on the fly unless it is empty.
func openChunkReader(path string, capacity, bufferSize int, compressed bool) (*chunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindResource, path,
			fmt.Errorf("open sorted chunk: %w", err))
	}
	fadviseSequential(int(f.Fd()))

	c := &chunkReader{path: path, file: f, capacity: capacity}
	var src io.Reader = f
	if compressed {
		stat, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, path,
				fmt.Errorf("stat sorted chunk: %w", err))
		}
		if stat.Size() > 0 {
			c.dec, err = newChunkDecoder(f)
			if err != nil {
				_ = f.Close()
				return nil, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindResource, path,
					fmt.Errorf("create zstd decoder: %w", err))
			}
			src = c.dec
		}
	}
	c.lines = lines.NewLFReader(src, bufferSize)
	return c, nil
}

// fill reads up to capacity records into the queue, replacing whatever it
// held, and returns how many were read. It must only be called once every
// buffered record has been consumed. Zero means the chunk is exhausted.
func (c *chunkReader) fill() (int, error) {
	c.arena = c.arena[:0]
	c.ends = c.ends[:0]
	c.queue = c.queue[:0]
	c.head = 0
	if c.eof {
		return 0, nil
	}

	for len(c.ends) < c.capacity {
		rec, err := c.lines.Next()
		if errors.Is(err, io.EOF) {
			c.eof = true
			fadviseDontNeed(int(c.file.Fd()))
			break
		}
		if err != nil {
			return 0, sorterrors.NewStageError(sorterrors.StageMerge, sorterrors.KindIO, c.path,
				fmt.Errorf("read sorted chunk: %w", err))
		}
		c.arena = append(c.arena, rec...)
		c.ends = append(c.ends, len(c.arena))
	}

	// Slice after filling since the arena may have moved while growing.
	start := 0
	for _, end := range c.ends {
		c.queue = append(c.queue, c.arena[start:end:end])
		start = end
	}
	return len(c.queue), nil
}

// empty reports whether every buffered record has been consumed.
func (c *chunkReader) empty() bool {
	return c.head >= len(c.queue)
}

// peek returns the next unconsumed record. The queue must not be empty.
func (c *chunkReader) peek() []byte {
	return c.queue[c.head]
}

// pop consumes the record returned by peek.
func (c *chunkReader) pop() {
	c.head++
}

// close releases the file handle. Idempotent.
func (c *chunkReader) close() error {
	if c.file == nil {
		return nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
	err := c.file.Close()
	c.file = nil
	c.arena, c.ends, c.queue = nil, nil, nil
	if err != nil {
		return fmt.Errorf("close %s: %w", c.path, err)
	}
	return nil
}
