package linesort

import "log/slog"

const (
	// DefaultChunkSize is the raw chunk threshold. A chunk may exceed it by
	// at most one record.
	DefaultChunkSize = 100 * 1024 * 1024

	// DefaultMemoryBudget bounds all merge read-ahead buffers combined.
	DefaultMemoryBudget = 500 * 1024 * 1024

	// DefaultRecordSize is the assumed average record length used to turn
	// the merge budget into a per-chunk record count.
	DefaultRecordSize = 100

	// DefaultRecordOverhead models the per-record bookkeeping cost of a
	// buffered record on top of its bytes.
	DefaultRecordOverhead = 7.5

	// defaultIOBufferSize is the bufio size for source, chunk and result I/O.
	defaultIOBufferSize = 1024 * 1024
)

// SortOption is a functional option for configuring a sort.
type SortOption func(*sortConfig)

type sortConfig struct {
	chunkSize      int64
	memoryBudget   int64
	recordSize     int
	recordOverhead float64
	workers        int
	tempDir        string // parent of the per-run work directory
	resultPath     string
	verify         bool
	compress       bool // zstd-compress sorted chunks
	ioBufferSize   int
	logger         *slog.Logger
}

func defaultSortConfig() *sortConfig {
	return &sortConfig{
		chunkSize:      DefaultChunkSize,
		memoryBudget:   DefaultMemoryBudget,
		recordSize:     DefaultRecordSize,
		recordOverhead: DefaultRecordOverhead,
		workers:        1, // Sequential baseline; use WithWorkers(n) to sort chunks in parallel
		verify:         true,
		ioBufferSize:   defaultIOBufferSize,
	}
}

// WithChunkSize sets the raw chunk size threshold in bytes.
func WithChunkSize(bytes int64) SortOption {
	return func(c *sortConfig) {
		c.chunkSize = bytes
	}
}

// WithMemoryBudget sets the combined size in bytes of the merge read-ahead
// buffers. Each chunk gets an equal share.
func WithMemoryBudget(bytes int64) SortOption {
	return func(c *sortConfig) {
		c.memoryBudget = bytes
	}
}

// WithRecordEstimate overrides the assumed average record size and the
// per-record overhead factor used to size merge buffers.
func WithRecordEstimate(recordSize int, overhead float64) SortOption {
	return func(c *sortConfig) {
		c.recordSize = recordSize
		c.recordOverhead = overhead
	}
}

// WithWorkers sets how many chunks are sorted concurrently. Peak memory of
// the sort stage grows to roughly n × chunk size. 0 selects the default.
func WithWorkers(n int) SortOption {
	return func(c *sortConfig) {
		c.workers = n
	}
}

// TempDir sets where the per-run work directory holding chunk files is
// created. Defaults to the source file's directory. It should be on a local
// disk with room for two copies of the source; tmpfs defeats the purpose
// since it stores data in RAM.
func TempDir(dir string) SortOption {
	return func(c *sortConfig) {
		c.tempDir = dir
	}
}

// WithResultPath overrides the default name_Sorted.ext result path.
func WithResultPath(path string) SortOption {
	return func(c *sortConfig) {
		c.resultPath = path
	}
}

// WithVerify enables or disables the post-merge check that the output holds
// exactly the source's records in order. Enabled by default.
func WithVerify(enabled bool) SortOption {
	return func(c *sortConfig) {
		c.verify = enabled
	}
}

// WithChunkCompression stores sorted chunks zstd-compressed. It trades CPU
// in the sort and merge stages for less temporary disk traffic. Raw chunks are always stored plain since they are
// memory-mapped for sorting.
func WithChunkCompression(enabled bool) SortOption {
	return func(c *sortConfig) {
		c.compress = enabled
	}
}

// WithIOBufferSize sets the buffer size for file reads and writes.
func WithIOBufferSize(bytes int) SortOption {
	return func(c *sortConfig) {
		c.ioBufferSize = bytes
	}
}

// WithLogger sets the logger for lifecycle events. Nil discards output.
func WithLogger(logger *slog.Logger) SortOption {
	return func(c *sortConfig) {
		c.logger = logger
	}
}
