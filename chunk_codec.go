package linesort

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// chunkWindowSize bounds the zstd window of compressed chunks. Every open
// chunk in the merge holds one decoder, and its history buffer is sized by
// the window the encoder used. The merge budget does not account for it.
const chunkWindowSize = 1 << 20

func newChunkEncoder(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
		zstd.WithWindowSize(chunkWindowSize),
	)
}

// newChunkDecoder returns a synchronous decoder; with concurrency 1 it
// starts no goroutines.
func newChunkDecoder(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
}
