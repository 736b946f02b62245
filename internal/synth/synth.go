// Package synth generates deterministic line-oriented test data.
package synth

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/spaolacci/murmur3"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	minWordLen = 5
	maxWordLen = 9
)

// Generator produces pseudo-random words of 5 to 9 alphanumeric
// characters. Word i depends only on the seed and i, so two generators with
// the same seed emit the same sequence.
type Generator struct {
	seed    uint32
	counter uint64
	key     [8]byte
	word    [maxWordLen]byte
}

// New returns a Generator for seed.
func New(seed uint32) *Generator {
	return &Generator{seed: seed}
}

// Next returns the next word. The slice is reused by the following call.
func (g *Generator) Next() []byte {
	binary.LittleEndian.PutUint64(g.key[:], g.counter)
	g.counter++
	h1, h2 := murmur3.Sum128WithSeed(g.key[:], g.seed)

	n := minWordLen + int(h2%uint64(maxWordLen-minWordLen+1))
	for i := range n {
		g.word[i] = alphabet[h1%uint64(len(alphabet))]
		h1 /= uint64(len(alphabet))
	}
	return g.word[:n]
}

// Lines returns the next n words as strings.
func (g *Generator) Lines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(g.Next())
	}
	return out
}

// WriteLines writes newline-terminated words to w until at least size bytes
// have been written, and returns the byte count.
func (g *Generator) WriteLines(w io.Writer, size int64) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for written < size {
		word := g.Next()
		if _, err := bw.Write(word); err != nil {
			return written, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, err
		}
		written += int64(len(word)) + 1
	}
	return written, bw.Flush()
}
