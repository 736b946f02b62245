// Package lines reads newline-terminated records.
//
// A record ends at '\n'. In source text a '\r' directly before the '\n'
// also belongs to the terminator. Files written by linesort always end
// records with a single '\n', so they are read back with NewLFReader and
// Split, which strip nothing else: a record carrying its own trailing '\r'
// reads back unchanged. A trailing line without a terminator is still a
// record.
package lines

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultBufferSize is the read buffer used when none is given.
const DefaultBufferSize = 64 * 1024

// Reader returns records one at a time from an underlying io.Reader.
type Reader struct {
	br   *bufio.Reader
	buf  []byte // holds records longer than the bufio buffer
	crlf bool
}

// NewReader returns a Reader for source text, where both "\n" and "\r\n"
// end a record, with a read buffer of size bytes.
func NewReader(r io.Reader, size int) *Reader {
	rd := NewLFReader(r, size)
	rd.crlf = true
	return rd
}

// NewLFReader returns a Reader that only treats "\n" as a terminator.
func NewLFReader(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Reader{br: bufio.NewReaderSize(r, size)}
}

// Next returns the next record without its terminator. The returned slice
// is only valid until the next call. At end of input Next returns io.EOF.
func (r *Reader) Next() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		r.buf = append(r.buf[:0], line...)
		for errors.Is(err, bufio.ErrBufferFull) {
			line, err = r.br.ReadSlice('\n')
			r.buf = append(r.buf, line...)
		}
		line = r.buf
	}
	if err != nil {
		if err != io.EOF {
			return nil, err
		}
		if len(line) == 0 {
			return nil, io.EOF
		}
		// Final unterminated record; EOF is reported on the next call.
		return line, nil
	}
	if r.crlf {
		return TrimTerminator(line), nil
	}
	return line[:len(line)-1], nil
}

// More reports whether any input remains. A read error counts as more
// input so the caller surfaces it from Next.
func (r *Reader) More() bool {
	_, err := r.br.Peek(1)
	return err != io.EOF
}

// TrimTerminator strips a trailing "\n" or "\r\n".
func TrimTerminator(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}

// Split appends every '\n'-terminated record in data to dst and returns the
// extended slice. The records alias data.
func Split(dst [][]byte, data []byte) [][]byte {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return append(dst, data)
		}
		dst = append(dst, data[:i])
		data = data[i+1:]
	}
	return dst
}

// Count returns the number of records in data.
func Count(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}
