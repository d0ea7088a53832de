package quic

import (
	"fmt"
	"io"
	"os"

	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

// Chunker lazily splits a file into STREAM frames of at most chunkSize
// bytes, tagging each with its byte offset and marking the final frame with
// Finish (spec.md §4.6). An empty file yields nothing.
type Chunker struct {
	f         *os.File
	size      int64
	pos       int64
	streamID  uint64
	buf       []byte
	exhausted bool
}

// NewChunker opens path and prepares to chunk it under streamID.
func NewChunker(path string, chunkSize int, streamID uint64) (*Chunker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("quic: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("quic: stat %s: %w", path, err)
	}
	return &Chunker{
		f:        f,
		size:     info.Size(),
		streamID: streamID,
		buf:      make([]byte, chunkSize),
	}, nil
}

// Next returns the next STREAM frame, or io.EOF once the file is fully
// chunked.
func (c *Chunker) Next() (*wire.StreamFrame, error) {
	if c.exhausted || c.pos >= c.size {
		return nil, io.EOF
	}

	n, err := io.ReadFull(c.f, c.buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("quic: read chunk: %w", err)
	}

	offset := c.pos
	data := append([]byte(nil), c.buf[:n]...)
	c.pos += int64(n)
	finish := c.pos >= c.size
	if finish {
		c.exhausted = true
	}

	return wire.NewStreamFrame(c.streamID, uint64(offset), data, finish), nil
}

// StreamID returns the stream this chunker is writing to.
func (c *Chunker) StreamID() uint64 { return c.streamID }

// Close releases the underlying file handle.
func (c *Chunker) Close() error { return c.f.Close() }
