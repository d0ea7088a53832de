package quic

import (
	"fmt"
	"os"

	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

// Reassembler writes incoming STREAM frames for a single stream to disk at
// their declared offsets, tolerating out-of-order and duplicate delivery,
// and reports once a FIN frame has been observed.
type Reassembler struct {
	f    *os.File
	done bool
}

// NewReassembler creates (or truncates) path to receive stream data.
func NewReassembler(path string) (*Reassembler, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("quic: create %s: %w", path, err)
	}
	return &Reassembler{f: f}, nil
}

// Write places frame's data at its declared offset.
func (r *Reassembler) Write(frame *wire.StreamFrame) error {
	var offset int64
	if frame.Offset != nil {
		offset = int64(*frame.Offset)
	}
	if len(frame.Data) > 0 {
		if _, err := r.f.WriteAt(frame.Data, offset); err != nil {
			return fmt.Errorf("quic: write chunk at offset %d: %w", offset, err)
		}
	}
	if frame.Finish {
		r.done = true
	}
	return nil
}

// Done reports whether a FIN frame has been observed.
func (r *Reassembler) Done() bool { return r.done }

// Close releases the underlying file handle.
func (r *Reassembler) Close() error { return r.f.Close() }
