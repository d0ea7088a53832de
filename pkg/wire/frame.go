// Package wire implements the byte-exact frame and packet codecs: STREAM
// and ACK frames, and the long-header INITIAL packet that carries them.
package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/ventosilenzioso/go-quicmini/pkg/varint"
)

// ErrUnknownFrame is returned for a frame type byte the codec does not
// recognize. Callers may log and skip rather than treat this as fatal.
var ErrUnknownFrame = errors.New("wire: unknown frame")

// FrameTypeACK is the fixed type byte of an ACK frame.
const FrameTypeACK = 0x02

// streamTypeBase/streamTypeTop bound the 0b00001XYZ STREAM type range.
const (
	streamTypeBase = 0x08
	streamTypeTop  = 0x10
)

// Frame is the wire sum type: StreamFrame | AckFrame.
type Frame interface {
	AppendTo(buf []byte) ([]byte, error)
}

// DecodeFrame reads one frame from r, dispatching on the leading type byte.
func DecodeFrame(r io.Reader) (Frame, error) {
	var typeByte [1]byte
	if _, err := io.ReadFull(r, typeByte[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame type: %w", err)
	}
	t := typeByte[0]

	switch {
	case t == FrameTypeACK:
		return decodeAckFrame(r)
	case t >= streamTypeBase && t < streamTypeTop:
		return decodeStreamFrame(r, t)
	default:
		return nil, fmt.Errorf("%w: type 0x%02x", ErrUnknownFrame, t)
	}
}

// StreamFrame carries application payload at a stream offset, optionally
// marking the end of the stream.
type StreamFrame struct {
	StreamID  uint64
	Offset    *uint64
	HasLength bool
	Finish    bool
	Data      []byte
}

// NewStreamFrame builds a STREAM frame carrying data at offset, matching
// the chunker's convention of always including an offset and a length.
func NewStreamFrame(streamID, offset uint64, data []byte, finish bool) *StreamFrame {
	off := offset
	return &StreamFrame{
		StreamID:  streamID,
		Offset:    &off,
		HasLength: true,
		Finish:    finish,
		Data:      data,
	}
}

func (f *StreamFrame) typeByte() byte {
	t := byte(streamTypeBase)
	if f.Offset != nil {
		t |= 0x04
	}
	if f.HasLength {
		t |= 0x02
	}
	if f.Finish {
		t |= 0x01
	}
	return t
}

// AppendTo implements Frame.
func (f *StreamFrame) AppendTo(buf []byte) ([]byte, error) {
	buf = append(buf, f.typeByte())

	var err error
	buf, err = varint.Append(buf, f.StreamID)
	if err != nil {
		return nil, err
	}

	if f.Offset != nil {
		buf, err = varint.Append(buf, *f.Offset)
		if err != nil {
			return nil, err
		}
	}

	if f.HasLength {
		buf, err = varint.Append(buf, uint64(len(f.Data)))
		if err != nil {
			return nil, err
		}
	}

	buf = append(buf, f.Data...)
	return buf, nil
}

func decodeStreamFrame(r io.Reader, typeByte byte) (*StreamFrame, error) {
	finish := typeByte&0x01 != 0
	hasLength := typeByte&0x02 != 0
	hasOffset := typeByte&0x04 != 0

	streamID, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("wire: stream frame stream_id: %w", err)
	}

	var offset *uint64
	if hasOffset {
		o, err := varint.Read(r)
		if err != nil {
			return nil, fmt.Errorf("wire: stream frame offset: %w", err)
		}
		offset = &o
	}

	// A frame with no length present carries no recoverable data on this
	// wire format; the core never emits such a frame (spec.md §4.2).
	var data []byte
	if hasLength {
		length, err := varint.Read(r)
		if err != nil {
			return nil, fmt.Errorf("wire: stream frame length: %w", err)
		}
		data = make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("wire: stream frame data: %w", err)
		}
	}

	return &StreamFrame{
		StreamID:  streamID,
		Offset:    offset,
		HasLength: hasLength,
		Finish:    finish,
		Data:      data,
	}, nil
}

// AckFrame acknowledges the contiguous packet-number range
// [largest-first_ack_range, largest]. The core always emits a single range
// (ack_delay and ack_range_count are always 0 on the wire).
type AckFrame struct {
	LargestAcknowledged uint64
	AckDelay            uint64
	AckRangeCount       uint64
	FirstAckRange       uint64
}

// SmallestAcknowledged returns the low end of the acknowledged range.
func (f *AckFrame) SmallestAcknowledged() uint64 {
	return f.LargestAcknowledged - f.FirstAckRange
}

// AppendTo implements Frame.
func (f *AckFrame) AppendTo(buf []byte) ([]byte, error) {
	buf = append(buf, FrameTypeACK)

	var err error
	for _, v := range []uint64{f.LargestAcknowledged, f.AckDelay, f.AckRangeCount, f.FirstAckRange} {
		buf, err = varint.Append(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeAckFrame(r io.Reader) (*AckFrame, error) {
	largest, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("wire: ack frame largest_acknowledged: %w", err)
	}
	delay, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("wire: ack frame ack_delay: %w", err)
	}
	// ack_range_count is parsed but, per spec.md §9, multi-range ACKs are
	// not emitted by this core and are treated as a single range here.
	rangeCount, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("wire: ack frame ack_range_count: %w", err)
	}
	first, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("wire: ack frame first_ack_range: %w", err)
	}

	return &AckFrame{
		LargestAcknowledged: largest,
		AckDelay:            delay,
		AckRangeCount:       rangeCount,
		FirstAckRange:       first,
	}, nil
}
