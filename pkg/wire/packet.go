package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ventosilenzioso/go-quicmini/pkg/logger"
	"github.com/ventosilenzioso/go-quicmini/pkg/varint"
)

// ErrMalformedPacket covers truncated headers, version mismatches, and
// frame-length overrun/underrun while parsing a packet.
var ErrMalformedPacket = errors.New("wire: malformed packet")

// ErrUnknownLongPacketType is returned for a long-header packet whose
// long_packet_type isn't INITIAL (the only variant this core emits).
var ErrUnknownLongPacketType = errors.New("wire: unknown long packet type")

const (
	headerFormShort = 0
	headerFormLong  = 1

	longPacketTypeInitial = 0

	// SupportedVersion is the only QUIC version this core accepts.
	SupportedVersion uint32 = 1
)

// Packet is the wire sum type produced by ParsePacket: *InitialPacket for
// header_form=1, *ShortPacket for header_form=0.
type Packet interface {
	AppendTo(buf []byte) ([]byte, error)
}

// ParsePacket reads one packet from buf, dispatching on the header-form bit
// of the first byte.
func ParsePacket(buf []byte) (Packet, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedPacket)
	}
	headerForm := (buf[0] & 0x80) >> 7

	r := bytes.NewReader(buf)
	if headerForm == headerFormShort {
		return parseShortPacket(r)
	}
	return parseLongPacket(r)
}

// InitialPacket is the long-header, type=INITIAL packet that carries all
// payload traffic in this system. It is a numbered packet: it has a packet
// number and a frame sequence.
type InitialPacket struct {
	PacketNumber uint64
	Version      uint32
	DstConnID    uint64
	SrcConnID    uint64
	Token        []byte
	Frames       []Frame
}

// NewInitialPacket builds an INITIAL packet ready for transmission.
func NewInitialPacket(packetNumber uint64, dstConnID, srcConnID uint64, frames ...Frame) *InitialPacket {
	return &InitialPacket{
		PacketNumber: packetNumber,
		Version:      SupportedVersion,
		DstConnID:    dstConnID,
		SrcConnID:    srcConnID,
		Frames:       frames,
	}
}

// AppendTo implements Packet, following spec.md §4.3's serialization order.
func (p *InitialPacket) AppendTo(buf []byte) ([]byte, error) {
	pnBytes := EncodePacketNumber(p.PacketNumber)
	pnLen := len(pnBytes)
	if pnLen < 1 || pnLen > 4 {
		return nil, fmt.Errorf("wire: packet number %d needs %d bytes, header field only carries 1-4", p.PacketNumber, pnLen)
	}

	header := byte(headerFormLong<<7) | (1 << 6) | (longPacketTypeInitial << 4) | byte(pnLen-1)
	buf = append(buf, header)

	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], p.Version)
	buf = append(buf, versionBytes[:]...)

	buf = appendConnID(buf, p.DstConnID)
	buf = appendConnID(buf, p.SrcConnID)

	var err error
	buf, err = varint.Append(buf, uint64(len(p.Token)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, p.Token...)

	var frameBytes []byte
	for _, f := range p.Frames {
		frameBytes, err = f.AppendTo(frameBytes)
		if err != nil {
			return nil, err
		}
	}

	buf, err = varint.Append(buf, uint64(pnLen+len(frameBytes)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, pnBytes...)
	buf = append(buf, frameBytes...)

	return buf, nil
}

func appendConnID(buf []byte, id uint64) []byte {
	n := varint.LengthOf(id)
	buf = append(buf, byte(n))
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, byte(id>>(8*uint(i))))
	}
	return buf
}

func readConnID(r *bytes.Reader) (uint64, error) {
	length, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: conn id length: %v", ErrMalformedPacket, err)
	}
	idBytes := make([]byte, length)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return 0, fmt.Errorf("%w: conn id: %v", ErrMalformedPacket, err)
	}
	var v uint64
	for _, b := range idBytes {
		v = (v << 8) | uint64(b)
	}
	return v, nil
}

func parseLongPacket(r *bytes.Reader) (Packet, error) {
	first, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: header byte: %v", ErrMalformedPacket, err)
	}

	longPacketType := (first & 0x30) >> 4
	typeSpecific := first & 0x0f
	pnLen := int(typeSpecific&0x03) + 1

	var versionBytes [4]byte
	if _, err := io.ReadFull(r, versionBytes[:]); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrMalformedPacket, err)
	}
	version := binary.BigEndian.Uint32(versionBytes[:])
	if version != SupportedVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedPacket, version)
	}

	dstConnID, err := readConnID(r)
	if err != nil {
		return nil, err
	}
	srcConnID, err := readConnID(r)
	if err != nil {
		return nil, err
	}

	if longPacketType != longPacketTypeInitial {
		return nil, fmt.Errorf("%w: type %d", ErrUnknownLongPacketType, longPacketType)
	}

	tokenLen, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("%w: token length: %v", ErrMalformedPacket, err)
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(r, token); err != nil {
		return nil, fmt.Errorf("%w: token: %v", ErrMalformedPacket, err)
	}

	payloadLen, err := varint.Read(r)
	if err != nil {
		return nil, fmt.Errorf("%w: payload length: %v", ErrMalformedPacket, err)
	}
	if int(payloadLen) < pnLen {
		return nil, fmt.Errorf("%w: payload length %d shorter than packet number length %d", ErrMalformedPacket, payloadLen, pnLen)
	}

	pnBytes := make([]byte, pnLen)
	if _, err := io.ReadFull(r, pnBytes); err != nil {
		return nil, fmt.Errorf("%w: packet number: %v", ErrMalformedPacket, err)
	}
	packetNumber := DecodePacketNumber(pnBytes)

	frameBytesLen := int(payloadLen) - pnLen
	frames, consumed, err := decodeFrames(r, frameBytesLen)
	if err != nil {
		return nil, err
	}
	if consumed != frameBytesLen {
		return nil, fmt.Errorf("%w: frame payload consumed %d bytes, expected %d", ErrMalformedPacket, consumed, frameBytesLen)
	}

	return &InitialPacket{
		PacketNumber: packetNumber,
		Version:      version,
		DstConnID:    dstConnID,
		SrcConnID:    srcConnID,
		Token:        token,
		Frames:       frames,
	}, nil
}

// decodeFrames reads frames from r until exactly n bytes have been
// consumed, matching spec.md §4.3's "frames are produced until the byte
// count matches exactly" parsing rule. An unknown frame type is logged and
// skipped rather than aborting the parse: DecodeFrame consumes exactly the
// type byte before recognizing it as unknown, so skipping it is a 1-byte
// no-op and the remaining frames are still processed normally (spec.md
// §4.4.3).
func decodeFrames(r *bytes.Reader, n int) ([]Frame, int, error) {
	var frames []Frame
	consumed := 0
	for consumed < n {
		before := r.Len()
		frame, err := DecodeFrame(r)
		if err != nil {
			if errors.Is(err, ErrUnknownFrame) {
				consumed += before - r.Len()
				logger.Warn("wire: %v, skipping", err)
				continue
			}
			return nil, consumed, err
		}
		consumed += before - r.Len()
		frames = append(frames, frame)
	}
	return frames, consumed, nil
}

// ShortPacket is parsed for header-form completeness. It is not produced or
// consumed by any reliability flow in this core (spec.md §9 Open Question:
// the original's short-packet decoder is unreachable and this core resolves
// the question by implementing a clean parse symmetric to the long packet
// rather than guessing the original's intent).
type ShortPacket struct {
	SpinBit      bool
	KeyPhase     bool
	DstConnID    uint64
	PacketNumber uint64
}

// AppendTo implements Packet.
func (p *ShortPacket) AppendTo(buf []byte) ([]byte, error) {
	pnBytes := EncodePacketNumber(p.PacketNumber)
	pnLen := len(pnBytes)
	if pnLen < 1 || pnLen > 4 {
		return nil, fmt.Errorf("wire: packet number %d needs %d bytes, short header only carries 1-4", p.PacketNumber, pnLen)
	}

	header := byte(headerFormShort << 7)
	header |= 1 << 6 // fixed bit
	if p.SpinBit {
		header |= 1 << 5
	}
	if p.KeyPhase {
		header |= 1 << 2
	}
	header |= byte(pnLen - 1)
	buf = append(buf, header)

	buf = appendConnID(buf, p.DstConnID)
	buf = append(buf, pnBytes...)
	return buf, nil
}

func parseShortPacket(r *bytes.Reader) (Packet, error) {
	first, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: header byte: %v", ErrMalformedPacket, err)
	}

	spinBit := first&0x20 != 0
	keyPhase := first&0x04 != 0
	pnLen := int(first&0x03) + 1

	dstConnID, err := readConnID(r)
	if err != nil {
		return nil, err
	}

	pnBytes := make([]byte, pnLen)
	if _, err := io.ReadFull(r, pnBytes); err != nil {
		return nil, fmt.Errorf("%w: packet number: %v", ErrMalformedPacket, err)
	}

	return &ShortPacket{
		SpinBit:      spinBit,
		KeyPhase:     keyPhase,
		DstConnID:    dstConnID,
		PacketNumber: DecodePacketNumber(pnBytes),
	}, nil
}
